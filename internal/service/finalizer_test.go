package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robofleet/change-request-bot/internal/models"
)

func TestEvaluateWaitsForAllApprovers(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A", "U_B")

	require.NoError(t, decide(t, f, id, "U_A", true))

	// One of two decisions in: nothing terminal happened yet.
	require.Len(t, f.messenger.dmsFor("U_SUB"), 0)
	require.Equal(t, models.StatusPending, f.sheet.lastStatus())
}

func TestAllApproveFinalizesApproved(t *testing.T) {
	f := newFixture()
	f.messenger.names["U_A"] = "Alice"
	f.messenger.names["U_B"] = "Bob"
	id := submitFixture(t, f, "U_A", "U_B")

	require.NoError(t, decide(t, f, id, "U_A", true))
	require.NoError(t, decide(t, f, id, "U_B", true))

	// Submitter gets the approval DM with the confirm button attached.
	subDMs := f.messenger.dmsFor("U_SUB")
	require.Len(t, subDMs, 1)
	require.Contains(t, subDMs[0].text, "approved by all approvers")
	require.NotEmpty(t, subDMs[0].blocks)

	// Channel summary lands in the original thread.
	record, err := f.registry.Get(id)
	require.NoError(t, err)
	summary := f.messenger.posts[len(f.messenger.posts)-1]
	require.Equal(t, record.ThreadTS, summary.threadTS)
	require.Contains(t, summary.text, "Change Request Approved")

	require.Equal(t, models.StatusPendingDocUpdate, f.sheet.lastStatus())

	// Per-approver lines carry display names when the lookup succeeds.
	lastRow := f.sheet.rows[len(f.sheet.rows)-1]
	require.Contains(t, lastRow.ApproverStatus, "Alice: approved")
	require.Contains(t, lastRow.ApproverStatus, "Bob: approved")

	// Firestore mirror patched and the doc-update nudge armed.
	require.Equal(t, models.StatusPendingDocUpdate, f.docs.updates[len(f.docs.updates)-1]["status"])
	require.Equal(t, []string{JobReminder, JobAutoTimeout, JobDocReminder}, f.timers.types())
}

func TestAnyDeclineFinalizesRejected(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A", "U_B")

	require.NoError(t, decide(t, f, id, "U_A", false))
	require.NoError(t, decide(t, f, id, "U_B", true))

	subDMs := f.messenger.dmsFor("U_SUB")
	require.Len(t, subDMs, 1)
	require.Contains(t, subDMs[0].text, "could not proceed")
	require.Contains(t, subDMs[0].text, "*Declined:* <@U_A>")
	require.Contains(t, subDMs[0].text, "*No Response:* None")
	require.NotContains(t, subDMs[0].text, "<@U_B>")

	summary := f.messenger.posts[len(f.messenger.posts)-1]
	require.Contains(t, summary.text, "Rejected or Timed Out")

	require.Equal(t, models.StatusNeedsResubmission, f.sheet.lastStatus())
	require.Equal(t, models.StatusNeedsResubmission, f.docs.updates[len(f.docs.updates)-1]["status"])

	// No documentation follow-up for a rejected request.
	require.Equal(t, []string{JobReminder, JobAutoTimeout}, f.timers.types())
}

func TestTimeoutFinalizesRejected(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A")

	f.svc.RunTimeoutSweep(context.Background(), id)

	// The silent approver is told about the auto-mark.
	aDMs := f.messenger.dmsFor("U_A")
	require.Len(t, aDMs, 2) // prompt, then the no-response notice
	require.Contains(t, aDMs[1].text, "No Response")

	subDMs := f.messenger.dmsFor("U_SUB")
	require.Len(t, subDMs, 1)
	require.Contains(t, subDMs[0].text, "*No Response:* <@U_A>")
	require.Contains(t, subDMs[0].text, "*Declined:* None")

	require.Equal(t, models.StatusNeedsResubmission, f.sheet.lastStatus())
}

func TestTimeoutAfterDecisionDoesNotOverride(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A")

	require.NoError(t, decide(t, f, id, "U_A", true))
	f.svc.RunTimeoutSweep(context.Background(), id)

	d, ok := f.tracker.Decision(id, "U_A")
	require.True(t, ok)
	require.Equal(t, models.DecisionApproved, d)

	// Already finalized as approved; the sweep must not re-broadcast.
	require.Len(t, f.messenger.dmsFor("U_SUB"), 1)
	require.Equal(t, models.StatusPendingDocUpdate, f.sheet.lastStatus())
}

func TestEvaluateRunsBroadcastOnce(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A", "U_B")

	require.NoError(t, decide(t, f, id, "U_A", true))
	require.NoError(t, decide(t, f, id, "U_B", true))

	before := len(f.messenger.dms)
	for i := 0; i < 5; i++ {
		f.svc.Evaluate(context.Background(), id)
	}
	require.Len(t, f.messenger.dms, before)
	require.Len(t, f.sheet.rows, 2) // pending row + final row
}

func TestEvaluateConcurrentCallersSingleBroadcast(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A")
	require.NoError(t, f.tracker.Record(id, "U_A", models.DecisionApproved))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.Evaluate(context.Background(), id)
		}()
	}
	wg.Wait()

	require.Len(t, f.messenger.dmsFor("U_SUB"), 1)

	finalRows := 0
	for _, row := range f.sheet.rows {
		if row.Status == models.StatusPendingDocUpdate {
			finalRows++
		}
	}
	require.Equal(t, 1, finalRows)
}

func TestEvaluateUnknownRequestIsNoOp(t *testing.T) {
	f := newFixture()

	f.svc.Evaluate(context.Background(), 31337)

	require.Empty(t, f.messenger.dms)
	require.Empty(t, f.sheet.rows)
}

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name      string
		decisions map[string]models.Decision
		want      models.Outcome
	}{
		{"all approved", map[string]models.Decision{"a": models.DecisionApproved, "b": models.DecisionApproved}, models.OutcomeApproved},
		{"one declined", map[string]models.Decision{"a": models.DecisionApproved, "b": models.DecisionDeclined}, models.OutcomeRejectedOrTimedOut},
		{"one silent", map[string]models.Decision{"a": models.DecisionApproved, "b": models.DecisionNoResponse}, models.OutcomeRejectedOrTimedOut},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classifyOutcome(tc.decisions))
		})
	}
}

func TestApproverStatusLinesMarksPending(t *testing.T) {
	lines := approverStatusLines(
		[]string{"U_A", "U_B"},
		map[string]models.Decision{"U_A": models.DecisionApproved},
		map[string]string{"U_A": "Alice"},
	)
	require.Equal(t, []string{"Alice: approved", "U_B: pending"}, lines)
}

func TestOrNone(t *testing.T) {
	require.Equal(t, "None", orNone(nil))
	require.Equal(t, "<@U_A>, <@U_B>", orNone([]string{"<@U_A>", "<@U_B>"}))
	require.True(t, strings.HasPrefix(orNone([]string{"<@U_A>"}), "<@"))
}
