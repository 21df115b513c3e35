package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"

	"github.com/robofleet/change-request-bot/internal/dto"
	"github.com/robofleet/change-request-bot/internal/models"
	"github.com/robofleet/change-request-bot/internal/repository"
	"github.com/robofleet/change-request-bot/pkg/config"
	appErrors "github.com/robofleet/change-request-bot/pkg/errors"
	"github.com/robofleet/change-request-bot/pkg/jobs"
)

type channelPost struct {
	channel  string
	text     string
	blocks   []slack.Block
	threadTS string
}

type dmPost struct {
	userID string
	text   string
	blocks []slack.Block
}

type ephemeralPost struct {
	channel string
	userID  string
	text    string
}

type messengerStub struct {
	mu         sync.Mutex
	posts      []channelPost
	dms        []dmPost
	ephemerals []ephemeralPost
	updates    []channelPost
	names      map[string]string
	nextTS     int
}

func newMessengerStub() *messengerStub {
	return &messengerStub{names: map[string]string{}}
}

func (m *messengerStub) PostMessage(ctx context.Context, channel, text string, blocks []slack.Block, threadTS string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, channelPost{channel: channel, text: text, blocks: blocks, threadTS: threadTS})
	m.nextTS++
	return fmt.Sprintf("170000000%d.000100", m.nextTS), nil
}

func (m *messengerStub) PostDM(ctx context.Context, userID, text string, blocks []slack.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dms = append(m.dms, dmPost{userID: userID, text: text, blocks: blocks})
	return nil
}

func (m *messengerStub) PostEphemeral(ctx context.Context, channel, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ephemerals = append(m.ephemerals, ephemeralPost{channel: channel, userID: userID, text: text})
	return nil
}

func (m *messengerStub) UpdateMessage(ctx context.Context, channel, ts, text string, blocks []slack.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, channelPost{channel: channel, text: text, blocks: blocks, threadTS: ts})
	return nil
}

func (m *messengerStub) ResolveNames(ctx context.Context, userIDs []string) map[string]string {
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := m.names[id]; ok {
			out[id] = name
			continue
		}
		out[id] = id // lookup failure falls back to the raw ID
	}
	return out
}

func (m *messengerStub) dmsFor(userID string) []dmPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []dmPost{}
	for _, dm := range m.dms {
		if dm.userID == userID {
			out = append(out, dm)
		}
	}
	return out
}

type sheetStub struct {
	mu   sync.Mutex
	rows []models.LogRow
}

func (s *sheetStub) UpsertStatus(ctx context.Context, row models.LogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *sheetStub) lastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return ""
	}
	return s.rows[len(s.rows)-1].Status
}

type docStub struct {
	mu      sync.Mutex
	creates map[int64]models.DocRecord
	updates []map[string]interface{}
}

func newDocStub() *docStub {
	return &docStub{creates: make(map[int64]models.DocRecord)}
}

func (d *docStub) CreateRecord(ctx context.Context, requestID int64, record models.DocRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates[requestID] = record
	return nil
}

func (d *docStub) UpdateRecord(ctx context.Context, requestID int64, patch map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, patch)
	return nil
}

type timerStub struct {
	mu    sync.Mutex
	armed []jobs.Job
}

func (t *timerStub) EnqueueAfter(job jobs.Job, delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = append(t.armed, job)
	return nil
}

func (t *timerStub) types() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := []string{}
	for _, j := range t.armed {
		out = append(out, j.Type)
	}
	return out
}

type fixture struct {
	svc       *ApprovalService
	messenger *messengerStub
	sheet     *sheetStub
	docs      *docStub
	timers    *timerStub
	registry  *repository.RequestRegistry
	tracker   *repository.ApprovalTracker
}

func newFixture() *fixture {
	messenger := newMessengerStub()
	sheet := &sheetStub{}
	docs := newDocStub()
	timers := &timerStub{}
	registry := repository.NewRequestRegistry()
	tracker := repository.NewApprovalTracker()

	svc := NewApprovalService(
		registry, tracker, repository.NewFinalizationMarker(),
		messenger, sheet, docs, timers, nil, nil,
		config.ApprovalsConfig{
			ReminderDelay:    time.Hour,
			ResponseTimeout:  2 * time.Hour,
			DocReminderDelay: time.Hour,
		},
	)
	return &fixture{svc: svc, messenger: messenger, sheet: sheet, docs: docs, timers: timers, registry: registry, tracker: tracker}
}

func submitFixture(t *testing.T, f *fixture, approvers ...string) int64 {
	t.Helper()
	id, err := f.svc.Submit(context.Background(), dto.SubmitRequest{
		RobotModel:     "TPV",
		RobotID:        "TPV001",
		Classification: "Scope",
		Content:        "swap gripper",
		Why:            "wear",
		Docs:           "https://drive.example/doc",
		Submitter:      "U_SUB",
		Channel:        "C_ENG",
		Approvers:      approvers,
		Informed:       []string{"U_INF"},
	})
	require.NoError(t, err)
	return id
}

func decide(t *testing.T, f *fixture, requestID int64, approver string, approve bool) error {
	t.Helper()
	return f.svc.RecordDecision(context.Background(), dto.DecisionAction{
		RequestID:  requestID,
		ApproverID: approver,
		Approve:    approve,
		Channel:    "D_" + approver,
		MessageTS:  "1.1",
	})
}

func TestSubmitRejectsMissingRobotModel(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Submit(context.Background(), dto.SubmitRequest{
		Classification: "Scope",
		Content:        "swap gripper",
		Why:            "wear",
		Submitter:      "U_SUB",
		Channel:        "C_ENG",
		Approvers:      []string{"U_A"},
	})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
	require.Empty(t, f.messenger.posts, "no announcement for an invalid submission")
	require.Empty(t, f.timers.types())
}

func TestSubmitAnnouncesAndArmsTimers(t *testing.T) {
	f := newFixture()

	id := submitFixture(t, f, "U_A", "U_B")
	require.Positive(t, id)

	// Channel announcement first, then one DM per approver.
	require.Len(t, f.messenger.posts, 1)
	require.Equal(t, "C_ENG", f.messenger.posts[0].channel)
	require.Len(t, f.messenger.dmsFor("U_A"), 1)
	require.Len(t, f.messenger.dmsFor("U_B"), 1)

	// Mirrors receive the pending snapshot.
	require.Contains(t, f.docs.creates, id)
	require.Equal(t, models.StatusPending, f.docs.creates[id].Status)
	require.Equal(t, models.StatusPending, f.sheet.lastStatus())

	require.Equal(t, []string{JobReminder, JobAutoTimeout}, f.timers.types())

	record, err := f.registry.Get(id)
	require.NoError(t, err)
	require.NotEmpty(t, record.ThreadTS)
}

func TestSubmitIDsAreOrdered(t *testing.T) {
	f := newFixture()

	first := submitFixture(t, f, "U_A")
	second := submitFixture(t, f, "U_A")
	require.Greater(t, second, first)
}

func TestRecordDecisionDuplicateRejected(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A", "U_B")

	require.NoError(t, decide(t, f, id, "U_A", true))

	err := decide(t, f, id, "U_A", false)
	require.True(t, appErrors.Is(err, appErrors.ErrAlreadyResponded))

	// Stored decision is unchanged and the approver got a warning.
	d, ok := f.tracker.Decision(id, "U_A")
	require.True(t, ok)
	require.Equal(t, models.DecisionApproved, d)

	warned := false
	for _, e := range f.messenger.ephemerals {
		if e.userID == "U_A" && strings.Contains(e.text, "already responded (approved)") {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestRecordDecisionUnknownRequest(t *testing.T) {
	f := newFixture()

	err := decide(t, f, 424242, "U_A", true)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.Len(t, f.messenger.ephemerals, 1)
	require.Contains(t, f.messenger.ephemerals[0].text, "Cannot find original request")
}

func TestRecordDecisionRelabelsButtons(t *testing.T) {
	f := newFixture()
	id := submitFixture(t, f, "U_A", "U_B")

	require.NoError(t, decide(t, f, id, "U_A", true))

	require.Len(t, f.messenger.updates, 1)
	require.Equal(t, "D_U_A", f.messenger.updates[0].channel)
}

func TestConfirmDocsUnknownRequest(t *testing.T) {
	f := newFixture()

	err := f.svc.ConfirmDocs(context.Background(), dto.DocConfirmAction{
		RequestID: 99, UserID: "U_SUB", Channel: "D_SUB",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.Contains(t, f.messenger.ephemerals[0].text, "Cannot find original request")
}

func TestConfirmDocsLogsFinalStatus(t *testing.T) {
	f := newFixture()
	f.messenger.names["U_SUB"] = "Dana"
	id := submitFixture(t, f, "U_A")
	require.NoError(t, decide(t, f, id, "U_A", true))

	err := f.svc.ConfirmDocs(context.Background(), dto.DocConfirmAction{
		RequestID: id, UserID: "U_SUB", Channel: "D_SUB",
	})
	require.NoError(t, err)

	record, err := f.registry.Get(id)
	require.NoError(t, err)
	require.True(t, record.DocConfirmed)

	require.Contains(t, f.sheet.lastStatus(), "Final Documentation Updated")
	require.Contains(t, f.sheet.lastStatus(), "Dana")

	// Firestore got the final patch too.
	last := f.docs.updates[len(f.docs.updates)-1]
	require.Equal(t, true, last["docConfirmed"])

	// Thread note plus ephemeral thanks.
	thanks := false
	for _, e := range f.messenger.ephemerals {
		if strings.Contains(e.text, "confirmed the documentation update") {
			thanks = true
		}
	}
	require.True(t, thanks)

	lastPost := f.messenger.posts[len(f.messenger.posts)-1]
	require.Equal(t, record.ThreadTS, lastPost.threadTS)
	require.Contains(t, lastPost.text, "confirmed documentation updated")
}
