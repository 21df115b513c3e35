package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robofleet/change-request-bot/internal/models"
	appErrors "github.com/robofleet/change-request-bot/pkg/errors"
)

func sampleRequest() *models.ChangeRequest {
	return &models.ChangeRequest{
		RobotModel:     "TPV",
		RobotID:        "TPV001",
		Classification: "Scope",
		Content:        "swap gripper",
		Why:            "wear",
		Submitter:      "U_SUB",
		Channel:        "C123",
		ThreadTS:       "111.222",
		Approvers:      []string{"U1", "U2"},
		Informed:       []string{"U3"},
	}
}

func TestRequestRegistryCreateAssignsOrderedIDs(t *testing.T) {
	reg := NewRequestRegistry()

	first := reg.Create(sampleRequest())
	second := reg.Create(sampleRequest())

	require.Greater(t, second, first)

	got, err := reg.Get(first)
	require.NoError(t, err)
	require.Equal(t, first, got.ID)
	require.Equal(t, []string{"U1", "U2"}, got.Approvers)
	require.False(t, got.CreatedAt.IsZero())
}

func TestRequestRegistryGetUnknown(t *testing.T) {
	reg := NewRequestRegistry()

	_, err := reg.Get(404)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRequestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewRequestRegistry()
	id := reg.Create(sampleRequest())

	got, err := reg.Get(id)
	require.NoError(t, err)
	got.Approvers[0] = "tampered"
	got.RemindedUsers["U1"] = true

	again, err := reg.Get(id)
	require.NoError(t, err)
	require.Equal(t, "U1", again.Approvers[0])
	require.Empty(t, again.RemindedUsers)
}

func TestRequestRegistrySetDocConfirmedIdempotent(t *testing.T) {
	reg := NewRequestRegistry()
	id := reg.Create(sampleRequest())

	require.NoError(t, reg.SetDocConfirmed(id))
	require.NoError(t, reg.SetDocConfirmed(id))

	got, err := reg.Get(id)
	require.NoError(t, err)
	require.True(t, got.DocConfirmed)

	require.ErrorIs(t, reg.SetDocConfirmed(404), appErrors.ErrNotFound)
}

func TestRequestRegistryMarkRemindedOnce(t *testing.T) {
	reg := NewRequestRegistry()
	id := reg.Create(sampleRequest())

	require.True(t, reg.MarkReminded(id, "U1"))
	require.False(t, reg.MarkReminded(id, "U1"))
	require.False(t, reg.MarkReminded(404, "U1"))
}
