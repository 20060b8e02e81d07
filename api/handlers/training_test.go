package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/config"
	"github.com/fedgovio/fedgov/training"
	"github.com/fedgovio/fedgov/types"
)

type stubLauncher struct{}

func (stubLauncher) Launch(ctx context.Context, spec training.LaunchSpec) (training.Handle, error) {
	return stubHandle{}, nil
}

type stubHandle struct{}

func (stubHandle) Wait() error { return nil }
func (stubHandle) Stop() error { return nil }

// acceptConfiguration drives a proposal through voting and counting and
// returns the created configuration's ID.
func (f *apiFixture) acceptConfiguration(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	proposal, err := f.svc.CreateConfigurationProposal(ctx, f.addConfigurationProposal(f.members[0]))
	require.NoError(t, err)
	for _, member := range f.members {
		_, err = f.svc.CastVote(ctx, proposal.ID, types.Vote{Member: member, Priority: 1})
		require.NoError(t, err)
	}
	tally, err := f.svc.CountConfigurationVotes(ctx, f.strategy.GovernanceID)
	require.NoError(t, err)
	require.NotNil(t, tally.CreatedConfigurationID)
	return *tally.CreatedConfigurationID
}

func newTrainingHandlerFixture(t *testing.T) (*apiFixture, *TrainingHandler, uuid.UUID) {
	t.Helper()
	f := newAPIFixture(t, 3)
	configurationID := f.acceptConfiguration(t)
	manager := training.NewManager(f.svc, stubLauncher{}, config.DefaultTrainingConfig(), zap.NewNop())
	return f, NewTrainingHandler(f.svc, manager, zap.NewNop()), configurationID
}

func TestTrainingHandler_CreateAndList(t *testing.T) {
	_, h, configurationID := newTrainingHandlerFixture(t)

	w := perform(t, h.HandleCreate, http.MethodPost, "/training_sessions",
		map[string]uuid.UUID{"configuration_id": configurationID}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var summary SessionSummary
	decodeData(t, decodeEnvelope(t, w), &summary)
	assert.Equal(t, configurationID, summary.ConfigurationID)
	assert.Equal(t, "sepsis-prediction", summary.StrategyName)
	assert.Equal(t, 3, summary.Participants)
	assert.Equal(t, 0, summary.LiveParticipants)
	assert.Equal(t, 2, summary.SearchRounds)

	w = perform(t, h.HandleList, http.MethodGet, "/training_sessions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []SessionSummary
	decodeData(t, decodeEnvelope(t, w), &summaries)
	assert.Len(t, summaries, 1)
}

func TestTrainingHandler_CreateTwiceConflicts(t *testing.T) {
	_, h, configurationID := newTrainingHandlerFixture(t)

	body := map[string]uuid.UUID{"configuration_id": configurationID}
	w := perform(t, h.HandleCreate, http.MethodPost, "/training_sessions", body, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = perform(t, h.HandleCreate, http.MethodPost, "/training_sessions", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrSessionAlreadyExists), resp.Error.Code)
}

func TestTrainingHandler_CreateUnknownConfiguration(t *testing.T) {
	_, h, _ := newTrainingHandlerFixture(t)

	w := perform(t, h.HandleCreate, http.MethodPost, "/training_sessions",
		map[string]uuid.UUID{"configuration_id": uuid.New()}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrainingHandler_GetUnknownSession(t *testing.T) {
	_, h, _ := newTrainingHandlerFixture(t)

	id := uuid.New().String()
	w := perform(t, h.HandleGet, http.MethodGet, "/training_sessions/"+id, nil,
		map[string]string{"id": id})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
