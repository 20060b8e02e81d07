package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/internal/store"
	"github.com/fedgovio/fedgov/types"
)

// --- fixture ---

type apiFixture struct {
	svc      *governance.Service
	group    *types.Group
	strategy *types.Strategy
	dataset  *types.Dataset
	model    *types.MLModel
	members  []uuid.UUID
}

// newAPIFixture builds a governance service over an in-memory store with a
// group of the given size, one strategy, one dataset and one ML model.
func newAPIFixture(t *testing.T, memberCount int) *apiFixture {
	t.Helper()
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	st, err := store.New(db, zap.NewNop())
	require.NoError(t, err)
	svc := governance.NewService(st, governance.NewLogRecorder(zap.NewNop()), zap.NewNop())

	group, err := svc.CreateGroup(ctx, types.AddGroup{Name: "hospitals"})
	require.NoError(t, err)
	members := make([]uuid.UUID, memberCount)
	for i := range members {
		members[i] = uuid.New()
		group, err = svc.AddGroupMember(ctx, group.GovernanceID, members[i])
		require.NoError(t, err)
	}
	strategy, err := svc.CreateStrategy(ctx, types.AddStrategy{
		Name:           "sepsis-prediction",
		BelongingGroup: group.GovernanceID,
	})
	require.NoError(t, err)
	dataset, err := svc.CreateDataset(ctx, types.AddDataset{
		Name:                 "vitals",
		StrategyGovernanceID: strategy.GovernanceID,
		Structured:           true,
		Features: []types.Feature{
			{Name: "heart_rate", Type: types.FeatureFloat, OrderInDataset: 0},
			{Name: "label", Type: types.FeatureBoolean, OrderInDataset: 1},
		},
	})
	require.NoError(t, err)
	model, err := svc.CreateMLModel(ctx, types.AddMLModel{
		Name:                 "sepsis-mlp",
		StrategyGovernanceID: strategy.GovernanceID,
		Model:                types.ModelSpec{Algorithm: types.AlgorithmMLP},
	})
	require.NoError(t, err)

	return &apiFixture{svc: svc, group: group, strategy: strategy,
		dataset: dataset, model: model, members: members}
}

// perform runs a handler against a recorded request. Path parameters are
// set the way the method-qualified mux would.
func perform(t *testing.T, handler http.HandlerFunc, method, target string, body any, pathValues map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	for name, value := range pathValues {
		req.SetPathValue(name, value)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// decodeEnvelope parses the response envelope.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData re-marshals the envelope's data field into out.
func decodeData(t *testing.T, resp Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// --- envelope ---

func TestWriteSuccess_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req-42"))
	w := httptest.NewRecorder()

	WriteSuccess(w, req, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError_UsesTypedStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, types.ConflictError(types.ErrAlreadyTallied, "proposal already tallied"), zap.NewNop())

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrAlreadyTallied), resp.Error.Code)
}

func TestWriteServiceError_UnknownErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteServiceError(w, errors.New("disk on fire"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
	// The raw cause stays server-side.
	assert.NotContains(t, resp.Error.Message, "disk on fire")
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	cases := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrNotProposable, http.StatusBadRequest},
		{types.ErrMemberNotInGroup, http.StatusForbidden},
		{types.ErrStrategyNotFound, http.StatusNotFound},
		{types.ErrSessionNotFound, http.StatusNotFound},
		{types.ErrVotePriorityExists, http.StatusConflict},
		{types.ErrNoPendingProposals, http.StatusConflict},
		{types.ErrExistingQualityRequirement, http.StatusUnprocessableEntity},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrInternalError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapErrorCodeToHTTPStatus(tc.code), string(tc.code))
	}
}

// --- request helpers ---

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/groups",
		bytes.NewReader([]byte(`{"name":"a","bogus":true}`)))

	var add types.AddGroup
	errD := DecodeJSON(req, &add)
	require.NotNil(t, errD)
	assert.Equal(t, types.ErrInvalidRequest, errD.Code)
}

func TestPathUUID_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/groups/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")

	_, errD := PathUUID(req, "id")
	require.NotNil(t, errD)
	assert.Equal(t, http.StatusBadRequest, errD.HTTPStatus)
}
