package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/agentstatus"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/call"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/lineage"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalls struct {
	ingested   [][]byte
	ingestErr  error
	listErr    error
	lastSearch string
	cleared    bool
}

func (f *fakeCalls) Ingest(_ context.Context, payload []byte) (*call.IngestResult, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}

	f.ingested = append(f.ingested, payload)

	return &call.IngestResult{Accepted: 2, AffectedCalls: []string{"A"}}, nil
}

func (f *fakeCalls) ListCallEvents(context.Context) ([]cdr.CallEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	return []cdr.CallEvent{{CallID: "A", Status: cdr.StatusIVR, CallingNumber: "1"}}, nil
}

func (f *fakeCalls) Journeys(context.Context) ([]journey.Event, error) {
	return []journey.Event{{CallID: "A", EventType: journey.EventTimeout, IvrPath: journey.RootPath}}, nil
}

func (f *fakeCalls) CallLog(_ context.Context, search string) ([]lineage.CallLogRow, error) {
	f.lastSearch = search

	return []lineage.CallLogRow{{CallEvent: cdr.CallEvent{CallID: "A"}, GroupID: "A", IsRoot: true}}, nil
}

func (f *fakeCalls) Clear(context.Context) error {
	f.cleared = true

	return nil
}

type fakeAgentStatus struct{}

func (fakeAgentStatus) IngestAgentStatuses(_ context.Context, payload []byte) (int, error) {
	if strings.TrimSpace(string(payload)) == "" {
		return 0, agentstatus.ErrEmptyPayload
	}

	return 1, nil
}

func (fakeAgentStatus) IngestProfileAvailabilities(context.Context, []byte) (int, error) {
	return 0, &agentstatus.ValidationError{Index: 0, Err: errors.New("user_id required")}
}

func (fakeAgentStatus) AgentStatuses(context.Context) ([]agentstatus.AgentStatus, error) {
	return []agentstatus.AgentStatus{{Hour: 9, UserID: "u-1", Date: "2025-07-10"}}, nil
}

func (fakeAgentStatus) ProfileAvailabilities(context.Context) ([]agentstatus.ProfileAvailability, error) {
	return []agentstatus.ProfileAvailability{{Hour: 9, UserID: "u-1", Profiles: map[string]any{"Lunch": 60}}}, nil
}

func newTestRouter(calls *fakeCalls) *gin.Engine {
	gin.SetMode(gin.TestMode)

	return NewServer(calls, fakeAgentStatus{}).Router()
}

func serve(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	router.ServeHTTP(recorder, request)

	return recorder
}

func TestStreamIngestsBody(t *testing.T) {
	calls := &fakeCalls{}
	router := newTestRouter(calls)

	recorder := serve(router, http.MethodPost, "/api/stream", `[{"call_id": "A"}]`)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, calls.ingested, 1)
	assert.JSONEq(t, `[{"call_id": "A"}]`, string(calls.ingested[0]))
	assert.NotEmpty(t, recorder.Header().Get(requestIDHeader))

	var response struct {
		Message string            `json:"message"`
		Data    call.IngestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Data.Accepted)
}

func TestStreamMapsErrorsToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid payload", err: fmt.Errorf("%w: bad", call.ErrInvalidPayload), status: http.StatusBadRequest},
		{name: "breaker open", err: fmt.Errorf("failed to load call events: %w", gobreaker.ErrOpenState), status: http.StatusServiceUnavailable},
		{name: "storage failure", err: errors.New("disk full"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeCalls{ingestErr: tt.err})

			recorder := serve(router, http.MethodPost, "/api/stream", `{}`)

			assert.Equal(t, tt.status, recorder.Code)

			var response errorResponse
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
			assert.NotEmpty(t, response.Error.Type)
		})
	}
}

func TestQueryEndpoints(t *testing.T) {
	calls := &fakeCalls{}
	router := newTestRouter(calls)

	recorder := serve(router, http.MethodGet, "/api/call-data", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"call_id":"A"`)

	recorder = serve(router, http.MethodGet, "/api/queue-ivr-data", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"ivr_path":"Entry"`)
	assert.NotContains(t, recorder.Body.String(), `"duration"`)

	recorder = serve(router, http.MethodGet, "/api/call-log?search=Nami", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Nami", calls.lastSearch)
	assert.Contains(t, recorder.Body.String(), `"is_root":true`)
}

func TestListFailureIsInternalError(t *testing.T) {
	router := newTestRouter(&fakeCalls{listErr: errors.New("boom")})

	recorder := serve(router, http.MethodGet, "/api/call-data", "")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "boom")
}

func TestClearData(t *testing.T) {
	calls := &fakeCalls{}
	router := newTestRouter(calls)

	recorder := serve(router, http.MethodPost, "/api/clear-data", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, calls.cleared)
}

func TestAgentStatusEndpoints(t *testing.T) {
	router := newTestRouter(&fakeCalls{})

	recorder := serve(router, http.MethodPost, "/api/stream/agent-status", `{"hour": 9}`)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = serve(router, http.MethodPost, "/api/stream/agent-status", ``)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = serve(router, http.MethodPost, "/api/stream/profile-availability", `{"hour": 9}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = serve(router, http.MethodGet, "/api/agent-status-data", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"user_id":"u-1"`)

	recorder = serve(router, http.MethodGet, "/api/profile-availability-data", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"Lunch":60`)
}

func TestBodyLimit(t *testing.T) {
	calls := &fakeCalls{}
	gin.SetMode(gin.TestMode)

	server := NewServer(calls, fakeAgentStatus{})
	server.MaxBodyBytes = 8

	recorder := serve(server.Router(), http.MethodPost, "/api/stream", `{"call_id": "too long"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, calls.ingested)
}
