package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pscheid92/votepulse/internal/domain"
	apperrors "github.com/pscheid92/votepulse/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postState(t *testing.T, url string, body []byte) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func TestHandleRoomInfo(t *testing.T) {
	ts := newTestServer(t)
	ts.join(t, ts.dial(t), "votingRoom", 1)
	ts.join(t, ts.dial(t), "votingRoom", 2)

	status, body := get(t, ts.url+"/api/rooms/votingRoom")

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"room":"votingRoom","members":2}`, string(body))
}

func TestHandleRoomInfo_EmptyRoom(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.url+"/api/rooms/elsewhere")

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"room":"elsewhere","members":0}`, string(body))
}

func TestHandleRoomInfo_HubStopped(t *testing.T) {
	ts := newTestServer(t)
	ts.hub.Stop()

	status, body := get(t, ts.url+"/api/rooms/votingRoom")

	assert.Equal(t, http.StatusServiceUnavailable, status)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, apperrors.TypeUnavailable, resp.Type)
}

func TestHandleRoomState_BroadcastsToAllMembers(t *testing.T) {
	ts := newTestServer(t)
	a := ts.dial(t)
	b := ts.dial(t)
	ts.join(t, a, "votingRoom", 1)
	ts.join(t, b, "votingRoom", 2)
	body, err := json.Marshal(validState())
	require.NoError(t, err)

	status, resp := postState(t, ts.url+"/api/rooms/votingRoom/state", body)

	assert.Equal(t, http.StatusAccepted, status)
	assert.JSONEq(t, `{"room":"votingRoom","members":2}`, string(resp))
	for _, got := range []domain.Message{readMessage(t, a), readMessage(t, b)} {
		assert.Equal(t, domain.EventVotingUpdate, got.Event)
		assert.Equal(t, "votingRoom", got.Room)
		state, err := domain.DecodeState(got.Payload)
		require.NoError(t, err)
		assert.Equal(t, validState(), state)
	}
}

func TestHandleRoomState_RejectsInvalidState(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `hello`},
		{"negative counts", `{"votingData":[{"placeId":1,"date":"2024-12-04","votesCount":-1,"submittedBy":{"role":"operator"}}],"activityLogs":[{}],"votingDates":[],"currentDate":null}`},
		{"missing voting dates", `{"votingData":[],"activityLogs":[],"currentDate":null}`},
		{"log mismatch", `{"votingData":[{"placeId":1,"date":"2024-12-04","votesCount":1,"submittedBy":{"role":"operator"}}],"activityLogs":[],"votingDates":[],"currentDate":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			conn := ts.dial(t)
			ts.join(t, conn, "votingRoom", 1)

			status, body := postState(t, ts.url+"/api/rooms/votingRoom/state", []byte(tt.body))

			assert.Equal(t, http.StatusBadRequest, status)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, apperrors.TypeValidation, resp.Type)
			assertNoMessage(t, conn)
		})
	}
}

func TestHandleRoomState_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)
	body := `{"votingData":[],"pad":"` + strings.Repeat("x", maxMessageSize) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/votingRoom/state", strings.NewReader(body))
	rec := httptest.NewRecorder()

	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body too large")
}

func TestAPIRateLimited(t *testing.T) {
	ts := newTestServer(t, withStrictRateLimit())

	first, _ := get(t, ts.url+"/api/rooms/votingRoom")
	second, body := get(t, ts.url+"/api/rooms/votingRoom")

	assert.Equal(t, http.StatusOK, first)
	assert.Equal(t, http.StatusTooManyRequests, second)
	assert.Contains(t, string(body), "rate_limited")
}
