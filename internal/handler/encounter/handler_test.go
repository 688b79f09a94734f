package encounter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	encounterHandler "github.com/clinicflow/encounter-api/internal/handler/encounter"
	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository/memory"
	"github.com/clinicflow/encounter-api/internal/service/allocator"
	"github.com/clinicflow/encounter-api/internal/service/encounter"
	"github.com/clinicflow/encounter-api/internal/service/event"
	"github.com/clinicflow/encounter-api/internal/service/routing"
	"github.com/clinicflow/encounter-api/pkg/httputil"
)

type testServer struct {
	engine    *gin.Engine
	allocator *allocator.Service
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)

	encounters := memory.NewEncounterRepository()
	resources := memory.NewResourceRepository()
	events := event.NewService(memory.NewOutboxRepository())

	alloc := allocator.NewService(encounters, resources, nil)
	encounterSvc := encounter.NewService(encounters, alloc, events, nil)
	routingSvc := routing.NewService(encounters, events, nil)

	engine := gin.New()
	h := encounterHandler.NewHandler(encounterSvc, alloc, routingSvc)
	h.RegisterRoutes(engine.Group("/api/v1"))

	return &testServer{engine: engine, allocator: alloc}
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *httputil.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, &resp
}

func (s *testServer) checkIn(t *testing.T) string {
	t.Helper()
	rec, resp := s.request(t, http.MethodPost, "/api/v1/encounters", map[string]interface{}{
		"patient_id": uuid.New(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return resp.Data.(map[string]interface{})["id"].(string)
}

func TestCheckInAndGet(t *testing.T) {
	s := newTestServer()
	id := s.checkIn(t)

	rec, resp := s.request(t, http.MethodGet, "/api/v1/encounters/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, string(model.EncounterStatusCheckedIn), data["status"])
}

func TestCheckInMissingPatient(t *testing.T) {
	s := newTestServer()

	rec, resp := s.request(t, http.MethodPost, "/api/v1/encounters", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestTransitionEndpoint(t *testing.T) {
	s := newTestServer()
	id := s.checkIn(t)
	actor := uuid.New()

	rec, resp := s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/transition", id), map[string]interface{}{
		"target":   "in_room",
		"actor_id": actor,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "in_room", data["status"])
	assert.NotNil(t, data["room_assigned_at"])

	// Skipping a phase conflicts.
	rec, resp = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/transition", id), map[string]interface{}{
		"target":   "with_doctor",
		"actor_id": actor,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Error.Retryable)
}

func TestTransitionInvalidID(t *testing.T) {
	s := newTestServer()

	rec, _ := s.request(t, http.MethodPost, "/api/v1/encounters/not-a-uuid/transition", map[string]interface{}{
		"target":   "in_room",
		"actor_id": uuid.New(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomContention(t *testing.T) {
	s := newTestServer()

	room, err := s.allocator.SeedResource(context.Background(), &model.CreateResourceRequest{
		Identifier: "room-1",
		Kind:       model.ResourceKindRoom,
	})
	require.NoError(t, err)

	first := s.checkIn(t)
	second := s.checkIn(t)

	rec, _ := s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/room", first), map[string]interface{}{
		"resource_id": room.ID,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/room", second), map[string]interface{}{
		"resource_id": room.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
}

func TestRouteAndReturnEndpoints(t *testing.T) {
	s := newTestServer()
	id := s.checkIn(t)
	actor := uuid.New()

	for _, target := range []string{"in_room", "vitals_complete", "with_nurse", "waiting_for_doctor", "with_doctor"} {
		rec, _ := s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/transition", id), map[string]interface{}{
			"target":   target,
			"actor_id": actor,
		})
		require.Equal(t, http.StatusOK, rec.Code, "transition to %s", target)
	}

	rec, resp := s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/route", id), map[string]interface{}{
		"department": "lab",
		"actor_id":   actor,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "at_lab", data["status"])
	assert.Equal(t, "lab", data["current_department"])

	rec, _ = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/route", id), map[string]interface{}{
		"department": "imaging",
		"actor_id":   actor,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/encounters/%s/return", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, "with_nurse", data["status"])
	assert.Nil(t, data["current_department"])
}

func TestListEncountersByStatus(t *testing.T) {
	s := newTestServer()
	s.checkIn(t)
	s.checkIn(t)

	rec, resp := s.request(t, http.MethodGet, "/api/v1/encounters?status=checked_in", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 2)

	rec, resp = s.request(t, http.MethodGet, "/api/v1/encounters?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, resp.Data)
}
