package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ballot/internal/election"
	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/sensor"
	"github.com/roach88/ballot/internal/store"
	testkit "github.com/roach88/ballot/internal/testutil"
)

type testServer struct {
	router http.Handler
	svc    *election.Service
	store  *store.Store
	reader *sensor.Static
}

func newTestServer(t *testing.T, limiter *RateLimiter) testServer {
	t.Helper()
	st, _ := testkit.OpenStore(t)
	reader := sensor.NewStatic()
	reg := prometheus.NewRegistry()
	svc, err := election.New(st, reader,
		election.WithMetrics(metrics.NewCollector(reg)),
		election.WithProbeOptions(sensor.WithInterval(time.Millisecond)),
	)
	require.NoError(t, err)
	_, err = svc.Connect(context.Background(), "keypad", sensor.DefaultBaud)
	require.NoError(t, err)

	router := NewRouter(&RouterDeps{
		Service:     svc,
		RateLimiter: limiter,
		Gatherer:    reg,
		Health:      func(ctx context.Context) error { return st.DB().PingContext(ctx) },
	})
	return testServer{router: router, svc: svc, store: st, reader: reader}
}

func (s testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	require.NoError(t, s.store.Close())
	rec = s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestID_Echoed(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "kiosk-7")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "kiosk-7", rec.Header().Get("X-Request-Id"))
}

func TestRegistrants_CRUD(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/registrants", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/registrants", `{"name":"Red"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	red := decodeBody[model.Registrant](t, rec)
	assert.Equal(t, "Red", red.Name)

	rec = s.do(t, http.MethodPost, "/api/registrants", `{"name":"Red"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(model.KindConstraint), decodeBody[errorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPatch, "/api/registrants/1", `{"name":"Crimson"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Crimson", decodeBody[model.Registrant](t, rec).Name)

	rec = s.do(t, http.MethodDelete, "/api/registrants/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/registrants/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistrants_BadInput(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/registrants", `{"name":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(model.KindInvalidInput), decodeBody[errorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/registrants", `{"title":"Red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/registrants/abc", `{"name":"Red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentities_CreateLookupRemove(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/identities", `{"name":"Admin","slot":0,"privilege":"administrator"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	admin := decodeBody[model.Identity](t, rec)
	assert.Equal(t, model.PrivilegeAdministrator, admin.Privilege)

	rec = s.do(t, http.MethodPost, "/api/identities", `{"name":"Other","slot":0}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/identities", `{"name":"Bad","slot":1,"privilege":"king"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/identities/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin.ID, decodeBody[model.Identity](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/identities/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/identities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Identity](t, rec), 1)

	rec = s.do(t, http.MethodDelete, "/api/identities/0", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/identities/0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdentities_EnrollAndUnenroll(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/identities", `{"name":"Alice","slot":4,"enroll":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int{4}, s.reader.Slots())

	rec = s.do(t, http.MethodDelete, "/api/identities/4?unenroll=true", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.reader.Slots())
}

func TestKioskResolvesBySlot(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/identities", `{"name":"Alice","slot":2,"enroll":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/identities/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decodeBody[model.Identity](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/identities/3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The reader is never waited on over HTTP.
	rec = s.do(t, http.MethodPost, "/api/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVotes(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	voter, err := s.svc.CreateIdentity(ctx, "Alice", 1, model.PrivilegeOrdinary)
	require.NoError(t, err)
	blue, err := s.svc.CreateRegistrant(ctx, "Blue")
	require.NoError(t, err)

	body := `{"identity_id":` + itoa(voter.ID) + `,"registrant_id":` + itoa(blue.ID) + `}`
	rec := s.do(t, http.MethodPost, "/api/votes", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	vote := decodeBody[model.Vote](t, rec)
	assert.Equal(t, voter.ID, vote.IdentityID)

	rec = s.do(t, http.MethodPost, "/api/votes", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(model.KindAlreadyVoted), decodeBody[errorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/votes", `{"identity_id":`+itoa(voter.ID)+`,"registrant_id":99}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(model.KindUnknownRegistrant), decodeBody[errorResponse](t, rec).Code)
}

func TestTallyAndExport(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	voter, err := s.svc.CreateIdentity(ctx, "Alice", 1, model.PrivilegeOrdinary)
	require.NoError(t, err)
	blue, err := s.svc.CreateRegistrant(ctx, "Blue")
	require.NoError(t, err)
	_, err = s.svc.CreateRegistrant(ctx, "Red")
	require.NoError(t, err)
	_, err = s.svc.CastVote(ctx, voter.ID, blue.ID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/tally", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[{"party":"Blue","votes":1},{"party":"Red","votes":0}],"orphaned":0}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/tally.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Party,Votes\nBlue,1\nRed,0\n", rec.Body.String())
}

func TestTally_EmptyRowsIsArray(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/tally", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[],"orphaned":0}`, rec.Body.String())
}

func TestAudit_Filters(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	_, err := s.svc.CreateRegistrant(ctx, "Blue")
	require.NoError(t, err)
	_, err = s.svc.CreateRegistrant(ctx, "Red")
	require.NoError(t, err)
	_, err = s.svc.CreateIdentity(ctx, "Alice", 1, model.PrivilegeOrdinary)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.AuditEvent](t, rec), 3)

	rec = s.do(t, http.MethodGet, "/api/audit?event=registrant-created&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]model.AuditEvent](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventRegistrantCreated, events[0].Kind)

	rec = s.do(t, http.MethodGet, "/api/audit?after="+itoa(events[0].ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.AuditEvent](t, rec), 2)

	for _, q := range []string{"event=bogus", "after=-1", "limit=x"} {
		rec = s.do(t, http.MethodGet, "/api/audit?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.svc.CreateRegistrant(context.Background(), "Blue")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ballot_operation")
}

func TestStoreClosed_Returns503(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.store.Close())

	rec := s.do(t, http.MethodGet, "/api/registrants", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(model.KindUnavailable), decodeBody[errorResponse](t, rec).Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.NewError(model.KindAlreadyVoted, "op", ""), http.StatusConflict},
		{model.NewError(model.KindConstraint, "op", ""), http.StatusConflict},
		{model.NewError(model.KindNotFound, "op", ""), http.StatusNotFound},
		{model.NewError(model.KindUnknownRegistrant, "op", ""), http.StatusUnprocessableEntity},
		{model.NewError(model.KindInvalidInput, "op", ""), http.StatusUnprocessableEntity},
		{model.NewError(model.KindSensor, "op", ""), http.StatusServiceUnavailable},
		{model.NewError(model.KindUnavailable, "op", ""), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tally", nil)
	writeError(rec, req, errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
