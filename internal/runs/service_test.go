package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playbookhq/playbooks/internal/permissions"
	"github.com/playbookhq/playbooks/internal/shared"
	"github.com/playbookhq/playbooks/internal/timeline"
	"github.com/playbookhq/playbooks/internal/users"
)

type stubRuns map[string]Snapshot

func (s stubRuns) Get(ctx context.Context, id string) (Snapshot, error) {
	snap, ok := s[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

type stubAuthz struct{ allowed map[string]bool }

func (a stubAuthz) Authorize(ctx context.Context, playbookID, actorID string, c permissions.Capability) error {
	if a.allowed[actorID] {
		return nil
	}
	return shared.ErrForbidden
}

type stubUsers map[string]users.User

func (s stubUsers) UserByID(ctx context.Context, id string) (users.User, error) {
	u, ok := s[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (s stubUsers) UsersByUsernames(ctx context.Context, names []string) ([]users.User, error) {
	var out []users.User
	for _, u := range s {
		for _, n := range names {
			if u.Username == n {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (s stubUsers) NameDisplay(ctx context.Context, userID string) (string, error) {
	if userID == "viewer" {
		return users.DisplayFullName, nil
	}
	return "", nil
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	userStore := users.NewStore(stubUsers{
		"u1": {ID: "u1", Username: "alice", FirstName: "Alice", LastName: "Liddell"},
		"u2": {ID: "u2", Username: "bob"},
	}, nil, time.Second, time.Minute)

	snap := Snapshot{
		Run: Run{ID: "r1", Name: "Outage", PlaybookID: "pb1", TeamID: "t1"},
		Input: timeline.Input{
			Events: []timeline.Event{
				{ID: "e1", RunID: "r1", EventAt: 100, EventType: timeline.RunCreated, SubjectUserID: "u1"},
				{ID: "e2", RunID: "r1", EventAt: 200, EventType: timeline.OwnerChanged, SubjectUserID: "u2"},
				{ID: "e3", RunID: "r1", EventAt: 300, EventType: timeline.UserJoinedLeft, SubjectUserID: "u1", Details: `{"requester":"bob"}`},
				{ID: "e4", RunID: "r1", EventAt: 400, EventType: timeline.StatusUpdated, SubjectUserID: "gone", PostID: "p1"},
				{ID: "e5", RunID: "r1", EventAt: 500, EventType: timeline.StatusUpdated, SubjectUserID: "u2", PostID: "p2"},
			},
			StatusPosts: []timeline.StatusPost{{ID: "p2", DeleteAt: 900}},
		},
	}

	svc := NewService(ServiceConfig{
		Source:      stubRuns{"r1": snap, "orphan": {Run: Run{ID: "orphan", Name: "Detached", TeamID: "t1"}}},
		Assembler:   timeline.NewAssembler(timeline.Config{Users: userStore}),
		Authorizer:  stubAuthz{allowed: map[string]bool{"viewer": true, "other": true}},
		Preferences: userStore,
		Filters:     shared.NewViewStateStore(client, "test", time.Hour),
	})
	return svc, mr
}

func eventIDs(events []timeline.EnrichedEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestTimelineUsesDefaultFilter(t *testing.T) {
	svc, _ := newTestService(t)
	events, err := svc.Timeline(context.Background(), "r1", "viewer")
	require.NoError(t, err)

	// e4 is dropped (unknown subject), e3 is hidden by the default filter.
	assert.Equal(t, []string{"e5", "e2", "e1"}, eventIDs(events))
	assert.Equal(t, int64(900), events[0].StatusDeleteAt)
	assert.Equal(t, "Alice Liddell", events[2].SubjectDisplayName)
}

func TestSelectOptionPersistsPerActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	opts, err := svc.SelectOption(ctx, "r1", "viewer", timeline.FilterAll, true)
	require.NoError(t, err)
	assert.True(t, opts[0].Selected)

	events, err := svc.Timeline(ctx, "r1", "viewer")
	require.NoError(t, err)
	assert.Equal(t, []string{"e5", "e3", "e2", "e1"}, eventIDs(events))
	assert.Equal(t, "bob", events[1].RequesterDisplayName)

	events, err = svc.Timeline(ctx, "r1", "other")
	require.NoError(t, err)
	assert.Len(t, events, 3)

	opts, err = svc.ResetFilter(ctx, "r1", "viewer")
	require.NoError(t, err)
	assert.False(t, opts[0].Selected)
	events, err = svc.Timeline(ctx, "r1", "viewer")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestSelectOptionRejectsUnknownValue(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SelectOption(context.Background(), "r1", "viewer", "weather", true)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.ErrorIs(t, err, timeline.ErrUnknownEventType)
}

func TestCorruptStoredFilterFallsBackToDefault(t *testing.T) {
	svc, mr := newTestService(t)
	require.NoError(t, mr.Set("test:viewer:timeline_filter:r1", `{"weather":true}`))

	opts, err := svc.FilterOptions(context.Background(), "r1", "viewer")
	require.NoError(t, err)
	f := timeline.DefaultFilter()
	assert.Equal(t, f.Options(), opts)
}

func TestTimelineAccessErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Timeline(ctx, "r1", "stranger")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Timeline(ctx, "missing", "viewer")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Timeline(ctx, "r1", "")
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = svc.Timeline(ctx, "orphan", "viewer")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.FilterOptions(ctx, "orphan", "viewer")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func newTestRouter(t *testing.T, actor string) http.Handler {
	t.Helper()
	svc, _ := newTestService(t)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/runs", NewHandler(nil, svc).MountRoutes)
	return r
}

func TestHandlerTimelineAndFilter(t *testing.T) {
	router := newTestRouter(t, "viewer")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/r1/timeline", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var events []timeline.EnrichedEvent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	assert.Equal(t, []string{"e5", "e2", "e1"}, eventIDs(events))

	rr = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"value":"user_joined_left","checked":true}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/runs/r1/timeline/filter", body))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/r1/timeline", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	assert.Equal(t, []string{"e5", "e3", "e2", "e1"}, eventIDs(events))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/runs/r1/timeline/filter", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var opts []timeline.Option
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &opts))
	require.Len(t, opts, 7)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/r1/timeline/filter", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerRejectsBadFilterBodies(t *testing.T) {
	router := newTestRouter(t, "viewer")
	for _, body := range []string{`{"checked":true}`, `not json`, `{"value":"weather","checked":true}`, `{"value":"all","extra":1}`} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/runs/r1/timeline/filter", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}

	rr := httptest.NewRecorder()
	newTestRouter(t, "stranger").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/r1/timeline", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
