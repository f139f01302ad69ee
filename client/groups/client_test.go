package groups

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/go-mod/restutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]string
	Auth   string
}

type requestRecorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (rr *requestRecorder) record(r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  map[string]string{},
		Auth:   r.Header.Get("Authorization"),
	}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.reqs = append(rr.reqs, rec)
}

func (rr *requestRecorder) last(t *testing.T) recordedRequest {
	t.Helper()
	rr.mu.Lock()
	defer rr.mu.Unlock()
	require.NotEmpty(t, rr.reqs)
	return rr.reqs[len(rr.reqs)-1]
}

func jsonHandler(rec *requestRecorder, status int, respBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}
}

func newTestClient(t *testing.T, h http.Handler) (*GroupsClient, client.Workspace) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGroupsClient(nil), client.Workspace{Endpoint: srv.URL, Token: "dapi-test"}
}

func TestListAllGroups(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 200, `{"group_names":["admins","users","analysts"]}`))

	names, err := gc.ListAllGroups(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, []string{"admins", "users", "analysts"}, names)

	req := rec.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/2.0/groups/list", req.Path)
	assert.Equal(t, "Bearer dapi-test", req.Auth)
}

func TestListAllGroups_EmptyIsNotAnError(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 200, `{}`))

	names, err := gc.ListAllGroups(context.Background(), ws)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestListAllGroups_Failure(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 403, `{"error_code":"PERMISSION_DENIED","message":"nope"}`))

	names, err := gc.ListAllGroups(context.Background(), ws)
	require.Error(t, err)
	assert.Nil(t, names)
	assert.Equal(t, http.StatusForbidden, restutils.GetStatusCode(err))
}

func TestListGroupMembers(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 200,
		`{"members":[{"user_name":"alice@example.com"},{"group_name":"B"}]}`))

	members, err := gc.ListGroupMembers(context.Background(), ws, "A")
	require.NoError(t, err)
	assert.Equal(t, []Member{User("alice@example.com"), Group("B")}, members)

	req := rec.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/2.0/groups/list-members", req.Path)
	assert.Equal(t, "A", req.Query["group_name"])
}

func TestListGroupMembers_EmptyVersusFailed(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 200, `{}`))

	members, err := gc.ListGroupMembers(context.Background(), ws, "empty")
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)

	gc, ws = newTestClient(t, jsonHandler(rec, 404, `{"error_code":"RESOURCE_DOES_NOT_EXIST","message":"missing"}`))
	members, err = gc.ListGroupMembers(context.Background(), ws, "missing")
	require.Error(t, err)
	assert.Nil(t, members)
	assert.Equal(t, http.StatusNotFound, restutils.GetStatusCode(err))
}

func TestListGroupMembers_UntaggedMember(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 200, `{"members":[{"display_name":"who"}]}`))

	_, err := gc.ListGroupMembers(context.Background(), ws, "A")
	assert.Error(t, err)
}

func TestListGroupsForUser(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 200, `{"group_names":["A","B"]}`))

	names, err := gc.ListGroupsForUser(context.Background(), ws, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)

	req := rec.last(t)
	assert.Equal(t, "/api/2.0/groups/list-parents", req.Path)
	assert.Equal(t, "bob@example.com", req.Query["user_name"])
}

func TestWriteOperations(t *testing.T) {
	tests := []struct {
		name     string
		call     func(gc *GroupsClient, ws client.Workspace) (*client.Response, error)
		wantPath string
		wantBody map[string]string
	}{
		{
			name: "create",
			call: func(gc *GroupsClient, ws client.Workspace) (*client.Response, error) {
				return gc.CreateGroup(context.Background(), ws, "A")
			},
			wantPath: "/api/2.0/groups/create",
			wantBody: map[string]string{"group_name": "A"},
		},
		{
			name: "delete",
			call: func(gc *GroupsClient, ws client.Workspace) (*client.Response, error) {
				return gc.DeleteGroup(context.Background(), ws, "A")
			},
			wantPath: "/api/2.0/groups/delete",
			wantBody: map[string]string{"group_name": "A"},
		},
		{
			name: "add user",
			call: func(gc *GroupsClient, ws client.Workspace) (*client.Response, error) {
				return gc.AddUserToGroup(context.Background(), ws, "alice", "A")
			},
			wantPath: "/api/2.0/groups/add-member",
			wantBody: map[string]string{"user_name": "alice", "parent_name": "A"},
		},
		{
			name: "remove user",
			call: func(gc *GroupsClient, ws client.Workspace) (*client.Response, error) {
				return gc.RemoveUserFromGroup(context.Background(), ws, "alice", "A")
			},
			wantPath: "/api/2.0/groups/remove-member",
			wantBody: map[string]string{"user_name": "alice", "parent_name": "A"},
		},
		{
			name: "add group",
			call: func(gc *GroupsClient, ws client.Workspace) (*client.Response, error) {
				return gc.AddGroupToGroup(context.Background(), ws, "B", "A")
			},
			wantPath: "/api/2.0/groups/add-member",
			wantBody: map[string]string{"group_name": "B", "parent_name": "A"},
		},
		{
			name: "remove group",
			call: func(gc *GroupsClient, ws client.Workspace) (*client.Response, error) {
				return gc.RemoveGroupFromGroup(context.Background(), ws, "B", "A")
			},
			wantPath: "/api/2.0/groups/remove-member",
			wantBody: map[string]string{"group_name": "B", "parent_name": "A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &requestRecorder{}
			gc, ws := newTestClient(t, jsonHandler(rec, 200, `{}`))

			resp, err := tt.call(gc, ws)
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			req := rec.last(t)
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, tt.wantPath, req.Path)
			assert.Equal(t, tt.wantBody, req.Body)
		})
	}
}

func TestWriteOperations_PropagateFailure(t *testing.T) {
	rec := &requestRecorder{}
	gc, ws := newTestClient(t, jsonHandler(rec, 400, `{"error_code":"RESOURCE_ALREADY_EXISTS","message":"Group A already exists"}`))

	resp, err := gc.CreateGroup(context.Background(), ws, "A")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, restutils.GetStatusCode(err))
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "already exists")
}
