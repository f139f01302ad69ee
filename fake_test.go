package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/dbricks-groups/client/groups"
	"github.com/cyverse-de/go-mod/restutils"
)

// fakeDirectory is an in-memory groups API that records every call.
type fakeDirectory struct {
	mu sync.Mutex

	order   []string
	members map[string][]groups.Member

	calls []string

	failList    bool
	failMembers map[string]bool
	failAdd     map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		members:     map[string][]groups.Member{},
		failMembers: map[string]bool{},
		failAdd:     map[string]bool{},
	}
}

func (f *fakeDirectory) addGroup(name string, members ...groups.Member) *fakeDirectory {
	f.order = append(f.order, name)
	f.members[name] = append([]groups.Member{}, members...)
	return f
}

func (f *fakeDirectory) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeDirectory) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeDirectory) has(name string) bool {
	_, ok := f.members[name]
	return ok
}

func notFound(name string) error {
	return restutils.NewHTTPError(http.StatusNotFound, fmt.Sprintf("group %s does not exist", name))
}

func ok() *client.Response {
	return &client.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}
}

func (f *fakeDirectory) ListAllGroups(ctx context.Context, _ client.Workspace) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failList {
		return nil, restutils.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	return append([]string{}, f.order...), nil
}

func (f *fakeDirectory) ListGroupMembers(ctx context.Context, _ client.Workspace, name string) ([]groups.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list-members %s", name)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failMembers[name] {
		return nil, restutils.NewHTTPError(http.StatusInternalServerError, "list-members failed")
	}
	if !f.has(name) {
		return nil, notFound(name)
	}
	return append([]groups.Member{}, f.members[name]...), nil
}

func (f *fakeDirectory) CreateGroup(_ context.Context, _ client.Workspace, name string) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create %s", name)
	if f.has(name) {
		return &client.Response{StatusCode: http.StatusBadRequest}, restutils.NewHTTPError(http.StatusConflict, "exists")
	}
	f.order = append(f.order, name)
	f.members[name] = []groups.Member{}
	return ok(), nil
}

func (f *fakeDirectory) DeleteGroup(_ context.Context, _ client.Workspace, name string) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete %s", name)
	if !f.has(name) {
		return &client.Response{StatusCode: http.StatusNotFound}, notFound(name)
	}
	delete(f.members, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}

	// the workspace also drops the deleted group from every parent
	gone := groups.Group(name)
	for parent, members := range f.members {
		kept := members[:0]
		for _, m := range members {
			if m != gone {
				kept = append(kept, m)
			}
		}
		f.members[parent] = kept
	}
	return ok(), nil
}

func (f *fakeDirectory) add(kind, member, parent string, m groups.Member) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add-%s %s %s", kind, member, parent)
	if f.failAdd[member] {
		return &client.Response{StatusCode: http.StatusBadRequest}, restutils.NewHTTPError(http.StatusBadRequest, "add failed")
	}
	if !f.has(parent) {
		return nil, notFound(parent)
	}
	f.members[parent] = append(f.members[parent], m)
	return ok(), nil
}

func (f *fakeDirectory) AddUserToGroup(_ context.Context, _ client.Workspace, user, parent string) (*client.Response, error) {
	return f.add("user", user, parent, groups.User(user))
}

func (f *fakeDirectory) AddGroupToGroup(_ context.Context, _ client.Workspace, group, parent string) (*client.Response, error) {
	return f.add("group", group, parent, groups.Group(group))
}

// membership returns the sorted member strings of a group, for order-free comparison.
func (f *fakeDirectory) membership(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.members[name] {
		out = append(out, m.String())
	}
	sort.Strings(out)
	return out
}
