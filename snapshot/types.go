package snapshot

import (
	"github.com/cyverse-de/dbricks-groups/client/groups"
)

// Record is the point-in-time state of one group. Members is nil when the
// member list could not be read; that record still carries a count of 0.
type Record struct {
	Workspace    string          `json:"workspace"`
	GroupName    string          `json:"group_name"`
	MembersCount int             `json:"group_members_count"`
	Members      []groups.Member `json:"group_members"`
}

// Snapshot is an ordered list of group records. It's never modified once built.
type Snapshot []Record

// WorkspaceUsers returns every distinct user member across all records, in
// the order they were first seen. Nested groups are left out.
func (s Snapshot) WorkspaceUsers() []string {
	seen := make(map[string]bool)
	users := []string{}
	for _, r := range s {
		for _, m := range r.Members {
			if !m.IsUser() || seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			users = append(users, m.Name)
		}
	}
	return users
}

// GroupNames lists the recorded group names in snapshot order.
func (s Snapshot) GroupNames() []string {
	names := make([]string, 0, len(s))
	for _, r := range s {
		names = append(names, r.GroupName)
	}
	return names
}
