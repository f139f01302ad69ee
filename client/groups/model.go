package groups

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// MemberKind says whether a membership entry is a user or a nested group.
type MemberKind int

const (
	UserMember MemberKind = iota
	GroupMember
)

func (k MemberKind) String() string {
	switch k {
	case UserMember:
		return "user"
	case GroupMember:
		return "group"
	default:
		return "unknown"
	}
}

// Member is one entry of a group's member list. On the wire it is either
// {"user_name": ...} or {"group_name": ...}; the kind is fixed at decode time.
type Member struct {
	Kind MemberKind
	Name string
}

func User(name string) Member {
	return Member{Kind: UserMember, Name: name}
}

func Group(name string) Member {
	return Member{Kind: GroupMember, Name: name}
}

func (m Member) IsUser() bool {
	return m.Kind == UserMember
}

func (m Member) String() string {
	return m.Kind.String() + ":" + m.Name
}

type memberJSON struct {
	UserName  *string `json:"user_name,omitempty"`
	GroupName *string `json:"group_name,omitempty"`
}

func (m Member) MarshalJSON() ([]byte, error) {
	var mj memberJSON
	switch m.Kind {
	case UserMember:
		mj.UserName = &m.Name
	case GroupMember:
		mj.GroupName = &m.Name
	default:
		return nil, errors.Errorf("cannot encode member %q with kind %d", m.Name, m.Kind)
	}
	return json.Marshal(mj)
}

// UnmarshalJSON picks the user key over the group key when both are present.
func (m *Member) UnmarshalJSON(data []byte) error {
	var mj memberJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return errors.Wrap(err, "Failed decoding member entry")
	}

	switch {
	case mj.UserName != nil:
		*m = User(*mj.UserName)
	case mj.GroupName != nil:
		*m = Group(*mj.GroupName)
	default:
		return errors.Errorf("member entry %s has neither user_name nor group_name", string(data))
	}
	return nil
}

type GroupNames struct {
	GroupNames []string `json:"group_names"`
}

type GroupMembers struct {
	Members []Member `json:"members"`
}

type groupRequest struct {
	GroupName string `json:"group_name"`
}

type memberRequest struct {
	UserName   string `json:"user_name,omitempty"`
	GroupName  string `json:"group_name,omitempty"`
	ParentName string `json:"parent_name"`
}
