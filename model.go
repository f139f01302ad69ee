package main

import (
	"github.com/cyverse-de/dbricks-groups/snapshot"
)

const (
	reportKey   = "groups.report"
	recreateKey = "groups.recreate"
	snapshotKey = "groups.snapshot"
)

// ReportRequest is the optional body of a groups.report message. An empty
// group name reports every group.
type ReportRequest struct {
	GroupName string `json:"group_name"`
}

// RecreateRequest is the body of a groups.recreate message. A non-empty
// NewGroupName clones the first snapshot record into that group only.
type RecreateRequest struct {
	NewGroupName string            `json:"new_group_name,omitempty"`
	Snapshot     snapshot.Snapshot `json:"snapshot"`
}

func (r RecreateRequest) Mode() Mode {
	if r.NewGroupName != "" {
		return RecreateSingle(r.NewGroupName)
	}
	return RecreateAll()
}
