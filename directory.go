package main

import (
	"context"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/dbricks-groups/client/groups"
)

// GroupReader is the read side of the groups API used to build snapshots.
type GroupReader interface {
	ListAllGroups(ctx context.Context, ws client.Workspace) ([]string, error)
	ListGroupMembers(ctx context.Context, ws client.Workspace, groupName string) ([]groups.Member, error)
}

// GroupWriter is the write side of the groups API used to replay snapshots.
type GroupWriter interface {
	CreateGroup(ctx context.Context, ws client.Workspace, groupName string) (*client.Response, error)
	DeleteGroup(ctx context.Context, ws client.Workspace, groupName string) (*client.Response, error)
	AddUserToGroup(ctx context.Context, ws client.Workspace, userName, parentName string) (*client.Response, error)
	AddGroupToGroup(ctx context.Context, ws client.Workspace, groupName, parentName string) (*client.Response, error)
}

var (
	_ GroupReader = (*groups.GroupsClient)(nil)
	_ GroupWriter = (*groups.GroupsClient)(nil)
)
