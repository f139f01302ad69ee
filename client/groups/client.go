package groups

import (
	"context"
	"net/http"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/dbricks-groups/logging"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var log = logging.Log.WithFields(logrus.Fields{"package": "client.groups"})

const otelName = "github.com/cyverse-de/dbricks-groups/client/groups"

const (
	listPath         = "api/2.0/groups/list"
	createPath       = "api/2.0/groups/create"
	deletePath       = "api/2.0/groups/delete"
	listMembersPath  = "api/2.0/groups/list-members"
	addMemberPath    = "api/2.0/groups/add-member"
	removeMemberPath = "api/2.0/groups/remove-member"
	listParentsPath  = "api/2.0/groups/list-parents"
)

// GroupsClient talks to the Databricks groups API. It holds no workspace
// state; every call names the workspace it acts on.
type GroupsClient struct {
	req *client.Requester
}

func NewGroupsClient(req *client.Requester) *GroupsClient {
	if req == nil {
		req = client.NewRequester()
	}
	return &GroupsClient{req: req}
}

// List every group name in the workspace.
func (c *GroupsClient) ListAllGroups(ctx context.Context, ws client.Workspace) ([]string, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "ListAllGroups")
	defer span.End()

	var gn GroupNames
	if _, err := c.req.ReqJSON(ctx, ws, http.MethodGet, listPath, nil, nil, &gn); err != nil {
		return nil, err
	}
	if gn.GroupNames == nil {
		gn.GroupNames = []string{}
	}

	log.WithField("workspace", ws.Host()).Debugf("listed %d groups", len(gn.GroupNames))
	return gn.GroupNames, nil
}

// List the direct members of a group. A nil error with an empty slice means
// the group really has no members.
func (c *GroupsClient) ListGroupMembers(ctx context.Context, ws client.Workspace, groupName string) ([]Member, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "ListGroupMembers")
	defer span.End()
	span.SetAttributes(attribute.String("group_name", groupName))

	var gm GroupMembers
	query := map[string]string{"group_name": groupName}
	if _, err := c.req.ReqJSON(ctx, ws, http.MethodGet, listMembersPath, query, nil, &gm); err != nil {
		return nil, err
	}
	if gm.Members == nil {
		gm.Members = []Member{}
	}
	return gm.Members, nil
}

// List the groups a user directly belongs to.
func (c *GroupsClient) ListGroupsForUser(ctx context.Context, ws client.Workspace, userName string) ([]string, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "ListGroupsForUser")
	defer span.End()

	var gn GroupNames
	query := map[string]string{"user_name": userName}
	if _, err := c.req.ReqJSON(ctx, ws, http.MethodGet, listParentsPath, query, nil, &gn); err != nil {
		return nil, err
	}
	if gn.GroupNames == nil {
		gn.GroupNames = []string{}
	}
	return gn.GroupNames, nil
}

func (c *GroupsClient) CreateGroup(ctx context.Context, ws client.Workspace, groupName string) (*client.Response, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "CreateGroup")
	defer span.End()

	return c.req.ReqJSON(ctx, ws, http.MethodPost, createPath, nil, groupRequest{GroupName: groupName}, nil)
}

func (c *GroupsClient) DeleteGroup(ctx context.Context, ws client.Workspace, groupName string) (*client.Response, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "DeleteGroup")
	defer span.End()

	return c.req.ReqJSON(ctx, ws, http.MethodPost, deletePath, nil, groupRequest{GroupName: groupName}, nil)
}

// Add user userName to group parentName.
func (c *GroupsClient) AddUserToGroup(ctx context.Context, ws client.Workspace, userName, parentName string) (*client.Response, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "AddUserToGroup")
	defer span.End()

	body := memberRequest{UserName: userName, ParentName: parentName}
	return c.req.ReqJSON(ctx, ws, http.MethodPost, addMemberPath, nil, body, nil)
}

func (c *GroupsClient) RemoveUserFromGroup(ctx context.Context, ws client.Workspace, userName, parentName string) (*client.Response, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "RemoveUserFromGroup")
	defer span.End()

	body := memberRequest{UserName: userName, ParentName: parentName}
	return c.req.ReqJSON(ctx, ws, http.MethodPost, removeMemberPath, nil, body, nil)
}

// Add group groupName to group parentName.
func (c *GroupsClient) AddGroupToGroup(ctx context.Context, ws client.Workspace, groupName, parentName string) (*client.Response, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "AddGroupToGroup")
	defer span.End()

	body := memberRequest{GroupName: groupName, ParentName: parentName}
	return c.req.ReqJSON(ctx, ws, http.MethodPost, addMemberPath, nil, body, nil)
}

func (c *GroupsClient) RemoveGroupFromGroup(ctx context.Context, ws client.Workspace, groupName, parentName string) (*client.Response, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "RemoveGroupFromGroup")
	defer span.End()

	body := memberRequest{GroupName: groupName, ParentName: parentName}
	return c.req.ReqJSON(ctx, ws, http.MethodPost, removeMemberPath, nil, body, nil)
}
