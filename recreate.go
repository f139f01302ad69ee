package main

import (
	"context"
	"net/http"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/dbricks-groups/client/groups"
	"github.com/cyverse-de/dbricks-groups/logging"
	"github.com/cyverse-de/dbricks-groups/snapshot"

	"github.com/cyverse-de/go-mod/restutils"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Mode selects how a snapshot is replayed.
type Mode struct {
	single  bool
	newName string
}

// RecreateAll replays every record onto a group of the recorded name.
func RecreateAll() Mode {
	return Mode{}
}

// RecreateSingle replays only the first record, onto a group called newName.
// Any further records are ignored.
func RecreateSingle(newName string) Mode {
	return Mode{single: true, newName: newName}
}

func (m Mode) Single() bool {
	return m.single
}

func (m Mode) target(rec snapshot.Record) string {
	if m.single {
		return m.newName
	}
	return rec.GroupName
}

func (m Mode) String() string {
	if m.single {
		return "single:" + m.newName
	}
	return "all"
}

// GroupResult says what happened to one target group.
type GroupResult struct {
	Name   string
	Source string

	Deleted bool
	Created bool
	Added   []groups.Member

	Errors error
}

type Result struct {
	Groups []GroupResult
}

// Err collects every failure from every group, or nil.
func (r *Result) Err() error {
	var result *multierror.Error
	for _, g := range r.Groups {
		if g.Errors != nil {
			result = multierror.Append(result, g.Errors)
		}
	}
	return result.ErrorOrNil()
}

// Recreator deletes, recreates and repopulates groups from a snapshot.
type Recreator struct {
	directory GroupWriter
	workspace client.Workspace
}

func NewRecreator(directory GroupWriter, workspace client.Workspace) *Recreator {
	return &Recreator{
		directory: directory,
		workspace: workspace,
	}
}

// Recreate replays snap in order. Individual delete, create and add failures
// are recorded in the result and never stop the run; the returned error is
// only set for a bad mode or a cancelled context.
func (r *Recreator) Recreate(ctx context.Context, snap snapshot.Snapshot, mode Mode) (*Result, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "Recreate")
	defer span.End()

	if mode.single && mode.newName == "" {
		return nil, errors.New("a new group name is required to recreate a single group")
	}

	runID, rlog := logging.NewRun(log)
	span.SetAttributes(attribute.String("run_id", runID), attribute.String("mode", mode.String()))

	result := &Result{}
	for _, rec := range snap {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Groups = append(result.Groups, r.recreateGroup(ctx, rlog, rec, mode.target(rec)))

		if mode.single {
			break
		}
	}

	return result, nil
}

func (r *Recreator) recreateGroup(ctx context.Context, rlog *logrus.Entry, rec snapshot.Record, name string) GroupResult {
	glog := rlog.WithFields(logrus.Fields{"group_name": name, "source_group": rec.GroupName})
	gr := GroupResult{Name: name, Source: rec.GroupName}

	var errs *multierror.Error

	if rec.Workspace != "" && rec.Workspace != r.workspace.Host() {
		glog.Infof("snapshot was taken in workspace %s, applying to %s", rec.Workspace, r.workspace.Host())
	}

	resp, err := r.directory.DeleteGroup(ctx, r.workspace, name)
	switch {
	case restutils.GetStatusCode(err) == http.StatusNotFound:
		glog.Debug("group did not exist before recreation")
	case err != nil:
		glog.Warn(errors.Wrapf(err, "Failed deleting group %s", name))
		errs = multierror.Append(errs, errors.Wrapf(err, "delete group %s", name))
	default:
		gr.Deleted = true
		glog.Infof("delete group %q: %s", name, resp)
	}

	resp, err = r.directory.CreateGroup(ctx, r.workspace, name)
	if err != nil {
		glog.Error(errors.Wrapf(err, "Failed creating group %s", name))
		errs = multierror.Append(errs, errors.Wrapf(err, "create group %s", name))
	} else {
		gr.Created = true
		glog.Infof("create group %q: %s", name, resp)
	}

	for _, m := range rec.Members {
		switch m.Kind {
		case groups.UserMember:
			resp, err = r.directory.AddUserToGroup(ctx, r.workspace, m.Name, name)
		case groups.GroupMember:
			resp, err = r.directory.AddGroupToGroup(ctx, r.workspace, m.Name, name)
		default:
			err = errors.Errorf("member %q has unknown kind %d", m.Name, m.Kind)
		}

		if err != nil {
			glog.Warn(errors.Wrapf(err, "Failed adding %s to group %s", m, name))
			errs = multierror.Append(errs, errors.Wrapf(err, "add %s to group %s", m, name))
			continue
		}
		gr.Added = append(gr.Added, m)
		glog.Infof("add %s %q to group %q: %s", m.Kind, m.Name, name, resp)
	}

	gr.Errors = errs.ErrorOrNil()
	glog.Infof("recreated group %q with %d of %d members", name, len(gr.Added), len(rec.Members))
	return gr
}
