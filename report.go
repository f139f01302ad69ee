package main

import (
	"context"
	"fmt"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/dbricks-groups/client/groups"
	"github.com/cyverse-de/dbricks-groups/config"
	"github.com/cyverse-de/dbricks-groups/logging"
	"github.com/cyverse-de/dbricks-groups/snapshot"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Reporter builds group membership snapshots for one workspace.
type Reporter struct {
	directory GroupReader
	workspace client.Workspace

	readErrors  config.ReadErrorPolicy
	concurrency int
}

func NewReporter(directory GroupReader, workspace client.Workspace, readErrors config.ReadErrorPolicy, concurrency int) *Reporter {
	if readErrors == "" {
		readErrors = config.ReadErrorsAsEmpty
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return &Reporter{
		directory:   directory,
		workspace:   workspace,
		readErrors:  readErrors,
		concurrency: concurrency,
	}
}

// Report is the outcome of one snapshot run.
type Report struct {
	Snapshot snapshot.Snapshot

	// WorkspaceUsers holds every distinct user seen, in first-seen order.
	WorkspaceUsers []string
}

// BuildSnapshot records the members of groupName, or of every group in the
// workspace when groupName is empty. A failed member read never stops the
// other groups from being read. Under ReadErrorsAsEmpty such a group is
// recorded with zero members and no error is returned; under ReadErrorsFail
// the same record is kept and the failures are returned together. A cancelled
// context fails the run under either policy and no report is returned.
func (r *Reporter) BuildSnapshot(ctx context.Context, groupName string) (*Report, error) {
	ctx, span := otel.Tracer(otelName).Start(ctx, "BuildSnapshot")
	defer span.End()

	runID, rlog := logging.NewRun(log)
	span.SetAttributes(attribute.String("run_id", runID))

	var names []string
	if groupName == "" {
		var err error
		names, err = r.directory.ListAllGroups(ctx, r.workspace)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			if r.readErrors == config.ReadErrorsFail {
				return nil, errors.Wrap(err, "Failed listing workspace groups")
			}
			rlog.Warn(errors.Wrap(err, "Failed listing workspace groups, reporting none"))
		}
	} else {
		names = []string{groupName}
	}

	records := make(snapshot.Snapshot, len(names))
	failures := make([]error, len(names))

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			records[i], failures[i] = r.readGroup(ctx, rlog, name)
			rlog.Infof("%d. group %q processed", i+1, name)
			return nil
		})
	}
	_ = g.Wait()

	// A cancelled run reads as empty groups, which must never be reported.
	if err := ctx.Err(); err != nil {
		rlog.Warn(errors.Wrap(err, "Snapshot run cancelled"))
		return nil, err
	}

	var result *multierror.Error
	for _, err := range failures {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	report := &Report{
		Snapshot:       records,
		WorkspaceUsers: records.WorkspaceUsers(),
	}
	rlog.Infof("total workspace users seen: %d", len(report.WorkspaceUsers))

	if result != nil && r.readErrors == config.ReadErrorsFail {
		return report, result
	}
	return report, nil
}

func (r *Reporter) readGroup(ctx context.Context, rlog *logrus.Entry, name string) (snapshot.Record, error) {
	rec := snapshot.Record{
		Workspace: r.workspace.Host(),
		GroupName: name,
	}

	members, err := r.directory.ListGroupMembers(ctx, r.workspace, name)
	if err != nil {
		err = errors.Wrapf(err, "Failed listing members of group %s", name)
		rlog.WithFields(logrus.Fields{"group_name": name}).Warn(err)
		return rec, err
	}

	rec.Members = members
	if rec.Members == nil {
		rec.Members = []groups.Member{}
	}
	rec.MembersCount = len(rec.Members)
	return rec, nil
}

func (r *Report) String() string {
	return fmt.Sprintf("%d groups, %d distinct users", len(r.Snapshot), len(r.WorkspaceUsers))
}
