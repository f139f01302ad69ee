package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/dbricks-groups/client/groups"
	"github.com/cyverse-de/dbricks-groups/snapshot"
	"github.com/cyverse-de/messaging/v9"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/streadway/amqp"
)

func newReportCommand(a *app) *cobra.Command {
	var groupName, output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a membership snapshot of one group or every group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.reporter().BuildSnapshot(cmd.Context(), groupName)
			if err != nil && report == nil {
				return err
			}

			if output == "" {
				if werr := report.Snapshot.Write(cmd.OutOrStdout()); werr != nil {
					return werr
				}
			} else if werr := report.Snapshot.WriteFile(output); werr != nil {
				return werr
			}

			log.Infof("Wrote snapshot: %s", report)
			return err
		},
	}

	cmd.Flags().StringVar(&groupName, "group", "", "Only report this group")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the snapshot here instead of stdout")
	return cmd
}

func newRecreateCommand(a *app) *cobra.Command {
	var input, newGroupName string

	cmd := &cobra.Command{
		Use:   "recreate",
		Short: "Delete and recreate groups from a snapshot, or clone one group into a new name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				snap snapshot.Snapshot
				err  error
			)
			if input == "-" {
				snap, err = snapshot.Read(cmd.InOrStdin())
			} else {
				snap, err = snapshot.ReadFile(input)
			}
			if err != nil {
				return err
			}

			mode := RecreateAll()
			if newGroupName != "" {
				mode = RecreateSingle(newGroupName)
			}

			result, err := a.recreator().Recreate(cmd.Context(), snap, mode)
			if err != nil {
				return err
			}

			for _, g := range result.Groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tdeleted=%t created=%t members=%d\n", g.Name, g.Deleted, g.Created, len(g.Added))
			}
			return result.Err()
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Snapshot file to replay, or - for stdin")
	cmd.Flags().StringVar(&newGroupName, "new-group-name", "", "Clone the first group in the snapshot into this group")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newMemberOfCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "member-of USER",
		Short: "List the groups a user belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.groups.ListGroupsForUser(cmd.Context(), a.workspace, args[0])
			if err != nil {
				return errors.Wrapf(err, "Failed listing groups for %s", args[0])
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// newMemberCommand exposes the single-member add/remove calls, mostly for
// fixing up a group by hand after a recreate.
func newMemberCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Add or remove a single group member",
	}

	type memberOp func(gc *groups.GroupsClient, ctx context.Context, ws client.Workspace, name, parent string) (*client.Response, error)

	sub := func(use, short string, userOp, groupOp memberOp) *cobra.Command {
		var user, group string
		c := &cobra.Command{
			Use:   use + " PARENT",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				op, name := userOp, user
				if group != "" {
					op, name = groupOp, group
				}
				resp, err := op(a.groups, cmd.Context(), a.workspace, name, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp)
				return nil
			},
		}
		c.Flags().StringVar(&user, "user", "", "User to add or remove")
		c.Flags().StringVar(&group, "group", "", "Group to add or remove")
		c.MarkFlagsMutuallyExclusive("user", "group")
		c.MarkFlagsOneRequired("user", "group")
		return c
	}

	cmd.AddCommand(
		sub("add", "Add a user or group to PARENT",
			(*groups.GroupsClient).AddUserToGroup, (*groups.GroupsClient).AddGroupToGroup),
		sub("remove", "Remove a user or group from PARENT",
			(*groups.GroupsClient).RemoveUserFromGroup, (*groups.GroupsClient).RemoveGroupFromGroup),
	)
	return cmd
}

func newListenCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Run report and recreate requests received over AMQP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateAMQP(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listenClient, err := messaging.NewClient(a.cfg.AMQPURI, true)
			if err != nil {
				return errors.Wrap(err, "Unable to create the messaging listen client")
			}
			defer listenClient.Close()

			publishClient, err := messaging.NewClient(a.cfg.AMQPURI, true)
			if err != nil {
				return errors.Wrap(err, "Unable to create the messaging publish client")
			}
			defer publishClient.Close()

			if err = publishClient.SetupPublishing(a.cfg.AMQPExchangeName); err != nil {
				return errors.Wrap(err, "Unable to set up message publishing")
			}

			go listenClient.Listen()

			listener := NewListener(a.reporter(), a.recreator(), publishClient)

			queueName := getQueueName(a.cfg.AMQPQueuePrefix)
			listenClient.AddConsumerMulti(
				a.cfg.AMQPExchangeName,
				a.cfg.AMQPExchangeType,
				queueName,
				[]string{reportKey, recreateKey},
				func(ctx context.Context, del amqp.Delivery) {
					err := listener.Handle(ctx, del.RoutingKey, del.Body)
					if err != nil {
						log.Error(errors.Wrap(err, "Error handling message"))
						err = del.Reject(!del.Redelivered)
					} else {
						err = del.Ack(false)
					}

					if err != nil {
						log.Error(errors.Wrap(err, fmt.Sprintf("Error ack/rejecting message: %s", del.RoutingKey)))
					}
				},
				1)

			log.Infof("Listening on queue %s", queueName)
			<-ctx.Done()
			return nil
		},
	}
}
