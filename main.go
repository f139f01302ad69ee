package main

import (
	"context"
	"fmt"
	"os"

	l "github.com/cyverse-de/go-mod/logging"
	"github.com/cyverse-de/go-mod/otelutils"

	"github.com/cyverse-de/dbricks-groups/client"
	"github.com/cyverse-de/dbricks-groups/client/groups"
	"github.com/cyverse-de/dbricks-groups/config"
	"github.com/cyverse-de/dbricks-groups/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logging.Log.WithFields(logrus.Fields{"package": "main"})

const serviceName = "dbricks-groups"

const otelName = "github.com/cyverse-de/dbricks-groups"

func getQueueName(prefix string) string {
	if len(prefix) > 0 {
		return fmt.Sprintf("%s.%s", prefix, serviceName)
	}
	return serviceName
}

// app is what every subcommand needs once configuration is loaded.
type app struct {
	cfg       *config.Config
	workspace client.Workspace
	groups    *groups.GroupsClient
}

func (a *app) reporter() *Reporter {
	return NewReporter(a.groups, a.workspace, a.cfg.SnapshotReadErrors, a.cfg.SnapshotConcurrency)
}

func (a *app) recreator() *Recreator {
	return NewRecreator(a.groups, a.workspace)
}

func newRootCommand() *cobra.Command {
	var (
		cfgPath  string
		envPath  string
		logLevel string

		a = &app{}
	)

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Snapshot and recreate Databricks workspace groups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			l.SetupLogging(logLevel)

			v, err := config.Load(cfgPath, envPath)
			if err != nil {
				return err
			}
			if a.cfg, err = config.NewFromViper(v); err != nil {
				return err
			}

			a.workspace = client.Workspace{Endpoint: a.cfg.DatabricksHost, Token: a.cfg.DatabricksToken}
			a.groups = groups.NewGroupsClient(client.NewRequester())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "The path to the config file")
	root.PersistentFlags().StringVar(&envPath, "env-file", "", "A dotenv file to load into the environment first")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "One of trace, debug, info, warn, error, fatal, or panic.")

	root.AddCommand(
		newReportCommand(a),
		newRecreateCommand(a),
		newMemberOfCommand(a),
		newMemberCommand(a),
		newListenCommand(a),
	)

	return root
}

func main() {
	var tracerCtx, cancel = context.WithCancel(context.Background())
	defer cancel()
	shutdown := otelutils.TracerProviderFromEnv(tracerCtx, serviceName, func(e error) { log.Fatal(e) })
	defer shutdown()

	if err := newRootCommand().ExecuteContext(tracerCtx); err != nil {
		log.Error(err)
		shutdown()
		os.Exit(1)
	}
}
