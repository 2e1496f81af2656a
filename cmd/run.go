package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/marvin/internal/config"
	"github.com/danielolaszy/marvin/internal/engine"
	"github.com/danielolaszy/marvin/internal/logging"
	"github.com/danielolaszy/marvin/internal/templates"
	"github.com/danielolaszy/marvin/internal/tracker"
	"github.com/danielolaszy/marvin/pkg/models"
)

// runCmd runs every configured action once and exits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured actions once",
	Long: `Run the configured actions once, in the order they are declared.

For each action, tickets of the listed projects and statuses that were last
updated between start_date and time_range days ago receive a comment rendered
from the action's template. Actions with close_ticket move them to the
configured closed status; actions with change_status_to move them to that status.

Use --action to run only some actions and --dry-run to see what would happen
without changing any ticket.

Example:
  marvin run -c config.yaml --action remind-feedback --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}

		names, err := cmd.Flags().GetStringArray("action")
		if err != nil {
			return err
		}

		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		actions, err := cfg.SelectActions(names)
		if err != nil {
			return err
		}

		client, err := connectTracker(cmd.Context(), cfg.Tracker)
		if err != nil {
			return err
		}

		_, err = executeRun(cmd.Context(), cfg, client, actions, runOptions{dryRun: dryRun})
		return err
	},
}

type runOptions struct {
	dryRun   bool
	recorder engine.Recorder
}

// executeRun runs actions against client with a fresh template cache and logs
// the run report, complete or partial.
func executeRun(ctx context.Context, cfg *config.Config, client tracker.Client, actions []models.Action, opts runOptions) (*engine.Report, error) {
	renderer := templates.NewRenderer(templates.NewDirStore(cfg.Templates.Dir))

	engineOpts := []engine.Option{
		engine.WithLogger(logging.GetLogger()),
		engine.WithLocation(cfg.Location()),
		engine.WithNoBotTag(cfg.Tracker.NoBotTag),
		engine.WithDryRun(opts.dryRun),
	}
	if cfg.NeedsClosedStatus(actions) {
		engineOpts = append(engineOpts, engine.WithClosedStatus(cfg.Tracker.IssueClosedStatus, cfg.Tracker.StrictClosedStatus))
	}
	if opts.recorder != nil {
		engineOpts = append(engineOpts, engine.WithRecorder(opts.recorder))
	}

	logging.Info("starting run",
		"tracker", client.Name(),
		"actions", len(actions),
		"dry_run", opts.dryRun)

	report, err := engine.New(client, renderer, engineOpts...).Run(ctx, actions)
	report.Log(logging.GetLogger())
	if err != nil {
		return report, fmt.Errorf("run failed: %w", err)
	}

	logging.Info("run finished", "actions", len(report.Actions))
	return report, nil
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "decide and render without updating any ticket")
	runCmd.Flags().StringArray("action", nil, "run only the named action (repeatable)")
}
