package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/marvin/internal/config"
	"github.com/danielolaszy/marvin/internal/templates"
)

// validateCmd checks the configuration and templates offline.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and templates without contacting the tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		if err := compileTemplates(cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d actions, tracker %s\n", len(cfg.Actions), cfg.Tracker.Type)
		return nil
	},
}

// compileTemplates parses every template an action refers to and reports all
// failures together.
func compileTemplates(cfg *config.Config) error {
	renderer := templates.NewRenderer(templates.NewDirStore(cfg.Templates.Dir))

	var problems []string
	for _, a := range cfg.Actions {
		if err := renderer.Compile(a.Template); err != nil {
			problems = append(problems, fmt.Sprintf("action %s: %v", a.Name, err))
		}
	}

	if len(problems) > 0 {
		return &config.Error{Problems: problems}
	}
	return nil
}
