package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/CrowderSoup/launchpad/alerts"
	"github.com/CrowderSoup/launchpad/launch"
)

func alertsCmd(flags *rootFlags) *cobra.Command {
	var (
		notify bool
		asJSON bool
		date   string
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List overdue tasks across every project",
		Long: `List the overdue-task alerts the dashboard would show today.

Examples:
  launchpad alerts
  launchpad alerts --json
  launchpad alerts --notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(flags.configPath, flags.envFile)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			today := launch.DateOf(time.Now())
			if date != "" {
				today = launch.Date(date)
				if !today.Valid() {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
				}
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			projects, err := a.projects.Projects(cmd.Context())
			if err != nil {
				return err
			}
			set := alerts.Derive(projects, today)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(set); err != nil {
					return err
				}
			} else {
				printAlerts(cmd.OutOrStdout(), set)
			}

			if !notify {
				return nil
			}
			failed := 0
			for _, alert := range set {
				if err := a.notifier.Notify(cmd.Context(), alert); err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "notify %s: %v\n", alert.RecipientEmail, err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d notifications failed", failed, len(set))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "email the assignee of every overdue task")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	cmd.Flags().StringVar(&date, "date", "", "evaluate as of this date (YYYY-MM-DD)")
	return cmd
}

func printAlerts(w io.Writer, set []launch.Alert) {
	if len(set) == 0 {
		fmt.Fprintln(w, "No overdue tasks.")
		return
	}
	for _, a := range set {
		fmt.Fprintf(w, "[%s] %s (%s)\n", a.Level, a.Message, a.RecipientEmail)
	}
}
