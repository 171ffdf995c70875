package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newCriteriaCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "criteria",
		Short: "Perturbation criteria commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the criteria types the service can generate",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.service()
			if err != nil {
				return writeErr(cmd, err)
			}
			types, err := svc.ListCriteriaTypes(commandContext(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": types})
		},
	})
	cmd.AddCommand(newCriteriaShowCmd(app))
	cmd.AddCommand(newCriteriaAddCmd(app))
	cmd.AddCommand(newCriteriaEditCmd(app))
	cmd.AddCommand(newCriteriaDeleteCmd(app))
	cmd.AddCommand(newCriteriaTryCmd(app))
	cmd.AddCommand(newCriteriaDefaultsCmd(app))
	return cmd
}

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Service-side grading cache commands",
	}

	var modelID string
	clearCmd := &cobra.Command{
		Use:   "clear [topic]",
		Short: "Drop the service's cached grades for a topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicArg(app, args, "")
			if err != nil {
				return writeErr(cmd, err)
			}
			m := strings.TrimSpace(modelID)
			if m == "" {
				m = app.config().Model
			}
			svc, err := app.service()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := svc.ClearTopicCache(commandContext(cmd), topic, m); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"topic": topic, "model": m, "cleared": true}})
		},
	}
	clearCmd.Flags().StringVar(&modelID, "model", "", "Grading model id (default: config model)")
	cmd.AddCommand(clearCmd)
	return cmd
}
