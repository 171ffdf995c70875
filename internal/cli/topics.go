package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"verdict-cli/internal/store"
)

func newTopicsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "topics",
		Aliases: []string{"topic"},
		Short:   "Topic commands",
	}
	cmd.AddCommand(newTopicsListCmd(app))
	cmd.AddCommand(newTopicsUseCmd(app))
	cmd.AddCommand(newTopicsCreateCmd(app))
	return cmd
}

func newTopicsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			svc, err := app.service()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := app.store()
			if err != nil {
				return writeErr(cmd, err)
			}
			topics, err := svc.ListTopics(ctx)
			if err != nil {
				cached, cerr := st.LoadTopics(ctx)
				if cerr != nil || len(cached) == 0 {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{
					"data":   cached,
					"meta":   map[string]any{"current": app.config().CurrentTopic},
					"_hints": []string{"showing cached topics: " + err.Error()},
				})
			}
			if err := st.SaveTopics(ctx, topics); err != nil {
				app.logger().Warn("cache topics failed", zap.Error(err))
			}
			return writeOut(cmd, app, map[string]any{
				"data": topics,
				"meta": map[string]any{"current": app.config().CurrentTopic},
			})
		},
	}
	return cmd
}

func newTopicsUseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <topic>",
		Short: "Set the current topic used by the TUI and as the default --topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config()
			cfg.CurrentTopic = strings.TrimSpace(args[0])
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"currentTopic": cfg.CurrentTopic}})
		},
	}
	return cmd
}
