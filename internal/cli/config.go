package cli

import (
	"github.com/spf13/cobra"

	"verdict-cli/internal/store"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change ~/.verdict/config.json",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the configuration (token masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config()
			path, _ := store.ConfigPath()
			return writeOut(cmd, app, map[string]any{
				"data": cfg.Redacted(),
				"meta": map[string]any{
					"path":              path,
					"effectiveApiUrl":   cfg.EffectiveAPIURL(),
					"effectivePageSize": cfg.EffectivePageSize(),
					"keys":              store.ConfigKeys,
				},
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration key (empty value clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config()
			if err := cfg.Set(args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cfg.Redacted()})
		},
	})
	return cmd
}
