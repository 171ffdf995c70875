package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"verdict-cli/internal/api"
	"verdict-cli/internal/format"
	"verdict-cli/internal/logging"
	"verdict-cli/internal/store"
	"verdict-cli/internal/tui"
)

type App struct {
	Dir        string
	APIURL     string
	Timeout    time.Duration
	LogLevel   string
	PrettyJSON bool
	Format     string

	cfg *store.GlobalConfig
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "verdict",
		Short:        "Review how an AI grades test statements (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive dashboard
  verdict

  # Scriptable commands
  verdict topics list
  verdict tests list "Solar Energy" --expand-all --sort agreement:desc
  verdict perturbations generate "Solar Energy" t-12 t-13 --types negation,typos
  verdict tests add "Solar Energy" --test "acceptable: Panels need sunlight"
  verdict models use llama-3
  verdict report "Solar Energy" --html --out report.html
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := format.Validate(app.Format); err != nil {
			return err
		}
		cfg, err := store.LoadConfig()
		if err != nil {
			return err
		}
		app.cfg = cfg
		return nil
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app.log != nil {
			_ = app.log.Sync()
		}
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("VERDICT_DIR", ""), "Path to the local cache dir (default: ~/.verdict/cache)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Assessment service base URL (overrides config and VERDICT_API_URL)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", 60*time.Second, "Per-request timeout")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("VERDICT_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("VERDICT_FORMAT", "json"), "Output format (json|edn|yaml)")

	cmd.AddCommand(newTopicsCmd(app))
	cmd.AddCommand(newTestsCmd(app))
	cmd.AddCommand(newPerturbationsCmd(app))
	cmd.AddCommand(newCriteriaCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newCacheCmd(app))
	cmd.AddCommand(newReportCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func runTUI(app *App) error {
	cfg := app.config()
	logPath, err := store.LogPath()
	if err != nil {
		return err
	}
	lvl := app.LogLevel
	if lvl == "" {
		lvl = cfg.LogLevel
	}
	logger, err := logging.New(lvl, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	app.log = logger

	svc, err := app.service()
	if err != nil {
		return err
	}
	st, err := app.store()
	if err != nil {
		return err
	}
	return tui.Run(tui.Options{
		Service: svc,
		Store:   st,
		Config:  cfg,
		Logger:  logger,
		Timeout: app.Timeout,
	})
}

func (app *App) config() *store.GlobalConfig {
	if app.cfg == nil {
		app.cfg = &store.GlobalConfig{}
	}
	return app.cfg
}

func (app *App) logger() *zap.Logger {
	if app.log != nil {
		return app.log
	}
	lvl := app.LogLevel
	if lvl == "" {
		lvl = app.config().LogLevel
	}
	l, err := logging.New(lvl, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		l = zap.NewNop()
	}
	app.log = l
	return l
}

func (app *App) service() (api.Service, error) { return app.client() }

func (app *App) catalog() (api.Catalog, error) { return app.client() }

func (app *App) client() (*api.Client, error) {
	cfg := app.config()
	base := strings.TrimSpace(app.APIURL)
	if base == "" {
		base = cfg.EffectiveAPIURL()
	}
	return api.New(base, cfg.EffectiveToken(),
		api.WithLogger(app.logger().Named("api")),
		api.WithTimeout(app.Timeout))
}

func (app *App) store() (store.Store, error) {
	dir := strings.TrimSpace(app.Dir)
	if dir == "" {
		d, err := store.DefaultDir()
		if err != nil {
			return store.Store{}, err
		}
		dir = d
	}
	s := store.Store{Dir: dir}
	return s, s.Ensure()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
