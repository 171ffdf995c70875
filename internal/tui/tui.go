// Package tui is the interactive results dashboard: a topic picker and the hierarchical
// results table with its bulk actions.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"verdict-cli/internal/api"
	"verdict-cli/internal/store"
)

type Options struct {
	Service api.Service
	Store   store.Store
	Config  *store.GlobalConfig
	Logger  *zap.Logger
	// Timeout bounds each service call; zero leaves it to the client.
	Timeout time.Duration
}

func Run(opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference(opts.Config.Glyphs())

	m := newAppModel(opts)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(appModel); ok && fm.cancel != nil {
		fm.cancel()
	}
	return err
}
