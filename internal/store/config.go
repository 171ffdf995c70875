package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"verdict-cli/internal/rows"
)

const DefaultAPIURL = "http://localhost:8000"

type GlobalConfig struct {
	// APIURL is the base URL of the assessment service. VERDICT_API_URL wins when set.
	APIURL string `json:"apiUrl,omitempty"`

	// Token is the bearer token sent to the service. VERDICT_TOKEN wins when set.
	Token string `json:"token,omitempty"`

	// CurrentTopic is the topic the TUI opens on launch and the CLI default for --topic.
	CurrentTopic string `json:"currentTopic,omitempty"`

	// PageSize is one of 10/20/30/40/50.
	PageSize int `json:"pageSize,omitempty"`

	// Model is the grading model id passed when clearing a topic's cached grades.
	Model string `json:"model,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`

	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// Glyphs selects the glyph set ("unicode" or "ascii").
	Glyphs string `json:"glyphs,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.verdict).
	if v := strings.TrimSpace(os.Getenv("VERDICT_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".verdict"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LogPath is where the TUI writes its log.
func LogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "verdict.log"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

// SaveConfig writes cfg atomically. The file holds a token, so it is private to the user.
func SaveConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

// EffectiveAPIURL applies the environment override and the default.
func (c *GlobalConfig) EffectiveAPIURL() string {
	if v := strings.TrimSpace(os.Getenv("VERDICT_API_URL")); v != "" {
		return v
	}
	if c != nil && strings.TrimSpace(c.APIURL) != "" {
		return strings.TrimSpace(c.APIURL)
	}
	return DefaultAPIURL
}

func (c *GlobalConfig) EffectiveToken() string {
	if v := strings.TrimSpace(os.Getenv("VERDICT_TOKEN")); v != "" {
		return v
	}
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Token)
}

func (c *GlobalConfig) EffectivePageSize() int {
	if c == nil || !validPageSize(c.PageSize) {
		return rows.DefaultPageSize
	}
	return c.PageSize
}

func (c *GlobalConfig) Glyphs() string {
	if c == nil || c.TUI == nil || strings.TrimSpace(c.TUI.Glyphs) == "" {
		return "unicode"
	}
	return c.TUI.Glyphs
}

func validPageSize(n int) bool {
	for _, s := range rows.PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

// ConfigKeys are the keys accepted by Set, in display order.
var ConfigKeys = []string{"apiUrl", "token", "currentTopic", "pageSize", "model", "logLevel", "glyphs"}

// Set assigns one key from its string form. An empty value clears the key.
func (c *GlobalConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "apiUrl":
		c.APIURL = value
	case "token":
		c.Token = value
	case "currentTopic":
		c.CurrentTopic = value
	case "model":
		c.Model = value
	case "pageSize":
		if value == "" {
			c.PageSize = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || !validPageSize(n) {
			return fmt.Errorf("invalid pageSize: %q (expected one of %v)", value, rows.PageSizes)
		}
		c.PageSize = n
	case "logLevel":
		switch strings.ToLower(value) {
		case "", "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(value)
		default:
			return fmt.Errorf("invalid logLevel: %q (expected debug|info|warn|error)", value)
		}
	case "glyphs":
		switch value {
		case "", "unicode", "ascii":
		default:
			return fmt.Errorf("invalid glyphs: %q (expected unicode|ascii)", value)
		}
		if c.TUI == nil {
			c.TUI = &TUIConfig{}
		}
		c.TUI.Glyphs = value
	default:
		keys := append([]string{}, ConfigKeys...)
		sort.Strings(keys)
		return fmt.Errorf("unknown config key: %q (expected one of %s)", key, strings.Join(keys, ", "))
	}
	return nil
}

// Redacted returns a copy safe to print: the token is masked.
func (c *GlobalConfig) Redacted() GlobalConfig {
	if c == nil {
		return GlobalConfig{}
	}
	out := *c
	if out.TUI != nil {
		tui := *out.TUI
		out.TUI = &tui
	}
	if t := strings.TrimSpace(out.Token); t != "" {
		if len(t) > 4 {
			out.Token = "****" + t[len(t)-4:]
		} else {
			out.Token = "****"
		}
	}
	return out
}
