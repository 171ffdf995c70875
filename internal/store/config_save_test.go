package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestSaveConfig_ConcurrentWriters_DoesNotCorruptConfig(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("VERDICT_CONFIG_DIR", cfgDir)

	if err := SaveConfig(&GlobalConfig{CurrentTopic: "seed"}); err != nil {
		t.Fatalf("SaveConfig(seed): %v", err)
	}

	const n = 64
	errCh := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			cfg, err := LoadConfig()
			if err != nil {
				errCh <- err
				return
			}
			cfg.CurrentTopic = fmt.Sprintf("topic-%d", i)
			cfg.PageSize = 10 * (1 + i%5)
			if err := SaveConfig(cfg); err != nil {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent SaveConfig: %v", err)
	}
	if t.Failed() {
		return
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config.json: %v", err)
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("config.json corrupted/unparseable: %v\nraw:\n%s", err, string(raw))
	}
	if !strings.HasPrefix(cfg.CurrentTopic, "topic-") {
		t.Fatalf("expected a writer's topic to win, got %q", cfg.CurrentTopic)
	}

	ents, err := os.ReadDir(cfgDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, "config.json.") && strings.HasSuffix(name, ".tmp") {
			t.Fatalf("leftover temp file: %s", name)
		}
	}
}

func TestSaveConfig_IsPrivate(t *testing.T) {
	t.Setenv("VERDICT_CONFIG_DIR", t.TempDir())
	if err := SaveConfig(&GlobalConfig{Token: "secret"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := fi.Mode().Perm(); perm&0o077 != 0 {
		t.Fatalf("expected config to be private, got %v", perm)
	}
}
