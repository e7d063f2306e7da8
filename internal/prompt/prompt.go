package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"council/internal/agent"
	"council/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileConfig maps the optional prompt override file.
type FileConfig struct {
	Prompts map[string]string `yaml:"prompts"`
}

// Manager resolves each role's system prompt: built-in defaults, optionally
// overridden by a YAML file that is watched and hot-reloaded so prompt
// tuning does not require a restart.
type Manager struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	overrides map[agent.Role]string
}

// NewManager builds a Manager. An empty path means defaults only, no watch.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: strings.TrimSpace(path), overrides: map[agent.Role]string{}}
	if m.path == "" {
		return m, nil
	}
	if err := m.reload(); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(m.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read prompt overrides failed: %w", err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		if err := m.reload(); err != nil {
			logger.Errorf("prompt override reload failed: %v", err)
			return
		}
		logger.Infof("prompt overrides reloaded from %s", m.path)
	})
	v.WatchConfig()
	m.v = v
	return m, nil
}

// System returns the effective system prompt for role.
func (m *Manager) System(role agent.Role) string {
	m.mu.RLock()
	override, ok := m.overrides[role]
	m.mu.RUnlock()
	if ok && strings.TrimSpace(override) != "" {
		return override
	}
	return defaultPrompts[role]
}

func (m *Manager) reload() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read prompt overrides failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("parse prompt overrides failed: %w", err)
	}
	overrides := make(map[agent.Role]string, len(cfg.Prompts))
	for name, text := range cfg.Prompts {
		role, err := agent.ParseRole(strings.TrimSpace(name))
		if err != nil {
			return fmt.Errorf("prompt overrides: %w", err)
		}
		overrides[role] = text
	}
	m.mu.Lock()
	m.overrides = overrides
	m.mu.Unlock()
	return nil
}
