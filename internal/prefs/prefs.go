// Package prefs handles depot user preferences persistence.
// Preferences are stored in ~/.config/depot/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for depot.
type Prefs struct {
	Theme      string                 `toml:"theme"`
	LastScreen string                 `toml:"last_screen,omitempty"`
	Screens    map[string]ScreenPrefs `toml:"screens,omitempty"`
}

// ScreenPrefs are the remembered table settings of one screen.
type ScreenPrefs struct {
	PageSize int    `toml:"page_size,omitempty"`
	Sort     string `toml:"sort,omitempty"`
	Desc     bool   `toml:"desc,omitempty"`
	// HiddenColumns only applies when ColumnsCustomized is set, so an empty
	// list can mean "show everything".
	HiddenColumns     []string `toml:"hidden_columns,omitempty"`
	ColumnsCustomized bool     `toml:"columns_customized,omitempty"`
}

// Hidden returns the hidden column keys, or nil to keep screen defaults.
func (s ScreenPrefs) Hidden() []string {
	if !s.ColumnsCustomized {
		return nil
	}
	if s.HiddenColumns == nil {
		return []string{}
	}
	return s.HiddenColumns
}

// WithHidden records a user-chosen set of hidden columns.
func (s ScreenPrefs) WithHidden(keys []string) ScreenPrefs {
	s.HiddenColumns = append([]string(nil), keys...)
	s.ColumnsCustomized = true
	return s
}

const (
	defaultPrefsPath = "~/.config/depot/prefs.toml"
	defaultTheme     = "Nightfox"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Screen returns the settings for one screen.
func (p Prefs) Screen(name string) ScreenPrefs {
	return p.Screens[name]
}

// SetScreen stores the settings for one screen.
func (p *Prefs) SetScreen(name string, s ScreenPrefs) {
	if p.Screens == nil {
		p.Screens = make(map[string]ScreenPrefs)
	}
	p.Screens[name] = s
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Prefs{Theme: defaultTheme}, nil
	}

	prefs := Prefs{Theme: defaultTheme}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return Prefs{Theme: defaultTheme}, nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
