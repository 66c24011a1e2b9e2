package service

import (
	"context"
	"fmt"

	"github.com/tgienger/projectflow/internal/db"
)

// Theme is the stored color scheme preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// ParseTheme accepts light, dark or auto; empty means auto
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case "", ThemeAuto:
		return ThemeAuto, nil
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q (want light, dark or auto)", s)
}

// Resolve turns auto into light or dark using the terminal background
func (th Theme) Resolve(systemDark bool) Theme {
	if th != ThemeAuto {
		return th
	}
	if systemDark {
		return ThemeDark
	}
	return ThemeLight
}

// Theme returns the stored preference, auto when unset or unreadable
func (t *Tracker) Theme(ctx context.Context) Theme {
	v, ok, err := t.store.GetSetting(ctx, db.SettingTheme)
	if err != nil {
		t.logger.Printf("read theme: %v", err)
		return ThemeAuto
	}
	if !ok {
		return ThemeAuto
	}
	th, err := ParseTheme(v)
	if err != nil {
		t.logger.Printf("stored theme: %v", err)
		return ThemeAuto
	}
	return th
}

func (t *Tracker) SetTheme(ctx context.Context, th Theme) error {
	if _, err := ParseTheme(string(th)); err != nil {
		return err
	}
	if err := t.store.SetSetting(ctx, db.SettingTheme, string(th)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// ToggleTheme stores the opposite of the currently effective scheme and returns it
func (t *Tracker) ToggleTheme(ctx context.Context, systemDark bool) (Theme, error) {
	next := ThemeDark
	if t.Theme(ctx).Resolve(systemDark) == ThemeDark {
		next = ThemeLight
	}
	return next, t.SetTheme(ctx, next)
}

// LastView is the view the user left the app on, "" when unknown
func (t *Tracker) LastView(ctx context.Context) string {
	v, _, err := t.store.GetSetting(ctx, db.SettingLastView)
	if err != nil {
		t.logger.Printf("read last view: %v", err)
		return ""
	}
	return v
}

func (t *Tracker) SetLastView(ctx context.Context, name string) error {
	if err := t.store.SetSetting(ctx, db.SettingLastView, name); err != nil {
		return fmt.Errorf("save last view: %w", err)
	}
	return nil
}
