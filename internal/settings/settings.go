// Package settings holds the user-facing preferences the host is told about
// through settingsUpdate.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/filter"
)

const (
	DefaultFontSize = 16
	MinFontSize     = 10
	MaxFontSize     = 30
)

// Themes known to the renderers.
var Themes = []string{"light", "dark", "system"}

type Settings struct {
	Theme           string          `json:"theme"`
	FontSize        int             `json:"fontSize"`
	NoteDisplay     display.Mode    `json:"noteDisplay"`
	MarkdownEnabled bool            `json:"markdownEnabled"`
	SortType        filter.SortType `json:"sortType"`
	SortReversed    bool            `json:"sortReversed"`
	SortTagsAlpha   bool            `json:"sortTagsAlpha"`
	AccountName     string          `json:"accountName"`
}

func Defaults() Settings {
	return Settings{
		Theme:       "system",
		FontSize:    DefaultFontSize,
		NoteDisplay: display.Comfy,
		SortType:    filter.SortModified,
	}
}

// Display returns the display capability derived from s.
func (s Settings) Display() display.Options {
	return display.Options{Mode: s.NoteDisplay, FontSize: s.FontSize}
}

// ClampFont keeps size within the supported range.
func ClampFont(size int) int {
	return min(max(size, MinFontSize), MaxFontSize)
}

// ValidTheme reports whether name is a known theme.
func ValidTheme(name string) bool {
	for _, t := range Themes {
		if t == name {
			return true
		}
	}
	return false
}

// Store persists settings to a YAML file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored settings, or the defaults if none are stored.
func (s *Store) Load() (Settings, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("theme", d.Theme)
	v.SetDefault("font_size", d.FontSize)
	v.SetDefault("note_display", string(d.NoteDisplay))
	v.SetDefault("markdown_enabled", d.MarkdownEnabled)
	v.SetDefault("sort_type", string(d.SortType))
	v.SetDefault("sort_reversed", d.SortReversed)
	v.SetDefault("sort_tags_alpha", d.SortTagsAlpha)
	v.SetDefault("account_name", "")
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return d, fmt.Errorf("settings: read %s: %w", s.path, err)
		}
	}

	theme := v.GetString("theme")
	if !ValidTheme(theme) {
		theme = d.Theme
	}
	return Settings{
		Theme:           theme,
		FontSize:        ClampFont(v.GetInt("font_size")),
		NoteDisplay:     display.ParseMode(v.GetString("note_display")),
		MarkdownEnabled: v.GetBool("markdown_enabled"),
		SortType:        filter.ParseSortType(v.GetString("sort_type")),
		SortReversed:    v.GetBool("sort_reversed"),
		SortTagsAlpha:   v.GetBool("sort_tags_alpha"),
		AccountName:     v.GetString("account_name"),
	}, nil
}

func (s *Store) Save(st Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("theme", st.Theme)
	v.Set("font_size", st.FontSize)
	v.Set("note_display", string(st.NoteDisplay))
	v.Set("markdown_enabled", st.MarkdownEnabled)
	v.Set("sort_type", string(st.SortType))
	v.Set("sort_reversed", st.SortReversed)
	v.Set("sort_tags_alpha", st.SortTagsAlpha)
	v.Set("account_name", st.AccountName)
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	return nil
}
