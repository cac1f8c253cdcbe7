// ABOUTME: Window commands forwarded from the shell to whatever view is showing the song
// ABOUTME: Pass-throughs only; the controller decides what each flag means
package window

import (
	"fmt"
	"sync"
)

// Controller is implemented by a presentation layer that owns a window.
type Controller interface {
	SetAlwaysOnTop(flag bool) error
	SetIgnoreCursorEvents(flag bool) error
	SetThemeColor(color string) error
}

// Commands is the shell-facing command surface.
type Commands struct {
	ctrl Controller
}

func NewCommands(ctrl Controller) *Commands {
	return &Commands{ctrl: ctrl}
}

func (c *Commands) SetAlwaysOnTop(flag bool) error {
	return c.ctrl.SetAlwaysOnTop(flag)
}

func (c *Commands) SetMousePassthrough(flag bool) error {
	return c.ctrl.SetIgnoreCursorEvents(flag)
}

// ChangeThemeColor applies color and echoes it back.
func (c *Commands) ChangeThemeColor(color string) (string, error) {
	if err := c.ctrl.SetThemeColor(color); err != nil {
		return "", err
	}
	return color, nil
}

func (c *Commands) Greet(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from Go!", name)
}

// Settings is a copy of the flags last applied to a State.
type Settings struct {
	AlwaysOnTop      bool   `json:"always_on_top"`
	MousePassthrough bool   `json:"mouse_passthrough"`
	ThemeColor       string `json:"theme_color"`
}

// State is an in-memory Controller for headless runs. Watchers are called
// synchronously after every change.
type State struct {
	mu       sync.Mutex
	settings Settings
	watchers []func(Settings)
}

func NewState(themeColor string) *State {
	return &State{settings: Settings{ThemeColor: themeColor}}
}

func (s *State) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Watch registers fn to be called with the new settings after each change.
func (s *State) Watch(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *State) SetAlwaysOnTop(flag bool) error {
	s.update(func(st *Settings) { st.AlwaysOnTop = flag })
	return nil
}

func (s *State) SetIgnoreCursorEvents(flag bool) error {
	s.update(func(st *Settings) { st.MousePassthrough = flag })
	return nil
}

func (s *State) SetThemeColor(color string) error {
	s.update(func(st *Settings) { st.ThemeColor = color })
	return nil
}

func (s *State) update(fn func(*Settings)) {
	s.mu.Lock()
	fn(&s.settings)
	snapshot := s.settings
	watchers := append([]func(Settings){}, s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
}
