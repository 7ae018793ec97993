// Package controls maps key presses in the live webcam session to state
// changes.
package controls

import (
	"fmt"

	"thaitanloi365/go-face-privacy/effects"
)

// Action tells the loop what to do after a key press.
type Action int

// Actions.
const (
	None Action = iota
	Quit
	Screenshot
	ToggleSplit
	LevelChanged
	EffectChanged
	ToggleHelp
	DetectorChanged
	TogglePixelate
	ToggleBenchmark
)

var actionNames = [...]string{"none", "quit", "screenshot", "toggle-split", "level", "effect", "toggle-help", "detector", "toggle-pixelate", "toggle-benchmark"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Key codes as returned by the window's WaitKey.
const (
	KeyNone = -1
	KeyEsc  = 27
)

// State is the mutable session state. The zero value is not usable; use New.
type State struct {
	Effect     effects.Name
	Level      int
	Split      bool
	Help       bool
	Pixelate   bool
	Benchmark  bool
	Detectors  []string
	DetectorAt int
}

// New starts a session with the given effect, level and selectable
// detectors.
func New(effect effects.Name, level int, detectors []string) *State {
	return &State{
		Effect:    effect,
		Level:     effects.ClampLevel(level),
		Pixelate:  true,
		Detectors: detectors,
	}
}

// Detector is the currently selected detector name, or "" when none are
// configured.
func (s *State) Detector() string {
	if len(s.Detectors) == 0 {
		return ""
	}
	return s.Detectors[s.DetectorAt%len(s.Detectors)]
}

// SelectDetector points at name if it is one of the choices.
func (s *State) SelectDetector(name string) bool {
	for i, d := range s.Detectors {
		if d == name {
			s.DetectorAt = i
			return true
		}
	}
	return false
}

// Handle applies key to the state.
func (s *State) Handle(key int) Action {
	if key == KeyNone {
		return None
	}
	switch k := rune(key & 0xFF); k {
	case 'q', 'Q', KeyEsc:
		return Quit
	case 's', 'S':
		return Screenshot
	case ' ':
		s.Split = !s.Split
		return ToggleSplit
	case '+', '=':
		return s.setLevel(s.Level + effects.LevelStep)
	case '-', '_':
		return s.setLevel(s.Level - effects.LevelStep)
	case 'h', 'H':
		s.Help = !s.Help
		return ToggleHelp
	case 'd', 'D':
		if len(s.Detectors) < 2 {
			return None
		}
		s.DetectorAt = (s.DetectorAt + 1) % len(s.Detectors)
		return DetectorChanged
	case 'p', 'P':
		s.Pixelate = !s.Pixelate
		return TogglePixelate
	case 'b', 'B':
		s.Benchmark = !s.Benchmark
		return ToggleBenchmark
	default:
		if k >= '1' && k <= '9' {
			if name, ok := effects.ByIndex(int(k - '0')); ok {
				s.Effect = name
				return EffectChanged
			}
		}
	}
	return None
}

func (s *State) setLevel(level int) Action {
	level = effects.ClampLevel(level)
	if level == s.Level {
		return None
	}
	s.Level = level
	return LevelChanged
}

// HelpLines describes the key bindings.
func HelpLines() []string {
	lines := []string{
		"q / Esc   quit",
		"s         save screenshot",
		"space     toggle split view",
		"+ / -     intensity",
		"h         toggle help",
		"d         next detector",
		"p         toggle anonymization",
		"b         toggle benchmark",
	}
	for i, name := range effects.Available() {
		lines = append(lines, fmt.Sprintf("%d         %s", i+1, name))
	}
	return lines
}
