package theme

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the user-facing, persisted display preference.
type Mode string

const (
	// ModeCorporate follows the host's light/dark preference.
	ModeCorporate Mode = "corporate"
	ModeDark      Mode = "dark"
	ModeLight     Mode = "light"
)

// Resolved is the concrete theme applied to the rendering layer.
type Resolved string

const (
	ResolvedDark  Resolved = "dark"
	ResolvedLight Resolved = "light"
)

// ErrUnknownMode is returned when user input names no known Mode.
var ErrUnknownMode = errors.New("unknown theme mode")

var modes = [...]Mode{ModeCorporate, ModeDark, ModeLight}

// Modes lists the selectable modes in display order.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes[:])
	return out
}

// ParseMode validates user input. Values read back from storage are not
// parsed; an unknown stored value simply resolves to light.
func ParseMode(raw string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
}

// Next returns the mode after m in display order, wrapping around.
func (m Mode) Next() Mode {
	for i, known := range modes {
		if known == m {
			return modes[(i+1)%len(modes)]
		}
	}
	return ModeCorporate
}

// Label is the settings-screen caption for m.
func (m Mode) Label() string {
	switch m {
	case ModeCorporate:
		return "Corporate (Default)"
	case ModeDark:
		return "Dark"
	case ModeLight:
		return "Light"
	default:
		return string(m)
	}
}

// Resolve maps a mode and the host preference to the applied theme.
func Resolve(mode Mode, prefersDark bool) Resolved {
	if mode == ModeCorporate {
		if prefersDark {
			return ResolvedDark
		}
		return ResolvedLight
	}
	if mode == ModeDark {
		return ResolvedDark
	}
	return ResolvedLight
}
