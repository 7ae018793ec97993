package effects

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Name identifies an effect.
type Name string

// Known effects, in menu order.
const (
	Pixelation Name = "pixelate"
	GaussBlur  Name = "blur"
	Blackout   Name = "blackbox"
	Smile      Name = "emoji"
	EyeBar     Name = "witness"
	Tint       Name = "colorize"
)

// Func applies an effect to one box of dst.
type Func func(dst *image.NRGBA, box image.Rectangle, level int)

// ErrUnknownEffect is returned by Parse for names outside the registry.
var ErrUnknownEffect = errors.New("unknown effect")

var order = []Name{Pixelation, GaussBlur, Blackout, Smile, EyeBar, Tint}

var registry = map[Name]Func{
	Pixelation: Pixelate,
	GaussBlur:  Blur,
	Blackout:   BlackBox,
	Smile:      Emoji,
	EyeBar:     Witness,
	Tint:       Colorize,
}

// Available lists the effect names in menu order.
func Available() []Name {
	out := make([]Name, len(order))
	copy(out, order)
	return out
}

// Parse resolves a user supplied effect name.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[n]; !ok {
		return "", fmt.Errorf("%w: %q (available: %s)", ErrUnknownEffect, s, joinNames(order))
	}
	return n, nil
}

// Lookup returns the effect for name, falling back to Pixelate.
func Lookup(name Name) Func {
	if fn, ok := registry[name]; ok {
		return fn
	}
	return Pixelate
}

// Apply runs the named effect on one box. Unknown names pixelate.
func Apply(dst *image.NRGBA, box image.Rectangle, name Name, level int) {
	Lookup(name)(dst, box, level)
}

// ApplyAll runs the named effect on every box.
func ApplyAll(dst *image.NRGBA, boxes []image.Rectangle, name Name, level int) {
	fn := Lookup(name)
	for _, b := range boxes {
		fn(dst, b, level)
	}
}

// ByIndex maps a 1-based menu position to an effect.
func ByIndex(i int) (Name, bool) {
	if i < 1 || i > len(order) {
		return "", false
	}
	return order[i-1], true
}

// Next returns the effect after name in menu order, wrapping around.
func Next(name Name) Name {
	for i, n := range order {
		if n == name {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func joinNames(names []Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
