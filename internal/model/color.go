package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// RGBA channels are in the [0, 1] range.
type RGBA struct {
	R, G, B, A float64
}

var black = RGBA{A: 1}

// ColorFromHex parses "RRGGBB" or "AARRGGBB". Characters that are not letters
// or digits are dropped first, so "#007AFF" is accepted. Anything else yields
// opaque black.
func ColorFromHex(hex string) RGBA {
	c, ok := parseHex(hex)
	if !ok {
		return black
	}
	return c
}

// ValidHex reports whether ColorFromHex reads hex as a colour rather than
// falling back to black.
func ValidHex(hex string) bool {
	_, ok := parseHex(hex)
	return ok
}

func parseHex(hex string) (RGBA, bool) {
	hex = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, hex)

	if len(hex) != 6 && len(hex) != 8 {
		return RGBA{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGBA{}, false
	}

	var r, g, b, a uint64
	switch len(hex) {
	case 6:
		r, g, b, a = v>>16, v>>8&0xFF, v&0xFF, 0xFF
	case 8:
		a, r, g, b = v>>24, v>>16&0xFF, v>>8&0xFF, v&0xFF
	}
	return RGBA{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255, A: float64(a) / 255}, true
}

// HexFromColor renders c as uppercase "RRGGBB"; alpha is dropped.
func HexFromColor(c RGBA) string {
	return fmt.Sprintf("%02X%02X%02X", channel(c.R), channel(c.G), channel(c.B))
}

// CanonicalHex normalizes any accepted hex spelling to "RRGGBB".
func CanonicalHex(hex string) string {
	return HexFromColor(ColorFromHex(hex))
}

func channel(v float64) int {
	n := int(math.Round(v * 255))
	switch {
	case n < 0:
		return 0
	case n > 255:
		return 255
	}
	return n
}
