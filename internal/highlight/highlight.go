// Package highlight colors participants in anonymized or raw chat text for
// terminal previews.
package highlight

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/raaihank/chatpsy/internal/privacy"
)

// Mode selects which side of the mapping is colored.
type Mode string

const (
	// ModeAnon colors USER_<n> aliases in anonymized text.
	ModeAnon Mode = "anon"
	// ModeRaw colors original names in the uploaded text.
	ModeRaw Mode = "raw"
)

// ParseMode accepts "anon" or "raw".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeAnon:
		return ModeAnon, nil
	case ModeRaw:
		return ModeRaw, nil
	default:
		return "", fmt.Errorf("unknown highlight mode %q (must be anon or raw)", s)
	}
}

// Highlighter renders participants in one of five colors, by alias
// number. Participants beyond the fifth share the fallback style.
type Highlighter struct {
	palette  []*color.Color
	fallback *color.Color
}

// New creates a highlighter. With force set, colors are on or off
// regardless of whether stdout is a terminal; otherwise fatih/color's
// detection applies.
func New(force *bool) *Highlighter {
	h := &Highlighter{
		palette: []*color.Color{
			color.New(color.FgHiRed, color.Bold),
			color.New(color.FgHiGreen, color.Bold),
			color.New(color.FgHiBlue, color.Bold),
			color.New(color.FgHiMagenta, color.Bold),
			color.New(color.FgHiYellow, color.Bold),
		},
		fallback: color.New(color.Underline),
	}
	if force != nil {
		for _, c := range append(h.palette, h.fallback) {
			if *force {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
	return h
}

// Highlight colors every participant in text. mapping is name -> alias
// as returned by the anonymizer.
func (h *Highlighter) Highlight(text string, mapping map[string]string, mode Mode) string {
	if len(mapping) == 0 {
		return text
	}

	type token struct{ text, alias string }
	tokens := make([]token, 0, len(mapping))
	for name, alias := range mapping {
		if mode == ModeRaw {
			tokens = append(tokens, token{name, alias})
		} else {
			tokens = append(tokens, token{alias, alias})
		}
	}
	// longest first so USER_1 never eats the prefix of USER_10
	slices.SortFunc(tokens, func(a, b token) int {
		if c := cmp.Compare(len(b.text), len(a.text)); c != 0 {
			return c
		}
		return strings.Compare(a.text, b.text)
	})

	pairs := make([]string, 0, 2*len(tokens))
	for _, t := range tokens {
		if t.text == "" {
			continue
		}
		pairs = append(pairs, t.text, h.styleFor(t.alias).Sprint(t.text))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Legend lists "alias  name" lines in alias order.
func (h *Highlighter) Legend(mapping map[string]string) string {
	aliases := make([]privacy.Alias, 0, len(mapping))
	for name, alias := range mapping {
		aliases = append(aliases, privacy.Alias{Original: name, Alias: alias})
	}
	slices.SortFunc(aliases, func(a, b privacy.Alias) int {
		return cmp.Compare(aliasNumber(a.Alias), aliasNumber(b.Alias))
	})

	var b strings.Builder
	for _, a := range aliases {
		fmt.Fprintf(&b, "%s  %s\n", h.styleFor(a.Alias).Sprint(a.Alias), a.Original)
	}
	return b.String()
}

func (h *Highlighter) styleFor(alias string) *color.Color {
	n := aliasNumber(alias)
	if n >= 1 && n <= len(h.palette) {
		return h.palette[n-1]
	}
	return h.fallback
}

// aliasNumber returns n for "USER_<n>", or 0.
func aliasNumber(alias string) int {
	digits, ok := strings.CutPrefix(alias, privacy.AliasPrefix)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// Highlight colors text with terminal auto-detection.
func Highlight(text string, mapping map[string]string, mode Mode) string {
	return New(nil).Highlight(text, mapping, mode)
}
