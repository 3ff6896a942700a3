// Package normalize provides the text normalizers applied to names before they are persisted.
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var (
	registry   = make(map[string]Normalizer)
	registryMu sync.RWMutex
)

// residuals covers letters that keep a look-alike shape after mark stripping.
var residuals = strings.NewReplacer(
	"Ŕ", "R",
	"ĺ", "l",
	"ė", "e",
	"ł", "l",
)

func init() {
	Register("trim", Trim)
	Register("strip_diacritics", StripDiacritics)
	Register("residuals", ReplaceResiduals)
	Register("name", Name)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value unchanged.
func Apply(value, normalizer string) string {
	fn, ok := Get(normalizer)
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// isDiacritic matches combining marks and the standalone spacing accents (´ ^ ` ¨).
func isDiacritic(r rune) bool {
	return unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Diacritic, r)
}

// StripDiacritics decomposes s, drops diacritics and recomposes what is left.
func StripDiacritics(s string) string {
	// transform.Chain is stateful, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isDiacritic)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ReplaceResiduals maps the letters mark stripping does not cover.
func ReplaceResiduals(s string) string {
	return residuals.Replace(s)
}

// Name is the normalization applied to receiver and city names.
// Name(Name(s)) == Name(s) for every s.
func Name(s string) string {
	return ApplyChain(s, "strip_diacritics", "residuals", "trim")
}
