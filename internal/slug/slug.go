// internal/slug/slug.go
//
// Slug and path helpers.
//
// • Make(title, max) ─ converts arbitrary text into a URL-safe slug
//   restricted to ASCII a-z, 0-9 and “-”.
// • BuildPath(parent, slug) ─ joins parent path + slug with a single “/” and
//   guarantees exactly one leading slash.
//
// Rules (Make)
// ------------
// 1. NFD-decompose and drop combining marks, so “Café” becomes “Cafe”.
// 2. Lower-case everything.
// 3. Convert any run of non-[a-z0-9] characters to one “-”.  That strips
//    spaces, punctuation, emoji, and anything still non-ASCII.
// 4. Trim leading / trailing “-”.
// 5. Truncate to max bytes and trim a trailing “-” left by the cut.
// 6. If the result is empty, return "thread".
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is returned when a title contains nothing sluggable.
const Fallback = "thread"

// Make converts title → lower-kebab ASCII of at most max bytes.  max <= 0
// disables truncation.
func Make(title string, max int) string {
	// Transformers carry state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))

	lastWasDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	s := Truncate(strings.Trim(b.String(), "-"), max)
	if s == "" {
		return Fallback
	}
	return s
}

// Truncate cuts s to max bytes and trims a trailing dash if the cut landed
// on one.  Slugs are ASCII, so byte and rune counts agree.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.TrimRight(s[:max], "-")
}

// BuildPath joins parent + slug ensuring exactly one leading slash and no
// duplicate separators.
func BuildPath(parent, slug string) string {
	parent = strings.Trim(parent, "/")
	slug = strings.Trim(slug, "/")

	switch {
	case parent == "" && slug == "":
		return "/"
	case parent == "":
		return "/" + slug
	case slug == "":
		return "/" + parent
	default:
		return "/" + parent + "/" + slug
	}
}
