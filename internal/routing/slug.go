// internal/routing/slug.go
//
// Slug and path helpers.
//
// • Slugify(text) ─ converts arbitrary text into a URL-safe segment restricted
//   to ASCII a-z, 0-9 and “-”.  Accented letters are transliterated first, so
//   “Łódź Café” becomes “lodz-cafe” rather than losing letters.
// • MakeSlug(title) ─ Slugify with a non-empty guarantee (“item”).
// • BuildPath(parts…) ─ joins path parts with a single “/” and guarantees
//   exactly one leading slash.
//
// Rules (Slugify)
// ---------------
// 1. Replace letters that Unicode does not decompose (ł, ß, æ, ø …).
// 2. NFD-decompose and drop combining marks (é → e).
// 3. Lower-case everything.
// 4. Convert any run of non-[a-z0-9] characters to one “-”.
// 5. Trim leading / trailing “-”.
//
// Notes
// -----
// • Slugs are max 100 bytes; the cut never leaves a trailing dash.

package routing

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 100

// special covers letters with no canonical decomposition.
var special = strings.NewReplacer(
	"ł", "l", "Ł", "L",
	"ß", "ss", "ẞ", "SS",
	"æ", "ae", "Æ", "AE",
	"ø", "o", "Ø", "O",
	"œ", "oe", "Œ", "OE",
	"đ", "d", "Đ", "D",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
	"ı", "i",
	"&", " and ",
)

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify converts text → lower-kebab ASCII.  Returns "" when nothing
// survives, so callers can drop empty segments.
func Slugify(text string) string {
	text = stripMarks(special.Replace(text))

	var b strings.Builder
	b.Grow(len(text))

	lastWasDash := false
	for _, r := range strings.ToLower(text) {
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

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// MakeSlug is Slugify that never returns an empty string.
func MakeSlug(title string) string {
	if s := Slugify(title); s != "" {
		return s
	}
	return "item"
}

// BuildPath joins parts ensuring exactly one leading slash and no duplicate
// separators.  Empty parts are skipped.
func BuildPath(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		for _, seg := range strings.Split(p, "/") {
			if seg != "" {
				clean = append(clean, seg)
			}
		}
	}
	return "/" + strings.Join(clean, "/")
}
