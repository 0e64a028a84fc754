package classify

import "strings"

// Profile selects a sanitization rule set.
type Profile string

const (
	ProfileDefault Profile = "default"
	ProfileStrict  Profile = "strict"
)

type replacement struct{ from, to string }

// Applied in order, each once. Later rules may produce text earlier rules
// would have matched; that is intended.
var defaultTable = []replacement{
	{"&amp;", "&"},
	{"&gt;", ">"},
	{"&lt;", "<"},
	{"&quot;", `"`},
	{"&#39;", "'"},
	{"“", `"`},
	{"”", `"`},
	{"‘", "'"},
	{"’", "'"},
	{"&mdash;", "-"},
	{"&ndash;", "-"},
	{"&hellip;", "..."},
}

var strictTable = []replacement{
	{"&amp;", "and"},
	{"&", "and"},
	{"`", "'"},
}

// Suffixes that follow a period inside names rather than after a sentence:
// domains, file extensions and runtime names like "Node.js".
var dottedSuffixes = map[string]struct{}{
	"com": {}, "org": {}, "net": {}, "edu": {}, "gov": {}, "io": {}, "co": {},
	"uk": {}, "de": {}, "it": {}, "ly": {}, "me": {}, "tv": {}, "gg": {},
	"js": {}, "ts": {}, "py": {}, "go": {}, "rs": {}, "rb": {}, "md": {},
	"txt": {}, "exe": {}, "jpg": {}, "png": {}, "gif": {}, "pdf": {}, "html": {},
}

// Sanitize normalizes HTML entities and typographic quotes in a post title.
func Sanitize(title string, profile Profile) string {
	out := apply(title, defaultTable)
	if profile != ProfileStrict {
		return out
	}
	out = apply(out, strictTable)
	return splitGluedPeriods(out)
}

// splitGluedPeriods inserts a space after a period glued to the next word,
// as in "end.Next". Single-letter abbreviations (e.g, U.S), dotted chains
// (www.x.com) and known name suffixes are left alone.
func splitGluedPeriods(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		b.WriteByte(s[i])
		if s[i] != '.' || i+1 >= len(s) || !isASCIILetter(s[i+1]) {
			continue
		}
		before := wordEndingAt(s, i)
		after := letterRunFrom(s, i+1)
		if len(before) < 2 || len(after) < 2 {
			continue
		}
		if end := i + 1 + len(after); end < len(s) && s[end] == '.' && end+1 < len(s) && isASCIILetter(s[end+1]) {
			continue
		}
		if _, ok := dottedSuffixes[strings.ToLower(after)]; ok {
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}

func wordEndingAt(s string, dot int) string {
	start := dot
	for start > 0 && (isASCIILetter(s[start-1]) || (s[start-1] >= '0' && s[start-1] <= '9')) {
		start--
	}
	return s[start:dot]
}

func letterRunFrom(s string, start int) string {
	end := start
	for end < len(s) && isASCIILetter(s[end]) {
		end++
	}
	return s[start:end]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func apply(s string, table []replacement) string {
	for _, r := range table {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	return s
}
