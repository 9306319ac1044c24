package language

import "strings"

type entry struct {
	code2 string
	code3 string
	alt3  string
	word  string
}

var known = []entry{
	{"en", "eng", "", "english"},
	{"es", "spa", "", "spanish"},
	{"fr", "fra", "fre", "french"},
	{"de", "deu", "ger", "german"},
	{"it", "ita", "", "italian"},
	{"pt", "por", "", "portuguese"},
	{"ja", "jpn", "", "japanese"},
	{"ko", "kor", "", "korean"},
	{"zh", "zho", "chi", "chinese"},
	{"ru", "rus", "", "russian"},
	{"ar", "ara", "", "arabic"},
	{"hi", "hin", "", "hindi"},
	{"nl", "nld", "dut", "dutch"},
	{"pl", "pol", "", "polish"},
	{"sv", "swe", "", "swedish"},
	{"da", "dan", "", "danish"},
	{"no", "nor", "", "norwegian"},
	{"fi", "fin", "", "finnish"},
}

var aliases map[string]string

func init() {
	aliases = make(map[string]string, len(known)*4)
	for _, e := range known {
		aliases[e.code2] = e.code3
		aliases[e.code3] = e.code3
		aliases[e.word] = e.code3
		if e.alt3 != "" {
			aliases[e.alt3] = e.code3
		}
	}
}

// Untagged is the canonical form of a track without a language tag.
const Untagged = "und"

// Canonical returns the ISO 639-2/T code for a recognized tag. Unrecognized
// tags are returned lower-cased, and empty or "unknown" tags become Untagged.
func Canonical(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(tag, "\u0000", "")))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	switch tag {
	case "", "und", "unknown", "undefined":
		return Untagged
	}
	if code, ok := aliases[tag]; ok {
		return code
	}
	return tag
}

// Match reports whether two tags name the same language. Untagged never
// matches anything, itself included.
func Match(a, b string) bool {
	ca, cb := Canonical(a), Canonical(b)
	return ca != Untagged && ca == cb
}

// FromTags returns the canonical language of a stream's metadata tags, or
// Untagged when none of the usual keys are set.
func FromTags(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		if value := strings.TrimSpace(tags[key]); value != "" {
			return Canonical(value)
		}
	}
	return Untagged
}
