package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const sep = `[\s._-]*`

var (
	// Full episode patterns carry season and episode.
	episodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bs(\d{1,2})[\s._-]?e(\d{1,3})`),
		regexp.MustCompile(`\b(\d{1,2})x(\d{2})\b`),
		regexp.MustCompile(`(?i)\bseason` + sep + `(\d{1,2}).*?\bepisode` + sep + `(\d{1,3})`),
	}

	// Episode-only patterns imply season 1.
	episodeOnlyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\be(\d{1,3})(?:\D|$)`),
		regexp.MustCompile(`(?i)\bepisode` + sep + `(\d{1,3})`),
		regexp.MustCompile(`^(\d{1,2})(?:[^\dx]|$)`),
	}

	extrasVocabulary = regexp.MustCompile(`(?i)\b(?:extras?|bonus` + sep + `features?|(?:dvd` + sep + `)?special` + sep + `features?|featurettes?|behind` + sep + `the` + sep + `scenes?|bts|deleted` + sep + `scenes?|making` + sep + `of|bloopers?|gag` + sep + `reels?|commentar(?:y|ies))\b`)

	// Broader vocabulary used when walking up from an extras folder to find its show.
	extrasLike = regexp.MustCompile(`(?i)\b(?:shorts?|extras?|specials?|bonus|featurettes?|dvd|deleted` + sep + `scenes?|making` + sep + `of|gag` + sep + `reels?|behind` + sep + `the` + sep + `scenes?|special` + sep + `features?|alternate` + sep + `takes?|takes?|(?:lost` + sep + `)?interviews?|on` + sep + `set|commentar(?:y|ies))\b`)

	specialsFolder = regexp.MustCompile(`(?i)\b(?:specials?|shorts?)\b`)
	seasonFolder   = regexp.MustCompile(`(?i)^s(?:eason)?` + sep + `\d+`)
	seasonStart    = regexp.MustCompile(`(?i)^(?:season` + sep + `|s)(\d{1,3})\b`)
	seasonEnd      = regexp.MustCompile(`(?i)[\s._-]+(?:\d{3,4}p[\s._-]+)?(?:season` + sep + `|s)(\d{1,3})$`)
	seasonAnywhere = regexp.MustCompile(`(?i)\bseason` + sep + `\d+\b`)
	releaseTokens  = regexp.MustCompile(`(?i)\b(?:x264|x265|h\.?\s?26[45]|hevc|1080p|720p|2160p|4k|uhd|hd|web-?dl|webrip|bluray|brrip)\b`)

	yearToken         = regexp.MustCompile(`\s*\(?\b\d{4}(?:-\d{2,4})?\b\)?`)
	yearParenthetical = regexp.MustCompile(`\s*\(\d{4}(?:-\d{2,4})?\)`)
	qualityToken      = regexp.MustCompile(`(?i)\b(?:x264|x265|h\.?\s?26[45]|hevc|avc|10bit|8bit)\b`)
	resolutionToken   = regexp.MustCompile(`(?i)\b(?:\d{3,4}p|4k|uhd|hd)\b`)
	seasonToken       = regexp.MustCompile(`(?i)\bseason\s*\d{1,2}\b|\bs\d{1,2}\b`)
	dotsUnderscores   = regexp.MustCompile(`[._]+`)
	multiSpace        = regexp.MustCompile(`\s+`)
)

var genericFolders = map[string]struct{}{
	"tv":       {},
	"shows":    {},
	"tv shows": {},
	"series":   {},
	"media":    {},
	"x264":     {},
	"x265":     {},
	"hevc":     {},
	"movies":   {},
	"encoded":  {},
	"reencode": {},
}

// CleanShowName strips separators, year parentheticals, quality, resolution
// and season tokens from a folder or file name and collapses whitespace.
func CleanShowName(name string) string {
	name = norm.NFC.String(name)
	name = dotsUnderscores.ReplaceAllString(name, " ")
	name = multiSpace.ReplaceAllString(name, " ")
	name = yearParenthetical.ReplaceAllString(name, "")
	name = qualityToken.ReplaceAllString(name, "")
	name = resolutionToken.ReplaceAllString(name, "")
	name = seasonToken.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.Trim(name, " -")
}

func spacify(name string) string {
	name = dotsUnderscores.ReplaceAllString(name, " ")
	return strings.TrimSpace(multiSpace.ReplaceAllString(name, " "))
}

func fold(value string) string {
	return cases.Fold().String(norm.NFC.String(value))
}

func isGeneric(name string) bool {
	_, ok := genericFolders[fold(strings.TrimSpace(name))]
	return ok
}

func isSeasonFolder(name string) bool {
	return seasonFolder.MatchString(strings.TrimSpace(name))
}

func isExtrasName(name string) bool {
	return extrasVocabulary.MatchString(spacify(name))
}

func isSpecialsName(name string) bool {
	return specialsFolder.MatchString(spacify(name))
}

type episodeMatch struct {
	season  int
	episode int
	start   int
	ok      bool
}

func matchEpisode(filename string) episodeMatch {
	for _, pattern := range episodePatterns {
		if m := pattern.FindStringSubmatchIndex(filename); m != nil {
			return episodeMatch{
				season:  atoi(filename[m[2]:m[3]]),
				episode: atoi(filename[m[4]:m[5]]),
				start:   m[0],
				ok:      true,
			}
		}
	}
	return episodeMatch{}
}

func matchEpisodeOnly(filename string) episodeMatch {
	for _, pattern := range episodeOnlyPatterns {
		if m := pattern.FindStringSubmatchIndex(filename); m != nil {
			return episodeMatch{
				season:  1,
				episode: atoi(filename[m[2]:m[3]]),
				start:   m[0],
				ok:      true,
			}
		}
	}
	return episodeMatch{}
}

func atoi(digits string) int {
	n := 0
	for _, r := range digits {
		n = n*10 + int(r-'0')
	}
	return n
}
