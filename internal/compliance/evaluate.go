package compliance

import (
	"fmt"
	"slices"
	"strings"

	"librarian/internal/language"
	"librarian/internal/media"
)

// BitDepthPolicy controls how source bit depth is judged.
type BitDepthPolicy string

const (
	BitDepthSource  BitDepthPolicy = "source"
	BitDepthForce8  BitDepthPolicy = "force_8bit"
	BitDepthForce10 BitDepthPolicy = "force_10bit"
)

// PresencePolicy controls what a missing subtitle track or cover art means.
type PresencePolicy string

const (
	PresenceIgnore          PresencePolicy = "ignore"
	PresenceWarn            PresencePolicy = "warn"
	PresenceNeedsReencoding PresencePolicy = "needs_reencoding"
	PresenceBelowStandard   PresencePolicy = "below_standard"
)

// Range is an inclusive bitrate window in kbps. MaxKbps of zero disables the
// upper check.
type Range struct {
	MinKbps int
	MaxKbps int
}

// Standards are the quality thresholds a file is judged against.
type Standards struct {
	Ranges            map[Bucket]Range
	PreferredCodec    string
	BitDepth          BitDepthPolicy
	SubtitlePolicy    PresencePolicy
	SubtitleLanguages []string
	CoverArtPolicy    PresencePolicy
}

// Result is the outcome of one evaluation.
type Result struct {
	Status   media.Status
	Issues   []string
	Warnings []string
}

var hevcAliases = []string{"hevc", "h265", "h.265", "av1"}

// Evaluate judges probed attributes against the standards. It is a pure
// function: the same inputs always produce the same status and messages.
func Evaluate(attrs media.Attributes, std Standards) Result {
	var res Result
	belowStandard := func(reason string) Result {
		res.Issues = append(res.Issues, reason)
		res.Status = media.StatusBelowStandard
		return res
	}

	switch std.BitDepth {
	case BitDepthForce10:
		if attrs.BitDepth < 10 {
			return belowStandard(fmt.Sprintf("Bit depth is %d-bit, should be 10-bit", attrs.BitDepth))
		}
	case BitDepthForce8:
		if attrs.BitDepth >= 10 {
			res.Issues = append(res.Issues, fmt.Sprintf("Bit depth is %d-bit, should be 8-bit", attrs.BitDepth))
		}
	}

	if attrs.BitrateKbps > 0 {
		bucket := BucketFor(attrs.Width, attrs.Height)
		limits := std.Ranges[bucket]
		if attrs.BitrateKbps < limits.MinKbps {
			return belowStandard(fmt.Sprintf("bitrate below minimum for %s (%d kbps < %d kbps)",
				bucket.Label(), attrs.BitrateKbps, limits.MinKbps))
		}
		if limits.MaxKbps > 0 && attrs.BitrateKbps > limits.MaxKbps {
			res.Issues = append(res.Issues, fmt.Sprintf("bitrate exceeds maximum for %s (%d kbps > %d kbps)",
				bucket.Label(), attrs.BitrateKbps, limits.MaxKbps))
		}
	}

	preferred := strings.ToLower(strings.TrimSpace(std.PreferredCodec))
	if preferred == "" {
		preferred = "hevc"
	}
	codec := strings.ToLower(strings.TrimSpace(attrs.VideoCodec))
	if codec != preferred && !slices.Contains(hevcAliases, codec) {
		shown := attrs.VideoCodec
		if shown == "" {
			shown = "unknown"
		}
		res.Issues = append(res.Issues, fmt.Sprintf("Codec is %s, not %s", shown, preferred))
	}

	if std.SubtitlePolicy != "" && std.SubtitlePolicy != PresenceIgnore && !hasPreferredSubtitle(attrs.SubtitleLanguages, std.SubtitleLanguages) {
		msg := fmt.Sprintf("Missing subtitles (%s)", strings.Join(std.SubtitleLanguages, ", "))
		if std.SubtitlePolicy == PresenceBelowStandard {
			return belowStandard(msg)
		}
		res.apply(std.SubtitlePolicy, msg)
	}

	if std.CoverArtPolicy != "" && std.CoverArtPolicy != PresenceIgnore && !attrs.HasCoverArt {
		if std.CoverArtPolicy == PresenceBelowStandard {
			return belowStandard("Missing cover art")
		}
		res.apply(std.CoverArtPolicy, "Missing cover art")
	}

	if len(res.Issues) > 0 {
		res.Status = media.StatusNeedsReencoding
	} else {
		res.Status = media.StatusCompliant
	}
	return res
}

func (r *Result) apply(policy PresencePolicy, msg string) {
	switch policy {
	case PresenceNeedsReencoding:
		r.Issues = append(r.Issues, msg)
	case PresenceWarn:
		r.Warnings = append(r.Warnings, msg)
	}
}

// hasPreferredSubtitle treats a lone untagged track as satisfying the policy.
func hasPreferredSubtitle(tracks, preferred []string) bool {
	if len(tracks) == 1 && language.Canonical(tracks[0]) == language.Untagged {
		return true
	}
	for _, lang := range tracks {
		for _, want := range preferred {
			if language.Match(lang, want) {
				return true
			}
		}
	}
	return false
}

// Apply evaluates the record's attributes and stores the outcome on it.
// It returns false when a probe currently holds the record.
func Apply(rec *media.Record, std Standards) bool {
	res := Evaluate(rec.Attributes, std)
	return rec.SetEvaluation(res.Status, res.Issues, res.Warnings)
}
