package media

import (
	"fmt"
	"strings"
)

// Category is the library classification of a file.
type Category string

const (
	CategoryShow  Category = "show"
	CategoryMovie Category = "movie"
	CategoryExtra Category = "extra"
)

// ParseCategory accepts the persisted or user-facing spelling of a category.
func ParseCategory(value string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "show", "tv", "episode":
		return CategoryShow, true
	case "movie", "film":
		return CategoryMovie, true
	case "extra", "extras", "bonus":
		return CategoryExtra, true
	default:
		return "", false
	}
}

// Status is the compliance state of a record.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusScanning        Status = "scanning"
	StatusCompliant       Status = "compliant"
	StatusNeedsReencoding Status = "needs_reencoding"
	StatusBelowStandard   Status = "below_standard"
	StatusError           Status = "error"
)

// Pending reports whether the record still needs probing.
func (s Status) Pending() bool {
	return s == StatusUnknown || s == StatusScanning
}

// Label returns a short human-readable form for tables.
func (s Status) Label() string {
	switch s {
	case StatusCompliant:
		return "Compliant"
	case StatusNeedsReencoding:
		return "Needs re-encoding"
	case StatusBelowStandard:
		return "Below standard"
	case StatusError:
		return "Error"
	case StatusScanning:
		return "Scanning"
	default:
		return "Unknown"
	}
}

// ParseStatus accepts the persisted spelling of a status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusUnknown, StatusScanning, StatusCompliant, StatusNeedsReencoding, StatusBelowStandard, StatusError:
		return status, true
	default:
		return "", false
	}
}

// FrameRate is a rational frame rate such as 24000/1001.
type FrameRate struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// Float returns the frame rate in frames per second, or 0 when unknown.
func (f FrameRate) Float() float64 {
	if f.Num <= 0 || f.Den <= 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

func (f FrameRate) String() string {
	if f.Num <= 0 || f.Den <= 0 {
		return ""
	}
	if f.Den == 1 {
		return fmt.Sprintf("%d", f.Num)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Attributes are the probed properties of a file. Zero values mean "not probed".
type Attributes struct {
	VideoCodec        string    `json:"video_codec,omitempty"`
	Width             int       `json:"width,omitempty"`
	Height            int       `json:"height,omitempty"`
	BitDepth          int       `json:"bit_depth,omitempty"`
	FrameRate         FrameRate `json:"frame_rate"`
	DurationSeconds   float64   `json:"duration_seconds,omitempty"`
	BitrateKbps       int       `json:"bitrate_kbps,omitempty"`
	AudioCodec        string    `json:"audio_codec,omitempty"`
	AudioChannels     int       `json:"audio_channels,omitempty"`
	AudioLanguage     string    `json:"audio_language,omitempty"`
	SubtitleLanguages []string  `json:"subtitle_languages,omitempty"`
	HasCoverArt       bool      `json:"has_cover_art,omitempty"`
}

// Resolution formats the frame size as WxH.
func (a Attributes) Resolution() string {
	if a.Width <= 0 || a.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", a.Width, a.Height)
}

// TotalFrames estimates the frame count from duration and frame rate.
func (a Attributes) TotalFrames() int64 {
	fps := a.FrameRate.Float()
	if fps <= 0 || a.DurationSeconds <= 0 {
		return 0
	}
	return int64(a.DurationSeconds * fps)
}

// ComputeBitrateKbps derives the average bitrate from file size and duration.
func ComputeBitrateKbps(sizeBytes int64, durationSeconds float64) int {
	if sizeBytes <= 0 || durationSeconds <= 0 {
		return 0
	}
	return int(float64(sizeBytes) * 8 / durationSeconds / 1000)
}

// Classification is the category and, for shows, the episode identity.
type Classification struct {
	Category Category `json:"category"`
	ShowName string   `json:"show_name,omitempty"`
	Season   *int     `json:"season,omitempty"`
	Episode  *int     `json:"episode,omitempty"`
}

// Label renders the classification for tables, e.g. "Show S01E05".
func (c Classification) Label() string {
	switch c.Category {
	case CategoryShow:
		label := c.ShowName
		if label == "" {
			label = "Unknown show"
		}
		switch {
		case c.Season != nil && c.Episode != nil:
			return fmt.Sprintf("%s S%02dE%02d", label, *c.Season, *c.Episode)
		case c.Season != nil:
			return fmt.Sprintf("%s S%02d", label, *c.Season)
		}
		return label
	case CategoryExtra:
		if c.ShowName != "" {
			return "Extra (" + c.ShowName + ")"
		}
		return "Extra"
	case CategoryMovie:
		return "Movie"
	default:
		return ""
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
