package encoding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownETA marks a remaining time that cannot be computed yet.
const UnknownETA = time.Duration(-1)

// statsField matches "key=value" pairs in an ffmpeg stats line, where ffmpeg
// pads values with spaces ("frame=  120 fps= 30").
var statsField = regexp.MustCompile(`([a-z_]+)=\s*(\S+)`)

// Sample is one parsed ffmpeg stats line. Zero fields were absent or "N/A".
type Sample struct {
	Frame       int64
	FPS         float64
	TimeSeconds float64
	Speed       float64
	Bitrate     string
	Size        string
}

// ParseProgressLine extracts a Sample from an ffmpeg stats line. It reports
// false when the line carries neither a frame count nor a time position.
func ParseProgressLine(line string) (Sample, bool) {
	if !strings.Contains(line, "frame=") && !strings.Contains(line, "time=") {
		return Sample{}, false
	}
	var sample Sample
	found := false
	for _, match := range statsField.FindAllStringSubmatch(line, -1) {
		key, value := match[1], match[2]
		switch key {
		case "frame":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
				sample.Frame = n
				found = true
			}
		case "fps":
			if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
				sample.FPS = f
			}
		case "time":
			if seconds, ok := parseClock(value); ok {
				sample.TimeSeconds = seconds
				found = true
			}
		case "speed":
			if f, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil && f > 0 {
				sample.Speed = f
			}
		case "bitrate":
			if value != "N/A" {
				sample.Bitrate = value
			}
		case "size", "Lsize":
			if value != "N/A" {
				sample.Size = value
			}
		}
	}
	return sample, found
}

// parseClock accepts H:MM:SS(.ff), MM:SS(.ff) or plain seconds. ffmpeg prints
// a negative time before the first frame; that is reported as zero.
func parseClock(value string) (float64, bool) {
	if value == "" || value == "N/A" {
		return 0, false
	}
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || f < 0 {
			return 0, false
		}
		total = total*60 + f
	}
	if negative {
		return 0, true
	}
	return total, true
}

// Progress is the derived view of a Sample for one job.
type Progress struct {
	Percent float64
	FPS     float64
	Speed   float64
	ETA     time.Duration
}

// ComputeProgress derives percent complete and ETA. Percent prefers
// frame / totalFrames and falls back to time / duration. ETA needs both a
// frame count and an encoding fps; otherwise it is UnknownETA. The boolean is
// false when neither percent source is available.
func ComputeProgress(sample Sample, totalFrames int64, durationSeconds float64) (Progress, bool) {
	p := Progress{FPS: sample.FPS, Speed: sample.Speed, ETA: UnknownETA}
	switch {
	case totalFrames > 0 && sample.Frame > 0:
		p.Percent = float64(sample.Frame) / float64(totalFrames) * 100
	case durationSeconds > 0 && sample.TimeSeconds > 0:
		p.Percent = sample.TimeSeconds / durationSeconds * 100
	default:
		return p, false
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	if sample.FPS > 0 && totalFrames > 0 && sample.Frame > 0 {
		remaining := max(totalFrames-sample.Frame, 0)
		p.ETA = time.Duration(float64(remaining) / sample.FPS * float64(time.Second))
	}
	return p, true
}

// FormatETA renders a remaining time as "1h2m3s", "--" when unknown.
func FormatETA(d time.Duration) string {
	if d < 0 {
		return "--"
	}
	d = d.Round(time.Second)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || (hours == 0 && minutes == 0) {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, "")
}

// ProgressMessage renders "42.0% (ETA 1m5s, @ 1.2x)".
func ProgressMessage(p Progress) string {
	base := fmt.Sprintf("%.1f%%", p.Percent)
	extras := make([]string, 0, 2)
	if p.ETA >= 0 {
		extras = append(extras, "ETA "+FormatETA(p.ETA))
	}
	if p.Speed > 0 {
		extras = append(extras, fmt.Sprintf("@ %.1fx", p.Speed))
	}
	if len(extras) == 0 {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, strings.Join(extras, ", "))
}
