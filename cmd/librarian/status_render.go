package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"librarian/internal/deps"
	"librarian/internal/encoding"
	"librarian/internal/media"
)

// statusKind selects the tag and color of a rendered status line.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusSkip
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
	ansiClear  = "\r\x1b[2K"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusKindTags = map[statusKind]string{
	statusInfo:  "INFO",
	statusOK:    "OK",
	statusWarn:  "WARN",
	statusSkip:  "SKIP",
	statusError: "ERROR",
}

var statusKindColors = map[statusKind]string{
	statusInfo:  ansiBlue,
	statusOK:    ansiGreen,
	statusWarn:  ansiYellow,
	statusSkip:  ansiCyan,
	statusError: ansiRed,
}

// complianceKind maps a scan verdict to its line kind. Files below standard
// are left alone by encode, so they render as skipped rather than warned.
func complianceKind(status media.Status) statusKind {
	switch status {
	case media.StatusCompliant:
		return statusOK
	case media.StatusNeedsReencoding:
		return statusWarn
	case media.StatusBelowStandard:
		return statusSkip
	case media.StatusError:
		return statusError
	default:
		return statusInfo
	}
}

func jobKind(status encoding.JobStatus) statusKind {
	switch status {
	case encoding.JobCompleted:
		return statusOK
	case encoding.JobCancelled:
		return statusSkip
	case encoding.JobFailed:
		return statusError
	default:
		return statusInfo
	}
}

func dependencyKind(status deps.Status) statusKind {
	switch {
	case status.Available:
		return statusOK
	case status.Optional:
		return statusWarn
	default:
		return statusError
	}
}

// renderStatusLine formats "  Label:   [TAG] message", colored by kind when
// the output is a terminal.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag, ok := statusKindTags[kind]
	if !ok {
		tag = statusKindTags[statusInfo]
	}
	statusText := "[" + tag + "]"
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColors[kind]; color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// shouldColorize also decides whether progress may be redrawn in place.
func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
