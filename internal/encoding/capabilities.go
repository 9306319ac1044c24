package encoding

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Capabilities reports which encoders the local ffmpeg build provides.
type Capabilities interface {
	HasEncoder(ctx context.Context, name string) (bool, error)
}

// FFmpegCapabilities lists encoders by running `ffmpeg -hide_banner -encoders`
// once and caching the result, including a failure.
type FFmpegCapabilities struct {
	Binary string

	once     sync.Once
	encoders map[string]struct{}
	err      error
}

// NewFFmpegCapabilities returns a lazily populated capability probe.
func NewFFmpegCapabilities(binary string) *FFmpegCapabilities {
	return &FFmpegCapabilities{Binary: binary}
}

// HasEncoder implements Capabilities.
func (c *FFmpegCapabilities) HasEncoder(ctx context.Context, name string) (bool, error) {
	encoders, err := c.Encoders(ctx)
	if err != nil {
		return false, err
	}
	_, ok := encoders[strings.ToLower(strings.TrimSpace(name))]
	return ok, nil
}

// Encoders returns the set of encoder names ffmpeg reports.
func (c *FFmpegCapabilities) Encoders(ctx context.Context) (map[string]struct{}, error) {
	c.once.Do(func() {
		binary := c.Binary
		if binary == "" {
			binary = "ffmpeg"
		}
		output, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
		if err != nil {
			c.err = fmt.Errorf("list ffmpeg encoders: %w", err)
			return
		}
		c.encoders = ParseEncoderList(output)
	})
	return c.encoders, c.err
}

// ParseEncoderList extracts encoder names from `ffmpeg -encoders` output.
// Entries look like " V....D libx265   libx265 H.265 / HEVC"; the legend
// above the "------" separator is skipped.
func ParseEncoderList(output []byte) map[string]struct{} {
	encoders := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(output))
	inList := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inList {
			inList = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		encoders[strings.ToLower(fields[1])] = struct{}{}
	}
	return encoders
}
