package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"librarian/internal/deps"
	"librarian/internal/encoding"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg, ffprobe and the encoders they provide",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx := ctx.runContext(cmd)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			tools := deps.CheckBinaries(runCtx, deps.Requirements(cfg.Tools.FFmpeg, cfg.Tools.FFprobe))
			for _, line := range renderSectionHeader("Tools", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(tools, colorize) {
				fmt.Fprintln(out, line)
			}
			missing := deps.MissingRequired(tools)

			ffmpegReady := false
			for _, status := range tools {
				if status.Name == "FFmpeg" && status.Available {
					ffmpegReady = true
				}
			}
			if ffmpegReady {
				encoders := deps.CheckEncoders(runCtx, encoding.NewFFmpegCapabilities(cfg.Tools.FFmpeg))
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Encoders", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range dependencyLines(encoders, colorize) {
					fmt.Fprintln(out, line)
				}
				missing = append(missing, deps.MissingRequired(encoders)...)
			}

			if len(missing) > 0 {
				return fmt.Errorf("missing dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		switch {
		case status.Available:
			detail := "Ready"
			if status.Version != "" {
				detail = status.Version
			} else if status.Command != "" && status.Command != status.Name {
				detail = fmt.Sprintf("Ready (command: %s)", status.Command)
			}
			lines = append(lines, renderStatusLine(status.Name, dependencyKind(status), detail, colorize))
		case status.Optional:
			lines = append(lines, renderStatusLine(status.Name, dependencyKind(status), status.Detail, colorize))
		default:
			detail := status.Detail
			if detail == "" {
				detail = "not available"
			}
			lines = append(lines, renderStatusLine(status.Name, dependencyKind(status), detail, colorize))
		}
	}
	return lines
}
