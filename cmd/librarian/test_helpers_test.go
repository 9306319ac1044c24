package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"librarian/internal/config"
	"librarian/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	library    string
}

// setupCLITestEnv writes a config with temp state paths and returns it along
// with an empty library directory.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("LIBRARIAN_CONFIG", "")
	t.Setenv("LIBRARIAN_FFMPEG", "")
	t.Setenv("LIBRARIAN_FFPROBE", "")
	t.Setenv("LIBRARIAN_LOG_LEVEL", "")
	cfg.Scan.MinFileSizeBytes = 0

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(base, "config.toml"),
		baseDir:    base,
		library:    filepath.Join(base, "library"),
	}
	if err := os.MkdirAll(env.library, 0o755); err != nil {
		t.Fatalf("mkdir library: %v", err)
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := e.cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// stubFFprobe points the config at a script that prints doc for every file.
func (e *cliTestEnv) stubFFprobe(t *testing.T, doc string) {
	t.Helper()
	requirePOSIXShell(t)
	docPath := filepath.Join(e.baseDir, "probe.json")
	if err := os.WriteFile(docPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write probe doc: %v", err)
	}
	script := "#!/bin/sh\ncat '" + docPath + "'\n"
	e.cfg.Tools.FFprobe = writeScript(t, e.baseDir, "ffprobe", script)
	e.writeConfig(t)
}

// stubFFmpeg points the config at a script that answers -encoders and
// otherwise writes payload to its last argument after one progress line.
func (e *cliTestEnv) stubFFmpeg(t *testing.T, payload string) {
	t.Helper()
	requirePOSIXShell(t)
	script := `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version test"
  exit 0
fi
if [ "$2" = "-encoders" ]; then
  echo "Encoders:"
  echo " ------"
  echo " V....D libx265              libx265 H.265 / HEVC"
  echo " V....D libsvtav1            SVT-AV1"
  exit 0
fi
for arg in "$@"; do out="$arg"; done
printf 'frame=   24 fps= 24 q=28.0 size=       1kB time=00:00:01.00 bitrate=   8.0kbits/s speed=1.0x\r' >&2
printf '%s' '` + payload + `' > "$out"
exit 0
`
	e.cfg.Tools.FFmpeg = writeScript(t, e.baseDir, "ffmpeg", script)
	e.writeConfig(t)
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	path := filepath.Join(binDir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func requirePOSIXShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub tools are shell scripts")
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func probeDoc(codec string) string {
	return `{
  "streams": [
    {"index": 0, "codec_name": "` + codec + `", "codec_type": "video", "width": 1920, "height": 1080, "pix_fmt": "yuv420p10le", "r_frame_rate": "24000/1001"},
    {"index": 1, "codec_name": "eac3", "codec_type": "audio", "channels": 6, "tags": {"language": "eng"}}
  ],
  "format": {"duration": "1.0"}
}`
}
