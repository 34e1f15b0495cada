package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"facecam/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The camera defaults to the synthetic pattern and recording to MJPEG so no
// external binaries are needed.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "facecam.sock")
	cfgVal.Camera.Source = config.SourcePattern
	cfgVal.Camera.Width = 64
	cfgVal.Camera.Height = 48
	cfgVal.Detector.Enabled = false
	cfgVal.Detector.CascadePath = filepath.Join(base, "cascade", "facefinder")
	cfgVal.Recording.Encoder = config.EncoderMJPEG

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStorageLimits sets the library retention limits.
func WithStorageLimits(maxTotalMB, maxVideos int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.MaxTotalMB = maxTotalMB
		b.cfg.Storage.MaxVideos = maxVideos
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
