package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Fantasim/tokenidx/internal/config"
)

// Options controls where log lines go.
type Options struct {
	Level string
	Dir   string
	// Console mirrors every line to stdout. The terminal UI leaves it off so log
	// lines do not tear through the rendered screen.
	Console bool
	// MaxAgeDays bounds how long dated files are kept. Zero means config.LogMaxAgeDays.
	MaxAgeDays int
}

// Setup installs a JSON slog handler as the process default. Lines go to a
// per-day file under opts.Dir that follows the calendar date, so a long-running
// server starts a new file at midnight. The returned Closer releases the current file.
func Setup(opts Options) (io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", opts.Level, err)
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = config.LogMaxAgeDays
	}

	files, err := newDailyFile(opts.Dir, opts.MaxAgeDays)
	if err != nil {
		return nil, err
	}

	var w io.Writer = files
	if opts.Console {
		w = io.MultiWriter(os.Stdout, files)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))

	slog.Info("logging initialized",
		"level", level.String(),
		"logDir", opts.Dir,
		"logFile", files.Name(),
		"console", opts.Console,
		"maxAgeDays", opts.MaxAgeDays,
	)
	return files, nil
}

// parseLevel accepts the slog level names plus "warning".
func parseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil || strings.ContainsAny(s, "+-") {
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}
