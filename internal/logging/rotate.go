package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Fantasim/tokenidx/internal/config"
)

const dateLayout = "2006-01-02"

// dailyFile is an io.WriteCloser over tokenidx-<date>.log that reopens when the
// local date changes. Each switch also sweeps files past the retention window.
type dailyFile struct {
	dir        string
	maxAgeDays int
	now        func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func newDailyFile(dir string, maxAgeDays int) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}
	d := &dailyFile{dir: dir, maxAgeDays: maxAgeDays, now: time.Now}
	if err := d.open(d.now().Format(dateLayout)); err != nil {
		return nil, err
	}
	return d, nil
}

// open switches to the file for day. Callers hold mu, except during construction.
func (d *dailyFile) open(day string) error {
	path := filepath.Join(d.dir, fmt.Sprintf(config.LogFilePattern, day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", path, err)
	}
	if d.file != nil {
		d.file.Close()
	}
	d.file = f
	d.day = day

	// The sweep must not log through slog: the default handler writes here.
	if n, errs := sweep(d.dir, d.now().AddDate(0, 0, -d.maxAgeDays)); n > 0 || len(errs) > 0 {
		fmt.Fprintf(f, "{\"time\":%q,\"level\":\"INFO\",\"msg\":\"cleaned old log files\",\"removed\":%d,\"failed\":%d}\n",
			d.now().Format(time.RFC3339Nano), n, len(errs))
	}
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, os.ErrClosed
	}
	if day := d.now().Format(dateLayout); day != d.day {
		if err := d.open(day); err != nil {
			// Keep writing to the previous file rather than losing lines.
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}
	return d.file.Write(p)
}

// Name returns the base name of the file currently written.
func (d *dailyFile) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return ""
	}
	return filepath.Base(d.file.Name())
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// sweep deletes tokenidx log files in dir last modified before cutoff.
func sweep(dir string, cutoff time.Time) (int, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, []error{err}
	}

	var errs []error
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, config.LogFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}
