// Package retention removes expired collection artifacts.
package retention

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPatterns match every artifact a run leaves behind.
var DefaultPatterns = []string{
	"market_data_*.csv",
	"missing_tokens_*.csv",
	"simple_market_data_*.csv", // written by older releases
	"*.log",
}

type Cleaner struct {
	Dir      string
	Patterns []string
	// ActiveLog is never removed, whatever its age.
	ActiveLog string
	MaxAge    time.Duration
	Now       func() time.Time
}

func NewCleaner(dir, activeLog string, maxAge time.Duration) *Cleaner {
	return &Cleaner{
		Dir:       dir,
		Patterns:  DefaultPatterns,
		ActiveLog: activeLog,
		MaxAge:    maxAge,
		Now:       time.Now,
	}
}

// Clean removes files matching Patterns whose modification time is strictly
// before now - MaxAge, and returns how many were removed. Failures on
// individual files are logged and skipped.
func (c *Cleaner) Clean() int {
	cutoff := c.Now().Add(-c.MaxAge)
	logrus.Infof("Cleaning up files older than %s", cutoff.Format("2006-01-02 15:04:05"))

	active := c.absolute(c.ActiveLog)
	seen := make(map[string]struct{})
	removed := 0
	for _, pattern := range c.Patterns {
		matches, err := filepath.Glob(filepath.Join(c.Dir, pattern))
		if err != nil {
			logrus.WithError(err).Warnf("Bad retention pattern %q", pattern)
			continue
		}
		for _, path := range matches {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			if active != "" && c.absolute(path) == active {
				continue
			}

			logEntry := logrus.WithField("file", path)
			fi, err := os.Stat(path)
			if err != nil {
				logEntry.WithError(err).Warn("Could not stat file")
				continue
			}
			if fi.IsDir() || !fi.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				logEntry.WithError(err).Warn("Could not delete file")
				continue
			}
			removed++
			logEntry.Infof("Deleted old file (modified %s)", fi.ModTime().Format("2006-01-02 15:04:05"))
		}
	}

	if removed > 0 {
		logrus.Infof("Cleanup completed: %d files deleted", removed)
	} else {
		logrus.Info("No old files found for cleanup")
	}
	return removed
}

func (c *Cleaner) absolute(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
