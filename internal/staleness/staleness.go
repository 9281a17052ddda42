// Package staleness implements the per-query refresh clock: an empty
// marker file per query whose mtime records the last refresh.
package staleness

import (
	"os"
	"time"

	"github.com/tomhrr/fsmu/internal/ferrors"
)

// DefaultTimeout is the default minimum age (30 seconds) before a
// query is considered due for refresh again.
const DefaultTimeout = 30 * time.Second

// Clock checks and stamps a query's "<backingDir>/_<query>.last-update"
// marker file.
type Clock struct {
	Timeout time.Duration
}

// New returns a Clock with the given timeout. A zero timeout falls
// back to DefaultTimeout.
func New(timeout time.Duration) *Clock {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Clock{Timeout: timeout}
}

// Due reports whether the query at markerPath needs refreshing: true
// if force is set, if the marker is missing, or if it's older than
// the clock's timeout.
func (c *Clock) Due(markerPath string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	info, err := os.Stat(markerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, ferrors.New(ferrors.KindIOError, "staleness.Due", markerPath, err)
	}
	return time.Since(info.ModTime()) >= c.Timeout, nil
}

// Stamp creates the marker file if it doesn't exist, and in all cases
// bumps its mtime to now. Refresh calls this before running the
// search tool, so that a concurrent caller arriving mid-refresh sees
// a fresh timestamp and skips — see internal/refresh's singleflight
// coalescing for the non-racy half of that story.
func Stamp(markerPath string) error {
	f, err := os.OpenFile(markerPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return ferrors.New(ferrors.KindIOError, "staleness.Stamp", markerPath, err)
	}
	f.Close()
	now := time.Now()
	if err := os.Chtimes(markerPath, now, now); err != nil {
		return ferrors.New(ferrors.KindIOError, "staleness.Stamp", markerPath, err)
	}
	return nil
}

// LastUpdate returns the marker's mtime, or the zero time if it
// doesn't exist.
func LastUpdate(markerPath string) time.Time {
	info, err := os.Stat(markerPath)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
