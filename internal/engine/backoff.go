package engine

import (
	"time"

	"github.com/champschool/champdesk/internal/store"
)

// attemptDue reports whether a pending record should be attempted this
// cycle. First attempts are always due; after a failure the delay doubles
// per attempt up to max. Records are never dropped; past the cap they
// stay on the max interval.
func attemptDue(row *store.Row, now time.Time, base, max time.Duration) bool {
	if row.SyncAttempts == 0 {
		return true
	}
	if base <= 0 {
		return true
	}

	delay := base
	for i := 1; i < row.SyncAttempts; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if max > 0 && delay > max {
		delay = max
	}

	return !now.Before(row.LastSyncAttempt.Add(delay))
}
