package identity

import (
	"time"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/models"
)

// Throttle limits how often and how many times an entity may be renamed.
// The policy reads the entity's own rename history, not the claim index.
type Throttle struct {
	// MaxRenames caps the lifetime rename count. 0 disables the cap.
	MaxRenames int
	// MinInterval is the shortest allowed gap since the last rename.
	MinInterval time.Duration
}

// DefaultThrottle matches the configured defaults: 50 lifetime renames, at
// most one per hour.
func DefaultThrottle() Throttle {
	return Throttle{
		MaxRenames:  50,
		MinInterval: time.Hour,
	}
}

// Allow returns apperr.RateLimited when another rename at now would violate
// the policy, nil otherwise.
func (t Throttle) Allow(history models.RenameHistory, now time.Time) error {
	if t.MaxRenames > 0 && history.Count() >= t.MaxRenames {
		return apperr.RateLimited("too many renames: %d", history.Count())
	}
	if last, ok := history.LastRename(); ok {
		if elapsed := now.Sub(last); elapsed < t.MinInterval {
			return apperr.RateLimited("renamed %s ago, minimum interval is %s", elapsed, t.MinInterval)
		}
	}
	return nil
}
