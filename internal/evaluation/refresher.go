package evaluation

import (
	"context"
	"time"
)

// Run recomputes CanDelete every refresh interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Refresh(); n > 0 {
				s.logger.Debug("retention status changed", "evaluations", n)
			}
		}
	}
}

// Interval reports the refresh period used by Run.
func (s *Store) Interval() time.Duration { return s.interval }
