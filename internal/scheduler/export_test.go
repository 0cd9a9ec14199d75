package scheduler

import "time"

func (s *Scheduler) Advance(prev, now time.Time) (time.Time, bool) {
	return s.advance(prev, now)
}
