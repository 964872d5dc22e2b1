package monitor

import "sync/atomic"

// DetailedInfoStatus reports progress of a background cache-presence sweep.
type DetailedInfoStatus struct {
	Active    bool
	Total     int
	Completed int
	Current   byte
}

// LoadAllDetailedInfo checks, for each id in ids, whether the Device Info
// Cache already has an entry. It never re-reads the device; it only
// reports presence, matching the original's _verify_detailed_info_worker.
func (s *Scheduler) LoadAllDetailedInfo(ids []byte) map[byte]bool {
	atomic.StoreInt32(&s.detailActive, 1)
	defer atomic.StoreInt32(&s.detailActive, 0)

	s.mu.Lock()
	s.detailTotal = len(ids)
	s.detailDone = 0
	s.mu.Unlock()

	out := make(map[byte]bool, len(ids))
	for _, id := range ids {
		s.mu.Lock()
		s.detailCur = id
		s.mu.Unlock()

		_, ok := s.cache.Get(id)
		out[id] = ok

		s.mu.Lock()
		s.detailDone++
		s.mu.Unlock()
	}
	return out
}

// DetailedInfoLoadingStatus reports the current progress of
// LoadAllDetailedInfo, if one is running.
func (s *Scheduler) DetailedInfoLoadingStatus() DetailedInfoStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DetailedInfoStatus{
		Active:    atomic.LoadInt32(&s.detailActive) == 1,
		Total:     s.detailTotal,
		Completed: s.detailDone,
		Current:   s.detailCur,
	}
}
