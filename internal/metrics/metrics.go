package metrics

import (
	"sync"
	"sync/atomic"
)

// runStats holds automation run counters.
// Kept simple/thread-safe for use from the executor and exposition.
type runStats struct {
	total           uint64
	usersAwarded    uint64
	articlesCreated uint64
	mu              sync.Mutex
	byKey           map[string]uint64 // "<service>/<status>"
}

var runs runStats

// RecordRun counts one finished run of the given service.
func RecordRun(service, status string, usersAwarded int, articleCreated bool) {
	if service == "" {
		service = "unknown"
	}
	atomic.AddUint64(&runs.total, 1)
	if usersAwarded > 0 {
		atomic.AddUint64(&runs.usersAwarded, uint64(usersAwarded))
	}
	if articleCreated {
		atomic.AddUint64(&runs.articlesCreated, 1)
	}
	runs.mu.Lock()
	if runs.byKey == nil {
		runs.byKey = make(map[string]uint64)
	}
	runs.byKey[service+"/"+status]++
	runs.mu.Unlock()
}

// Snapshot is a point-in-time copy of the run counters.
type Snapshot struct {
	Runs            uint64            `json:"runs"`
	UsersAwarded    uint64            `json:"users_awarded"`
	ArticlesCreated uint64            `json:"articles_created"`
	ByServiceStatus map[string]uint64 `json:"by_service_status"`
}

// RunSnapshot returns a copy of the current counters.
func RunSnapshot() Snapshot {
	s := Snapshot{
		Runs:            atomic.LoadUint64(&runs.total),
		UsersAwarded:    atomic.LoadUint64(&runs.usersAwarded),
		ArticlesCreated: atomic.LoadUint64(&runs.articlesCreated),
	}
	runs.mu.Lock()
	defer runs.mu.Unlock()
	s.ByServiceStatus = make(map[string]uint64, len(runs.byKey))
	for k, v := range runs.byKey {
		s.ByServiceStatus[k] = v
	}
	return s
}

// Reset clears all counters.
func Reset() {
	runs.mu.Lock()
	runs.byKey = nil
	runs.mu.Unlock()
	atomic.StoreUint64(&runs.total, 0)
	atomic.StoreUint64(&runs.usersAwarded, 0)
	atomic.StoreUint64(&runs.articlesCreated, 0)
}
