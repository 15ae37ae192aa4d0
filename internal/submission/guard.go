package submission

import (
	"fmt"
	"sync"
	"time"

	"estimator/pkg/types"
)

// Guard admits at most one in-flight submission per draft key. It only
// protects against double submits from the same process; there is no
// cross-session locking.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// TryAdmit registers key and reports whether the caller may proceed
func (g *Guard) TryAdmit(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inflight[key]; ok {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
}

func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// KeyFor returns the guard key of a draft: its temp id, or a timestamp
// derived key when the draft has none.
func KeyFor(handle types.DraftHandle, now time.Time) string {
	if handle.TempID != "" {
		return handle.TempID
	}
	return fmt.Sprintf("ts-%d", now.UnixNano())
}
