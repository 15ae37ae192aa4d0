package submission

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"estimator/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestGuard_AdmitsOncePerKey(t *testing.T) {
	g := NewGuard()

	assert.True(t, g.TryAdmit("temp-1"))
	assert.False(t, g.TryAdmit("temp-1"))
	assert.True(t, g.TryAdmit("temp-2"))
	assert.Equal(t, 2, g.InFlight())

	g.Release("temp-1")
	assert.True(t, g.TryAdmit("temp-1"))
}

func TestGuard_ConcurrentAdmit(t *testing.T) {
	g := NewGuard()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAdmit("temp-same") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}

func TestKeyFor(t *testing.T) {
	now := time.Unix(0, 42)

	assert.Equal(t, "temp-abc", KeyFor(types.DraftHandle{TempID: "temp-abc"}, now))
	assert.Equal(t, "ts-42", KeyFor(types.DraftHandle{}, now))
}
