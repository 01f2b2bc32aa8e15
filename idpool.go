package forestz

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
)

// IDPool manages a pool of pre-generated correlation ids. Every root span
// takes one version 4 id, a 16-byte crypto/rand read, so bursts of
// requests opening roots together would otherwise pay that read on the
// instrumented goroutine. The refill goroutine moves it off that path.
type IDPool struct {
	factory func() uuid.UUID
	ids     chan uuid.UUID
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool creates a new ID pool with the specified capacity.
func NewIDPool(capacity int, factory func() uuid.UUID) *IDPool {
	pool := &IDPool{
		ids:     make(chan uuid.UUID, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	// Start background refill goroutine.
	go pool.refill()
	return pool
}

// randomID returns a factory of random (version 4) ids. If crypto/rand
// fails it falls back to a name-based id derived from the clock.
func randomID(clock clockz.Clock) func() uuid.UUID {
	return func() uuid.UUID {
		id, err := uuid.NewRandom()
		if err != nil {
			return uuid.NewSHA1(uuid.NameSpaceOID, []byte(clock.Now().Format(time.RFC3339Nano)))
		}
		return id
	}
}

// Get retrieves an ID from the pool or generates one if pool is empty.
func (p *IDPool) Get() uuid.UUID {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly (fallback for burst load).
		return p.factory()
	}
}

// refill maintains the pool by generating IDs in background.
func (p *IDPool) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		case p.ids <- p.factory():
		}
	}
}

// Close shuts down the ID pool gracefully.
func (p *IDPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}
