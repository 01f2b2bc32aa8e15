package forestz

import (
	"sync"
	"sync/atomic"
)

// Capture buffers completed root trees in memory for later inspection.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Capture struct {
	trees        []Tree
	mu           sync.Mutex
	droppedCount atomic.Int64
	closed       atomic.Bool
}

// NewCapture creates an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{
		trees: make([]Tree, 0, 8), // Start with small capacity.
	}
}

// Process buffers the tree. Once closed, trees are refused and handed back.
func (c *Capture) Process(tree Tree) error {
	if tree == nil {
		c.droppedCount.Add(1)
		return nil
	}
	if c.closed.Load() {
		c.droppedCount.Add(1)
		return NewReport(tree, ErrQueueClosed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees = append(c.trees, tree)
	return nil
}

// Export returns the buffered trees in arrival order and clears the buffer.
// Trees are immutable, so the returned slice shares them safely.
func (c *Capture) Export() []Tree {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.trees) == 0 {
		return nil
	}

	result := make([]Tree, len(c.trees))
	copy(result, c.trees)

	// Only shrink if buffer is very oversized to avoid allocation churn.
	if cap(c.trees) > 256 && len(c.trees) < cap(c.trees)/8 {
		c.trees = make([]Tree, 0, cap(c.trees)/4)
	} else {
		clear(c.trees)
		c.trees = c.trees[:0]
	}

	return result
}

// Count returns the current number of buffered trees.
func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trees)
}

// DroppedCount returns the number of trees refused after Close or nil.
func (c *Capture) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// Close makes the capture refuse further trees.
func (c *Capture) Close() {
	c.closed.Store(true)
}

// Reset clears all buffered trees and the drop counter.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.trees)
	c.trees = c.trees[:0]
	c.droppedCount.Store(0)
}
