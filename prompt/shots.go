// Package prompt assembles the text prompts sent to generation capabilities:
// ordered few-shot example collections and a sectioned prompt builder with
// template rendering.
package prompt

import (
	"fmt"
	"sync"
)

// ShotCollection is an ordered, mutable sequence of few-shot examples.
// Insertion order is preserved except for explicit positional inserts and
// duplicates are allowed. It is safe for concurrent use, so a collection
// can be cached and shared by concurrent prompt builds.
type ShotCollection[T any] struct {
	mu    sync.RWMutex
	shots []T
}

// NewShotCollection creates a collection holding shots in order.
func NewShotCollection[T any](shots ...T) *ShotCollection[T] {
	c := &ShotCollection[T]{}
	c.shots = append(c.shots, shots...)
	return c
}

// Append adds shots to the end of the collection.
func (c *ShotCollection[T]) Append(shots ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shots = append(c.shots, shots...)
}

// Insert places shot at index, shifting later shots back. index may equal
// Len to append.
func (c *ShotCollection[T]) Insert(index int, shot T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index > len(c.shots) {
		return fmt.Errorf("shot index %d out of range [0,%d]", index, len(c.shots))
	}

	c.shots = append(c.shots, shot)
	copy(c.shots[index+1:], c.shots[index:])
	c.shots[index] = shot
	return nil
}

// Remove deletes the shot at index.
func (c *ShotCollection[T]) Remove(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.shots) {
		return fmt.Errorf("shot index %d out of range [0,%d)", index, len(c.shots))
	}

	c.shots = append(c.shots[:index], c.shots[index+1:]...)
	return nil
}

// Clear removes all shots.
func (c *ShotCollection[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shots = nil
}

// Len returns the number of shots.
func (c *ShotCollection[T]) Len() int {
	if c == nil {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.shots)
}

// All returns a snapshot of the shots in order.
func (c *ShotCollection[T]) All() []T {
	if c == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.shots))
	copy(out, c.shots)
	return out
}
