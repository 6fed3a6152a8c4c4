package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for turns, events and staged calls.
func NewID() string { return uuid.NewString() }
