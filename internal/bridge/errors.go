package bridge

import "errors"

var (
	// ErrInvalidSnapshot is returned when a snapshot payload cannot be decoded.
	ErrInvalidSnapshot = errors.New("bridge: invalid snapshot")

	// ErrInvalidTopic is returned for messages outside the snapshot topic tree.
	ErrInvalidTopic = errors.New("bridge: invalid snapshot topic")

	ErrNotStarted = errors.New("bridge: not started")
)
