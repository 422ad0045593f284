// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
)

// IDSequence hands out distinct values to one test. Each test builds its own
// sequence, so parallel tests never share generator state.
type IDSequence struct {
	prefix string
	next   atomic.Int64
}

func NewIDSequence(prefix string) *IDSequence {
	return &IDSequence{prefix: prefix}
}

// Next returns 1, 2, 3, ...
func (s *IDSequence) Next() int64 {
	return s.next.Add(1)
}

// Name returns the next value formatted as "<prefix>-<n>".
func (s *IDSequence) Name() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.Next())
}
