package testutil

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// FakeSession is an in-memory inference session. It returns Output for every
// run and records what it was called with.
type FakeSession struct {
	Output      []float32
	OutputShape []int64
	Err         error
	Delay       time.Duration

	mu            sync.Mutex
	calls         int
	active        int
	maxConcurrent int
	lastShape     []int64
	lastInput     []float32
	closed        bool
}

// NewBinarySession returns a session producing a single sigmoid probability.
func NewBinarySession(p float32) *FakeSession {
	return &FakeSession{Output: []float32{p}, OutputShape: []int64{1, 1}}
}

// NewMultiClassSession returns a session producing the given scores.
func NewMultiClassSession(scores ...float32) *FakeSession {
	return &FakeSession{Output: scores, OutputShape: []int64{1, int64(len(scores))}}
}

// Run implements the classifier session contract.
func (f *FakeSession) Run(input []float32, shape []int64) ([]float32, []int64, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, nil, errors.New("session closed")
	}
	f.calls++
	f.active++
	f.maxConcurrent = max(f.maxConcurrent, f.active)
	f.lastShape = slices.Clone(shape)
	f.lastInput = slices.Clone(input)
	f.mu.Unlock()

	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	if f.Err != nil {
		return nil, nil, f.Err
	}
	return slices.Clone(f.Output), slices.Clone(f.OutputShape), nil
}

// Close marks the session closed.
func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls returns the number of Run invocations.
func (f *FakeSession) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// MaxConcurrent returns the highest number of overlapping Run calls seen.
func (f *FakeSession) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxConcurrent
}

// LastShape returns the input shape of the most recent run.
func (f *FakeSession) LastShape() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.lastShape)
}

// LastInput returns a copy of the most recent input tensor.
func (f *FakeSession) LastInput() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.lastInput)
}

// Closed reports whether Close was called.
func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
