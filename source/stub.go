package source

import (
	"context"
	"sync"
)

// StubSource is an in-memory Source for testing collectors without a live
// engine. Populate Objects and Attrs, then flip the Fail switches to drive
// failure paths.
type StubSource struct {
	mu sync.Mutex

	// Objects maps a query pattern to the identifiers it returns.
	Objects map[string][]ObjectID
	// Attrs maps a canonical identifier to its attribute map.
	Attrs map[string]map[string]any

	// FailOpen makes Open fail with ErrConnectivity.
	FailOpen bool
	// FailList makes List fail once per set; cleared after the failure so
	// retry paths can be observed.
	FailList error
	// FailAttrs maps canonical identifiers to a fetch error.
	FailAttrs map[string]error
	// FailInvoke makes Invoke fail.
	FailInvoke error
	// ListHook, when set, runs at the start of every List call before any
	// internal locking. Tests use it to hold a cycle in flight.
	ListHook func()

	// OpenCalls counts Open calls that performed a (simulated) dial.
	OpenCalls int
	// Invocations records (identifier, operation) pairs in call order.
	Invocations [][2]string

	open   bool
	closed int
}

// NewStubSource creates an empty stub source.
func NewStubSource() *StubSource {
	return &StubSource{
		Objects:   make(map[string][]ObjectID),
		Attrs:     make(map[string]map[string]any),
		FailAttrs: make(map[string]error),
	}
}

// AddObject registers an identifier under a query with its attribute map.
func (s *StubSource) AddObject(query string, id ObjectID, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[query] = append(s.Objects[query], id)
	s.Attrs[id.String()] = attrs
}

// Open implements Source. Idempotent when already open.
func (s *StubSource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	if s.FailOpen {
		return ErrConnectivity
	}
	s.OpenCalls++
	s.open = true
	return nil
}

// IsOpen reports the connection state for test assertions.
func (s *StubSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// CloseCalls reports how many times Close was called.
func (s *StubSource) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// List implements Source.
func (s *StubSource) List(_ context.Context, query string) ([]ObjectID, error) {
	if s.ListHook != nil {
		s.ListHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNotConnected
	}
	if s.FailList != nil {
		err := s.FailList
		s.FailList = nil
		return nil, err
	}
	ids := append([]ObjectID(nil), s.Objects[query]...)
	SortIDs(ids)
	return ids, nil
}

// Attributes implements Source.
func (s *StubSource) Attributes(_ context.Context, id ObjectID) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNotConnected
	}
	if err := s.FailAttrs[id.String()]; err != nil {
		return nil, err
	}
	attrs, ok := s.Attrs[id.String()]
	if !ok {
		return nil, ErrNotConnected
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out, nil
}

// Invoke implements Source.
func (s *StubSource) Invoke(_ context.Context, id ObjectID, operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotConnected
	}
	if s.FailInvoke != nil {
		return s.FailInvoke
	}
	s.Invocations = append(s.Invocations, [2]string{id.String(), operation})
	return nil
}

// Close implements Source. Idempotent.
func (s *StubSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.closed++
	}
	s.open = false
	return nil
}

// Verify StubSource implements Source.
var _ Source = (*StubSource)(nil)
