package inventory

import (
	"sync"
	"time"
)

// Session is the single in-flight request/response exchange with a node.
// Node firmware answers one request at a time; a response that does not
// arrive within the timeout marks the node dead.
type Session struct {
	node    *Node
	timeout time.Duration

	mu      sync.Mutex
	active  bool
	request string
	sid     string
	done    chan map[string]any
}

func newSession(node *Node, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Session{node: node, timeout: timeout}
}

// Active reports whether a request is awaiting its response.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SID returns the north session id tied to the in-flight request, if any.
func (s *Session) SID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// Await blocks until the node answers the request already published on the
// bus, or until the timeout elapses. sid carries the originating north
// session id when the exchange was triggered by a web client. A timeout
// marks the node dead and returns nil.
func (s *Session) Await(request, sid string) map[string]any {
	s.mu.Lock()
	done := make(chan map[string]any, 1)
	s.active = true
	s.request = request
	s.sid = sid
	s.done = done
	s.mu.Unlock()

	select {
	case response := <-done:
		return response
	case <-time.After(s.timeout):
		s.mu.Lock()
		if s.done == done {
			s.active = false
			s.sid = ""
			s.done = nil
		}
		s.mu.Unlock()
		s.node.MarkAlive(false)
		return nil
	}
}

// Complete delivers the node's answer to the waiting Await call. Returns
// false when no request was in flight.
func (s *Session) Complete(response map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.done == nil {
		return false
	}
	s.active = false
	s.sid = ""
	done := s.done
	s.done = nil
	done <- response
	return true
}
