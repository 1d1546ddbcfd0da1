package block_exec

import "sync"

type Status uint

const (
	StatusReadyToExecute Status = iota
	StatusExecuting
	StatusExecuted
	StatusAborting
)

type StatusEntry struct {
	mutex sync.Mutex

	incarnation Incarnation
	status      Status
}

func (s *StatusEntry) Get() (Status, Incarnation) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.status, s.incarnation
}

func (s *StatusEntry) IsExecuted() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.status == StatusExecuted
}

func (s *StatusEntry) SetExecuting() (Incarnation, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.status == StatusReadyToExecute {
		s.status = StatusExecuting
		return s.incarnation, true
	}
	return 0, false
}

// SetExecuted is called by Scheduler.FinishExecution, the status must have
// been EXECUTING.
func (s *StatusEntry) SetExecuted() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.status = StatusExecuted
}

// Resume bumps the incarnation of an aborted transaction and makes it ready
// for re-execution.
func (s *StatusEntry) Resume() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// status must be ABORTING
	s.incarnation++
	s.status = StatusReadyToExecute
}

func (s *StatusEntry) TryValidationAbort(incarnation Incarnation) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.incarnation == incarnation && s.status == StatusExecuted {
		s.status = StatusAborting
		return true
	}
	return false
}
