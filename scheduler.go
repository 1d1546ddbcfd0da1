package block_exec

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type TaskKind int

const (
	TaskKindExecution TaskKind = iota
	TaskKindValidation
)

// TxDependency tracks the transactions blocked on an estimate mark left by
// an aborted transaction, they are woken up when it finishes re-executing.
type TxDependency struct {
	mutex   sync.Mutex
	waiters []*Condvar
}

func (t *TxDependency) Swap(new []*Condvar) []*Condvar {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	old := t.waiters
	t.waiters = new
	return old
}

// Scheduler implements the scheduler for the block-stm
// ref: `Algorithm 4 The Scheduler module, variables, utility APIs and next task logic`
type Scheduler struct {
	block_size int

	// An index that tracks the next transaction to try and execute.
	execution_idx atomic.Uint64
	// A similar index for tracking validation.
	validation_idx atomic.Uint64
	// Number of times validation_idx or execution_idx was decreased.
	decrease_cnt atomic.Uint64
	// Number of ongoing validation and execution tasks.
	num_active_tasks atomic.Uint64
	// Marker for completion.
	done_marker atomic.Bool
	// Transactions at or above this index are not issued in this pass,
	// lowered when a reconfiguration skips the rest of the block.
	stop_idx atomic.Uint64

	// txn_idx to a mutex-protected list of blocked waiters
	txn_dependency []TxDependency
	// txn_idx to a mutex-protected pair (incarnation_number, status)
	txn_status []StatusEntry

	// metrics
	executedTxns  atomic.Int64
	validatedTxns atomic.Int64
	abortedTxns   atomic.Int64
}

func NewScheduler(block_size int) *Scheduler {
	s := &Scheduler{
		block_size:     block_size,
		txn_dependency: make([]TxDependency, block_size),
		txn_status:     make([]StatusEntry, block_size),
	}
	s.stop_idx.Store(uint64(block_size))
	return s
}

func (s *Scheduler) Done() bool {
	return s.done_marker.Load()
}

// Halt stops issuing new tasks and wakes every blocked waiter, used when a
// transaction aborts the whole pass.
func (s *Scheduler) Halt() {
	s.done_marker.Store(true)
	for i := range s.txn_dependency {
		for _, cond := range s.txn_dependency[i].Swap(nil) {
			cond.Notify()
		}
	}
}

// TrySkipRest excludes transactions above the given index from the rest of
// the pass, the stop index never grows back within one pass.
//
// Transactions at or above the new stop index never re-execute, so their
// estimate marks stay forever; anyone blocked on them is woken up here and
// resolves the read through the stop index check instead.
func (s *Scheduler) TrySkipRest(txn TxnIndex) {
	StoreMin(&s.stop_idx, uint64(txn)+1)

	for i := int(s.stop_idx.Load()); i < s.block_size; i++ {
		for _, cond := range s.txn_dependency[i].Swap(nil) {
			cond.Notify()
		}
	}
}

func (s *Scheduler) StopIndex() TxnIndex {
	return TxnIndex(s.stop_idx.Load())
}

func (s *Scheduler) DecreaseValidationIdx(target TxnIndex) {
	StoreMin(&s.validation_idx, uint64(target))
	s.decrease_cnt.Add(1)
}

func (s *Scheduler) CheckDone() {
	observed_cnt := s.decrease_cnt.Load()
	stop := s.stop_idx.Load()
	if s.execution_idx.Load() >= stop &&
		s.validation_idx.Load() >= stop &&
		s.num_active_tasks.Load() == 0 {
		if observed_cnt == s.decrease_cnt.Load() {
			s.done_marker.Store(true)
		}
	}
}

func (s *Scheduler) TryIncarnate(idx TxnIndex) TxnVersion {
	if uint64(idx) < s.stop_idx.Load() {
		incarnation, ok := s.txn_status[idx].SetExecuting()
		if ok {
			return TxnVersion{idx, incarnation}
		}
	}
	DecreaseAtomic(&s.num_active_tasks)
	return InvalidTxnVersion
}

// NextVersionToExecute get the next transaction index to execute,
// returns invalid version if no task is available
func (s *Scheduler) NextVersionToExecute() TxnVersion {
	if s.execution_idx.Load() >= s.stop_idx.Load() {
		s.CheckDone()
		return InvalidTxnVersion
	}
	IncreaseAtomic(&s.num_active_tasks)
	idx_to_execute := s.execution_idx.Add(1) - 1
	return s.TryIncarnate(TxnIndex(idx_to_execute))
}

// NextVersionToValidate get the next transaction index to validate,
// returns invalid version if no task is available
func (s *Scheduler) NextVersionToValidate() TxnVersion {
	if s.validation_idx.Load() >= s.stop_idx.Load() {
		s.CheckDone()
		return InvalidTxnVersion
	}
	IncreaseAtomic(&s.num_active_tasks)
	idx_to_validate := s.validation_idx.Add(1) - 1
	if idx_to_validate < s.stop_idx.Load() {
		status, incarnation := s.txn_status[idx_to_validate].Get()
		if status == StatusExecuted {
			return TxnVersion{TxnIndex(idx_to_validate), incarnation}
		}
	}

	DecreaseAtomic(&s.num_active_tasks)
	return InvalidTxnVersion
}

// NextTask returns the version and task kind for the next task to execute or
// validate, returns invalid version if no task is available.
func (s *Scheduler) NextTask() (TxnVersion, TaskKind) {
	validation_idx := s.validation_idx.Load()
	execution_idx := s.execution_idx.Load()
	if validation_idx < execution_idx {
		return s.NextVersionToValidate(), TaskKindValidation
	}
	return s.NextVersionToExecute(), TaskKindExecution
}

// WaitForDependency returns a Condvar to wait on if the blocking transaction
// is still running, nil if the dependency resolved already (or the run is
// halting).
func (s *Scheduler) WaitForDependency(txn TxnIndex, blocking_txn TxnIndex) *Condvar {
	entry := &s.txn_dependency[blocking_txn]
	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	if s.txn_status[blocking_txn].IsExecuted() || s.Done() ||
		uint64(blocking_txn) >= s.stop_idx.Load() {
		// dependency resolved before locking, or it never will resolve
		// because the blocking transaction is excluded from the pass
		return nil
	}

	cond := NewCondvar()
	entry.waiters = append(entry.waiters, cond)
	return cond
}

func (s *Scheduler) FinishExecution(version TxnVersion, wroteNewPath bool) (TxnVersion, TaskKind) {
	// status must have been EXECUTING
	s.txn_status[version.Index].SetExecuted()

	// wake up transactions blocked on our estimate marks
	for _, cond := range s.txn_dependency[version.Index].Swap(nil) {
		cond.Notify()
	}

	if s.validation_idx.Load() > uint64(version.Index) { // otherwise index already small enough
		if !wroteNewPath {
			// schedule validation for current tx only, don't decrease num_active_tasks
			return version, TaskKindValidation
		}
		// schedule validation for txn_idx and higher txns
		s.DecreaseValidationIdx(version.Index)
	}
	DecreaseAtomic(&s.num_active_tasks)
	return InvalidTxnVersion, 0
}

func (s *Scheduler) TryValidationAbort(version TxnVersion) bool {
	aborted := s.txn_status[version.Index].TryValidationAbort(version.Incarnation)
	if aborted {
		s.abortedTxns.Add(1)
	}
	return aborted
}

func (s *Scheduler) FinishValidation(txn TxnIndex, aborted bool) (TxnVersion, TaskKind) {
	if aborted {
		s.txn_status[txn].Resume()
		s.DecreaseValidationIdx(txn + 1)
		if s.execution_idx.Load() > uint64(txn) {
			return s.TryIncarnate(txn), TaskKindExecution
		}
	}

	DecreaseAtomic(&s.num_active_tasks)
	return InvalidTxnVersion, 0
}

func (s *Scheduler) Stats() string {
	return fmt.Sprintf("executed: %d, validated: %d, aborted: %d",
		s.executedTxns.Load(), s.validatedTxns.Load(), s.abortedTxns.Load())
}
