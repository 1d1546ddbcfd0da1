package block_exec

import (
	"context"
	"sync/atomic"
)

// Executor is one worker of the parallel pass, wiring the scheduler, the
// multi-version memory and one ExecutorTask.
type Executor struct {
	ctx       context.Context
	scheduler *Scheduler
	storage   KVStore
	mvMemory  *MVMemory
	task      *ExecutorTask
	txs       []Transaction

	// shared across workers
	outputs []atomic.Pointer[ExecutionStatus]
	abort   *onceError
}

func NewExecutor(
	ctx context.Context,
	scheduler *Scheduler,
	storage KVStore,
	mvMemory *MVMemory,
	task *ExecutorTask,
	txs []Transaction,
	outputs []atomic.Pointer[ExecutionStatus],
	abort *onceError,
) *Executor {
	return &Executor{
		ctx:       ctx,
		scheduler: scheduler,
		storage:   storage,
		mvMemory:  mvMemory,
		task:      task,
		txs:       txs,
		outputs:   outputs,
		abort:     abort,
	}
}

// Invariant `num_active_tasks`:
//   - `NextTask` increases it if returns a valid task.
//   - `TryExecute` and `NeedsReexecution` don't change it if it returns a new valid task to run,
//     otherwise it decreases it.
func (e *Executor) Run() {
	var kind TaskKind
	version := InvalidTxnVersion
	for !e.scheduler.Done() {
		if !version.Valid() {
			// check for cancellation
			select {
			case <-e.ctx.Done():
				e.abort.Set(e.ctx.Err())
				e.scheduler.Halt()
				return
			default:
			}

			version, kind = e.scheduler.NextTask()
			continue
		}

		switch kind {
		case TaskKindExecution:
			version, kind = e.TryExecute(version)
		case TaskKindValidation:
			version, kind = e.NeedsReexecution(version)
		}
	}
}

func (e *Executor) TryExecute(version TxnVersion) (TxnVersion, TaskKind) {
	e.scheduler.executedTxns.Add(1)

	view := NewMVMemoryView(e.storage, e.mvMemory, e.scheduler, version.Index)
	status := e.task.ExecuteTransaction(view, &e.txs[version.Index], version.Index, false)

	if status.Kind == ExecutionAbort {
		// the engine decides, and it decides to fail the whole pass
		e.abort.Set(status.Err)
		e.scheduler.Halt()
		return InvalidTxnVersion, 0
	}
	if status.Kind == ExecutionSkipRest {
		e.scheduler.TrySkipRest(version.Index)
	}

	e.outputs[version.Index].Store(&status)
	wroteNewLocation := e.mvMemory.Record(version, view.ReadSet(), status.Output.WriteSet)
	return e.scheduler.FinishExecution(version, wroteNewLocation)
}

func (e *Executor) NeedsReexecution(version TxnVersion) (TxnVersion, TaskKind) {
	e.scheduler.validatedTxns.Add(1)
	valid := e.mvMemory.ValidateReadSet(version.Index)
	aborted := !valid && e.scheduler.TryValidationAbort(version)
	if aborted {
		e.mvMemory.ConvertWritesToEstimates(version.Index)
	}
	return e.scheduler.FinishValidation(version.Index, aborted)
}
