package block_exec

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// BlockResult holds the outputs of the committed prefix of the block, in
// transaction order. Outputs beyond a reconfiguration are not included.
type BlockResult struct {
	Outputs []*TxnOutput
}

// ExecuteBlock runs one block speculatively with the given number of worker
// goroutines and applies the committed write operations to storage. The
// storage snapshot taken before the run doubles as the configuration source
// for the per-worker tasks.
func ExecuteBlock(
	ctx context.Context,
	storage KVStore,
	resolver ModuleResolver,
	blk []Transaction,
	executors int,
	sink *SpecLogSink,
) (*BlockResult, error) {
	if executors < 1 {
		executors = 1
	}
	if sink == nil {
		sink = NewSpecLogSink(nil)
	}

	blockSize := len(blk)
	scheduler := NewScheduler(blockSize)
	mv := NewMVMemory(blockSize)
	outputs := make([]atomic.Pointer[ExecutionStatus], blockSize)
	abort := &onceError{}

	tasks := make([]*ExecutorTask, executors)
	for i := 0; i < executors; i++ {
		tasks[i] = NewExecutorTask(storage, resolver, sink)
	}

	var wg sync.WaitGroup
	wg.Add(executors)
	for i := 0; i < executors; i++ {
		go func(task *ExecutorTask) {
			defer wg.Done()
			NewExecutor(ctx, scheduler, storage, mv, task, blk, outputs, abort).Run()
		}(tasks[i])
	}
	wg.Wait()

	if err := abort.Get(); err != nil {
		for i := 0; i < blockSize; i++ {
			sink.Discard(TxnIndex(i))
		}
		return nil, err
	}

	return commit(storage, tasks[0], outputs, scheduler.StopIndex(), sink)
}

// ExecuteBlockSequential is the non-speculative fallback, executing and
// committing transactions one by one with deltas materialized inline.
func ExecuteBlockSequential(
	storage KVStore,
	resolver ModuleResolver,
	blk []Transaction,
	sink *SpecLogSink,
) (*BlockResult, error) {
	if sink == nil {
		sink = NewSpecLogSink(nil)
	}
	task := NewExecutorTask(storage, resolver, sink)

	res := &BlockResult{}
	for i := range blk {
		idx := TxnIndex(i)
		status := task.ExecuteTransaction(storage, &blk[i], idx, true)
		if status.Kind == ExecutionAbort {
			for j := i; j < len(blk); j++ {
				sink.Discard(TxnIndex(j))
			}
			return nil, status.Err
		}

		out := status.Output
		if !out.Discarded() {
			if err := applyOutput(storage, task, out); err != nil {
				return nil, err
			}
		}
		sink.Replay(idx)
		res.Outputs = append(res.Outputs, out)

		if status.Kind == ExecutionSkipRest {
			for j := i + 1; j < len(blk); j++ {
				sink.Discard(TxnIndex(j))
			}
			break
		}
	}
	return res, nil
}

// commit walks the executed prefix in order, materializes deltas against the
// committed state and applies the converted write operations. It stops at
// the scheduler's stop index, the first SkipRest (inclusive) or the first
// never-executed index, whichever comes first.
//
// The stop index bound matters on its own: once a reconfiguration lowers it,
// indices at or above it are never validated again, so their stored outputs
// may hold stale reads even when the boundary transaction later re-executed
// into a plain success.
func commit(
	storage KVStore,
	task *ExecutorTask,
	outputs []atomic.Pointer[ExecutionStatus],
	stop TxnIndex,
	sink *SpecLogSink,
) (*BlockResult, error) {
	res := &BlockResult{}
	committed := 0
	for i := 0; i < len(outputs) && TxnIndex(i) < stop; i++ {
		status := outputs[i].Load()
		if status == nil {
			// excluded from the pass by a reconfiguration
			break
		}
		out := status.Output

		// Storage already contains every committed write below i, which is
		// exactly the ordering the materializer relies on. A failure here is
		// an engine defect, not a transaction outcome.
		if err := out.TryMaterialize(storage); err != nil {
			panic(fmt.Sprintf("delta materialization failed at index %d: %v", i, err))
		}

		if !out.Discarded() {
			if err := applyOutput(storage, task, out); err != nil {
				return nil, err
			}
		}
		sink.Replay(TxnIndex(i))
		res.Outputs = append(res.Outputs, out)
		committed = i + 1

		if status.Kind == ExecutionSkipRest {
			break
		}
	}

	for i := committed; i < len(outputs); i++ {
		sink.Discard(TxnIndex(i))
	}
	return res, nil
}

func applyOutput(storage KVStore, task *ExecutorTask, out *TxnOutput) error {
	var applyErr error
	out.WriteSet.Scan(func(key Key, value Value) bool {
		// the key is a creation when committed state has no value for it yet
		wop, err := task.ConvertToWriteOp(key, value, !storage.Has(key))
		if err != nil {
			applyErr = err
			return false
		}
		switch wop.Kind {
		case WriteOpDeletion:
			storage.Delete(key)
		default:
			storage.Set(key, wop.Value)
		}
		return true
	})
	return applyErr
}
