package block_exec

import "fmt"

// ExecutorTask is the per-worker adapter between the block executor and the
// VM. One instance per worker, for the duration of one block. Execution is
// pure with respect to shared state: every effect flows through the returned
// status, the only cross-execution state is the VM's content-addressed code
// cache.
type ExecutorTask struct {
	vm   *VM
	sink *SpecLogSink
}

// NewExecutorTask constructs the task's VM from on-chain configuration read
// through configSource, the base/genesis view.
func NewExecutorTask(configSource StateView, resolver ModuleResolver, sink *SpecLogSink) *ExecutorTask {
	if sink == nil {
		sink = NewSpecLogSink(nil)
	}
	vm := NewVM(ReadVMConfig(configSource), resolver)

	// Load the well-known warm-up module into the code cache to avoid the
	// cold-start cost of the first execution. The result is deliberately
	// discarded: warm-up is an optimization only, correctness-independent.
	_, _ = vm.LoadModule(vm.Config().WarmModule)

	return &ExecutorTask{vm: vm, sink: sink}
}

// ExecuteTransaction is called by the block executor for each transaction it
// intends to execute, either sequentially or speculatively as part of a
// parallel pass. The same index may be re-executed against fresher views
// after a conflict, every invocation stands on its own.
func (t *ExecutorTask) ExecuteTransaction(view StateView, txn *Transaction, idx TxnIndex, materializeDeltas bool) ExecutionStatus {
	log := t.sink.At(idx)

	vmStatus, out, sender, err := t.vm.ExecuteTransaction(view, txn)
	if err != nil {
		return Abort(err)
	}

	if materializeDeltas {
		if merr := out.TryMaterialize(view); merr != nil {
			// by contract unreachable for a correctly-ordered view, an
			// engine ordering defect rather than a transaction outcome
			panic(fmt.Sprintf("delta materialization failed: %v", merr))
		}
	}

	if out.Discarded() {
		if sender != "" {
			log.Trace().Str("sender", sender).Stringer("status", vmStatus).
				Msg("transaction discarded")
		} else {
			log.Trace().Stringer("status", vmStatus).
				Msg("transaction malformed")
		}
	}

	if out.TriggersReconfiguration() {
		log.Info().Msg("reconfiguration occurred: restart required")
		return SkipRest(out)
	}
	return Success(out)
}

// ConvertToWriteOp turns one modified key of a committed output into the
// final storage mutation. The caller classifies creation vs modification
// upstream, the converter trusts the flag. A nil value is a deletion
// regardless of the flag.
func (t *ExecutorTask) ConvertToWriteOp(key Key, maybeValue Value, isCreation bool) (WriteOp, error) {
	converter := NewWriteOpConverter(t.vm.Config().StorageSlotMetadata)

	op := StorageOp{Kind: StorageOpDelete}
	if maybeValue != nil {
		if isCreation {
			op = StorageOp{Kind: StorageOpNew, Value: maybeValue}
		} else {
			op = StorageOp{Kind: StorageOpModify, Value: maybeValue}
		}
	}

	wop, err := converter.Convert(key, op)
	if err != nil {
		// the cause is erased on purpose, callers only observe that the
		// conversion failed
		return WriteOp{}, ErrWriteOpConversion
	}
	return wop, nil
}
