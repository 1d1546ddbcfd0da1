package block_exec

type Event struct {
	Type string
	Data []byte
}

// EventNewEpoch marks an on-chain reconfiguration, its presence in an output
// invalidates every transaction after the emitting one in the current pass.
const EventNewEpoch = "new_epoch"

// TxnOutput is the raw effect of one execution attempt: a write set possibly
// accompanied by unresolved deltas, emitted events, the VM status and the gas
// charged. It is not final until the deltas are materialized.
type TxnOutput struct {
	Status   VMStatus
	WriteSet *WriteSet
	Deltas   []DeltaOp
	Events   []Event
	GasUsed  uint64
}

// Discarded outputs are non-committable, the batch still continues.
func (o *TxnOutput) Discarded() bool {
	return o.Status.IsDiscarded()
}

func (o *TxnOutput) TriggersReconfiguration() bool {
	for _, ev := range o.Events {
		if ev.Type == EventNewEpoch {
			return true
		}
	}
	return false
}

// TryMaterialize resolves every deferred delta against the view and folds the
// concrete values into the write set. Applying it to an already-materialized
// output is a no-op.
//
// An error here means the view violated its ordering guarantees, callers
// treat it as fatal rather than a transaction outcome.
func (o *TxnOutput) TryMaterialize(view StateView) error {
	for _, delta := range o.Deltas {
		resolved, err := delta.ApplyTo(view.Get(delta.Key))
		if err != nil {
			return err
		}
		o.WriteSet.Set(delta.Key, u64Bytes(resolved))
	}
	o.Deltas = nil
	return nil
}
