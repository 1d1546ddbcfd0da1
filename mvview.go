package block_exec

// MVMemoryView wraps `MVMemory` as the state view of a single transaction
// attempt. It sees speculative writes from strictly lower indices, falls back
// to base storage below them, and records every observed read.
type MVMemoryView struct {
	storage   StateView
	mvMemory  *MVMemory
	scheduler *Scheduler

	txn     TxnIndex
	readSet ReadSet
}

var _ StateView = (*MVMemoryView)(nil)

func NewMVMemoryView(storage StateView, mvMemory *MVMemory, scheduler *Scheduler, txn TxnIndex) *MVMemoryView {
	return &MVMemoryView{
		storage:   storage,
		mvMemory:  mvMemory,
		scheduler: scheduler,
		txn:       txn,
	}
}

func (s *MVMemoryView) Get(key Key) Value {
	for {
		value, version, estimate := s.mvMemory.Read(key, s.txn)
		if estimate {
			// read an ESTIMATE mark, wait for the blocking txn to finish
			cond := s.scheduler.WaitForDependency(s.txn, version.Index)
			if cond == nil {
				if s.scheduler.Done() || version.Index >= s.scheduler.StopIndex() {
					// the run is halting, or the blocking transaction never
					// re-executes; either way this result is discarded
					return nil
				}
				// dependency resolved in the meantime
				continue
			}
			cond.Wait()
			continue
		}

		if !version.Valid() {
			// record version ⊥ when reading from storage
			s.readSet = append(s.readSet, ReadDescriptor{key, InvalidTxnVersion})
			return s.storage.Get(key)
		}

		s.readSet = append(s.readSet, ReadDescriptor{key, version})
		// value is nil when a lower transaction deleted the key
		return value
	}
}

func (s *MVMemoryView) Has(key Key) bool {
	return s.Get(key) != nil
}

func (s *MVMemoryView) ReadSet() ReadSet {
	return s.readSet
}
