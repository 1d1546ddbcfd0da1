package block_exec

import (
	"sync/atomic"
)

// MVMemory implements `Algorithm 2 The MVMemory module`
type MVMemory struct {
	data *MVData
	// keys are sorted
	lastWrittenLocations []atomic.Pointer[[]string]
	lastReadSet          []atomic.Pointer[ReadSet]
}

func NewMVMemory(blockSize int) *MVMemory {
	mv := &MVMemory{
		data:                 NewMVData(),
		lastWrittenLocations: make([]atomic.Pointer[[]string], blockSize),
		lastReadSet:          make([]atomic.Pointer[ReadSet], blockSize),
	}
	empty := make([]string, 0)
	for i := 0; i < blockSize; i++ {
		mv.lastWrittenLocations[i].Store(&empty)
	}
	return mv
}

// Record applies the write set of one incarnation and remembers its read set
// for later validation. Returns true if the incarnation wrote to at least one
// location not written by the previous one.
func (mv *MVMemory) Record(version TxnVersion, readSet ReadSet, writeSet *WriteSet) bool {
	newLocations := make([]string, 0, writeSet.Len())

	// apply_write_set
	writeSet.Scan(func(key Key, value Value) bool {
		mv.data.Write(key, value, version)
		newLocations = append(newLocations, string(key))
		return true
	})

	wroteNewLocation := mv.rcuUpdateWrittenLocations(version.Index, newLocations)
	mv.lastReadSet[version.Index].Store(&readSet)
	return wroteNewLocation
}

// newLocations are sorted
func (mv *MVMemory) rcuUpdateWrittenLocations(txn TxnIndex, newLocations []string) bool {
	prevLocations := *mv.lastWrittenLocations[txn].Load()

	var wroteNewLocation bool
	DiffOrderedList(prevLocations, newLocations, func(key string, isNew bool) bool {
		if isNew {
			wroteNewLocation = true
		} else {
			mv.data.Delete(Key(key), txn)
		}
		return true
	})

	mv.lastWrittenLocations[txn].Store(&newLocations)
	return wroteNewLocation
}

func (mv *MVMemory) ConvertWritesToEstimates(txn TxnIndex) {
	for _, key := range *mv.lastWrittenLocations[txn].Load() {
		mv.data.WriteEstimate(Key(key), txn)
	}
}

func (mv *MVMemory) Read(key Key, txn TxnIndex) (Value, TxnVersion, bool) {
	return mv.data.Read(key, txn)
}

func (mv *MVMemory) ValidateReadSet(txn TxnIndex) bool {
	// Invariant: at least one incarnation was recorded before validation.
	readSet := *mv.lastReadSet[txn].Load()
	for _, desc := range readSet {
		_, version, estimate := mv.data.Read(desc.Key, txn)
		if estimate {
			// previously read entry turned into an estimate mark
			return false
		}
		if version != desc.Version {
			// read a different version, or a previously read entry
			// disappeared (or vice versa)
			return false
		}
	}
	return true
}
