package block_exec

import (
	"bytes"

	storetypes "cosmossdk.io/store/types"
	"github.com/tidwall/btree"
)

type memdbItem struct {
	key   Key
	value Value
}

func memdbItemLess(a, b memdbItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// KVStore is the mutable base storage the engine commits into, also the
// configuration source for task construction.
type KVStore interface {
	StateView
	// nil value is not allowed in `Set`
	Set(Key, Value)
	Delete(Key)

	Iterator(start, end Key) storetypes.Iterator
	ReverseIterator(start, end Key) storetypes.Iterator
}

type MemDB struct {
	btree.BTreeG[memdbItem]
}

var _ KVStore = (*MemDB)(nil)

func NewMemDB() *MemDB {
	return &MemDB{*btree.NewBTreeG[memdbItem](memdbItemLess)}
}

// NewMemDBNonConcurrent returns a new MemDB which is not safe for concurrent
// write operations by multiple goroutines.
func NewMemDBNonConcurrent() *MemDB {
	return &MemDB{*btree.NewBTreeGOptions[memdbItem](memdbItemLess, btree.Options{
		NoLocks: true,
	})}
}

func (db *MemDB) Get(key Key) Value {
	item, ok := db.BTreeG.Get(memdbItem{key: key})
	if !ok {
		return nil
	}
	return item.value
}

func (db *MemDB) Has(key Key) bool {
	_, ok := db.BTreeG.Get(memdbItem{key: key})
	return ok
}

func (db *MemDB) Set(key Key, value Value) {
	if value == nil {
		panic("nil value not allowed")
	}
	db.BTreeG.Set(memdbItem{key: key, value: value})
}

func (db *MemDB) Delete(key Key) {
	db.BTreeG.Delete(memdbItem{key: key})
}

func (db *MemDB) Scan(cb func(key Key, value Value) bool) {
	db.BTreeG.Scan(func(item memdbItem) bool {
		return cb(item.key, item.value)
	})
}

func (db *MemDB) Iterator(start, end Key) storetypes.Iterator {
	return newMemIterator(db.BTreeG.Iter(), start, end, true)
}

func (db *MemDB) ReverseIterator(start, end Key) storetypes.Iterator {
	return newMemIterator(db.BTreeG.Iter(), start, end, false)
}

// memIterator adapts a btree iterator to the cosmos iterator interface,
// bounds follow the usual [start, end) convention.
type memIterator struct {
	iter      btree.IterG[memdbItem]
	start     Key
	end       Key
	ascending bool
	valid     bool
}

var _ storetypes.Iterator = (*memIterator)(nil)

func newMemIterator(iter btree.IterG[memdbItem], start, end Key, ascending bool) *memIterator {
	it := &memIterator{
		iter:      iter,
		start:     start,
		end:       end,
		ascending: ascending,
	}
	if ascending {
		if start != nil {
			it.valid = it.iter.Seek(memdbItem{key: start})
		} else {
			it.valid = it.iter.First()
		}
	} else {
		if end != nil {
			if it.iter.Seek(memdbItem{key: end}) {
				// end is exclusive
				it.valid = it.iter.Prev()
			} else {
				it.valid = it.iter.Last()
			}
		} else {
			it.valid = it.iter.Last()
		}
	}
	it.checkBounds()
	return it
}

func (it *memIterator) Domain() ([]byte, []byte) {
	return it.start, it.end
}

func (it *memIterator) Valid() bool {
	return it.valid
}

func (it *memIterator) Next() {
	if !it.valid {
		return
	}
	if it.ascending {
		it.valid = it.iter.Next()
	} else {
		it.valid = it.iter.Prev()
	}
	it.checkBounds()
}

func (it *memIterator) Key() []byte {
	return it.iter.Item().key
}

func (it *memIterator) Value() []byte {
	return it.iter.Item().value
}

func (it *memIterator) Error() error {
	return nil
}

func (it *memIterator) Close() error {
	it.iter.Release()
	it.valid = false
	return nil
}

func (it *memIterator) checkBounds() {
	if !it.valid {
		return
	}
	key := it.iter.Item().key
	if it.ascending {
		if it.end != nil && bytes.Compare(key, it.end) >= 0 {
			it.valid = false
		}
	} else if it.start != nil && bytes.Compare(key, it.start) < 0 {
		it.valid = false
	}
}
