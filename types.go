package block_exec

import (
	"bytes"

	"github.com/tidwall/btree"
)

type (
	TxnIndex    int
	Incarnation uint
)

type TxnVersion struct {
	Index       TxnIndex
	Incarnation Incarnation
}

var InvalidTxnVersion = TxnVersion{-1, 0}

func (v TxnVersion) Valid() bool {
	return v.Index >= 0
}

type (
	Key   []byte
	Value []byte
)

type KVPair struct {
	Key   Key
	Value Value
}

type ReadDescriptor struct {
	Key Key
	// invalid version means the key is read from base storage
	Version TxnVersion
}

type ReadSet []ReadDescriptor

// StateView is the read interface a transaction executes against, implemented
// by both the base store and the per-transaction multi-version view.
type StateView interface {
	// Get returns nil if the key is absent.
	Get(Key) Value
	Has(Key) bool
}

type writeItem struct {
	key Key
	// nil value records a deletion
	value Value
}

func writeItemLess(a, b writeItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// WriteSet is the ordered set of key mutations produced by one transaction
// execution. A nil value is a deletion tombstone.
type WriteSet struct {
	btree.BTreeG[writeItem]
}

func NewWriteSet() *WriteSet {
	return &WriteSet{*btree.NewBTreeGOptions[writeItem](writeItemLess, btree.Options{
		NoLocks: true,
	})}
}

func (ws *WriteSet) Set(key Key, value Value) {
	ws.BTreeG.Set(writeItem{key: key, value: value})
}

func (ws *WriteSet) Get(key Key) (Value, bool) {
	item, ok := ws.BTreeG.Get(writeItem{key: key})
	if !ok {
		return nil, false
	}
	return item.value, true
}

func (ws *WriteSet) Scan(cb func(key Key, value Value) bool) {
	ws.BTreeG.Scan(func(item writeItem) bool {
		return cb(item.key, item.value)
	})
}
