package block_exec

import (
	"bytes"
	"sync"

	"github.com/tidwall/btree"
)

// MVData stores the speculative writes of all transactions, ordered by key
// and transaction index. A nil value is a deletion tombstone, distinct from
// the key being absent.
type MVData struct {
	sync.RWMutex
	inner btree.BTreeG[dataItem]
}

func NewMVData() *MVData {
	return &MVData{
		inner: *btree.NewBTreeGOptions[dataItem](dataItemLess, btree.Options{
			// concurrency unsafe tree, protected by custom mutex
			NoLocks: true,
		})}
}

// getTreeOrDefault returns the version tree for the given key, creates a new
// tree if the key is not present.
func (d *MVData) getTreeOrDefault(key Key) *btree.BTreeG[secondaryDataItem] {
	var tree *btree.BTreeG[secondaryDataItem]

	d.Lock()
	item, ok := d.inner.Get(dataItem{Key: key})
	if !ok {
		// concurrency safe tree
		tree = btree.NewBTreeG[secondaryDataItem](secondaryDataItemLess)
		d.inner.Set(dataItem{Key: key, Tree: tree})
	} else {
		tree = item.Tree
	}

	d.Unlock()
	return tree
}

// getTree returns the version tree for the given key, returns nil if the key
// is not present.
func (d *MVData) getTree(key Key) *btree.BTreeG[secondaryDataItem] {
	d.RLock()
	item, _ := d.inner.Get(dataItem{Key: key})
	d.RUnlock()
	return item.Tree
}

func (d *MVData) Write(key Key, value Value, version TxnVersion) {
	tree := d.getTreeOrDefault(key)
	tree.Set(secondaryDataItem{Index: version.Index, Incarnation: version.Incarnation, Value: value})
}

func (d *MVData) WriteEstimate(key Key, txn TxnIndex) {
	tree := d.getTreeOrDefault(key)
	tree.Set(secondaryDataItem{Index: txn, Estimate: true})
}

func (d *MVData) Delete(key Key, txn TxnIndex) {
	tree := d.getTreeOrDefault(key)
	tree.Delete(secondaryDataItem{Index: txn})
}

// Read returns the latest value written below txn.
// The returned version is invalid if no entry is found, the estimate flag is
// set if the entry is an estimate mark, in which case version.Index is the
// blocking transaction.
func (d *MVData) Read(key Key, txn TxnIndex) (Value, TxnVersion, bool) {
	tree := d.getTree(key)
	if tree == nil {
		return nil, InvalidTxnVersion, false
	}

	iter := tree.Iter()
	defer iter.Release()

	if iter.Seek(secondaryDataItem{Index: txn}) {
		if !iter.Prev() {
			return nil, InvalidTxnVersion, false
		}
	} else if !iter.Last() {
		return nil, InvalidTxnVersion, false
	}

	item := iter.Item()
	if item.Estimate {
		return nil, TxnVersion{Index: item.Index}, true
	}
	return item.Value, item.Version(), false
}

type dataItem struct {
	Key  Key
	Tree *btree.BTreeG[secondaryDataItem]
}

func dataItemLess(a, b dataItem) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

type secondaryDataItem struct {
	Index       TxnIndex
	Incarnation Incarnation
	Value       Value
	Estimate    bool
}

func secondaryDataItemLess(a, b secondaryDataItem) bool {
	return a.Index < b.Index
}

func (item secondaryDataItem) Version() TxnVersion {
	return TxnVersion{Index: item.Index, Incarnation: item.Incarnation}
}
