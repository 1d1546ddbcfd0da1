package block_exec

import (
	"cmp"
	"sync"
	"sync/atomic"
)

// StoreMin implements a compare-and-swap loop that stores the minimum of the
// current value and the given value.
func StoreMin(a *atomic.Uint64, b uint64) {
	for {
		old := a.Load()
		if old <= b {
			return
		}
		if a.CompareAndSwap(old, b) {
			return
		}
	}
}

func DecreaseAtomic(a *atomic.Uint64) {
	a.Add(^uint64(0))
}

func IncreaseAtomic(a *atomic.Uint64) {
	a.Add(1)
}

// DiffOrderedList compares two sorted lists, callback arguments: (value, is_new)
func DiffOrderedList[T cmp.Ordered](old, new []T, callback func(T, bool) bool) {
	i, j := 0, 0
	for i < len(old) && j < len(new) {
		if old[i] < new[j] {
			if !callback(old[i], false) {
				return
			}
			i++
		} else if old[i] > new[j] {
			if !callback(new[j], true) {
				return
			}
			j++
		} else {
			i++
			j++
		}
	}
	for ; i < len(old); i++ {
		if !callback(old[i], false) {
			return
		}
	}
	for ; j < len(new); j++ {
		if !callback(new[j], true) {
			return
		}
	}
}

// Condvar is a single-shot notification, waiters block until Notify is called.
type Condvar struct {
	ch chan struct{}
}

func NewCondvar() *Condvar {
	return &Condvar{ch: make(chan struct{})}
}

func (c *Condvar) Wait() {
	<-c.ch
}

func (c *Condvar) Notify() {
	close(c.ch)
}

// onceError keeps the first error reported by any worker.
type onceError struct {
	once sync.Once
	err  error
}

func (o *onceError) Set(err error) {
	o.once.Do(func() {
		o.err = err
	})
}

func (o *onceError) Get() error {
	return o.err
}
