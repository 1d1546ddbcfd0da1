package block_exec

import (
	"bytes"
	"testing"

	"github.com/test-go/testify/require"
)

func newTestTask(storage KVStore, sink *SpecLogSink) *ExecutorTask {
	return NewExecutorTask(storage, FrameworkResolver(), sink)
}

func TestExecuteTransactionDeterminism(t *testing.T) {
	// two views agreeing on every key the transaction reads must produce
	// identical results, regardless of unrelated state
	viewA := NewMemDB()
	viewA.Set(balanceKey("alice"), u64Bytes(100))

	viewB := NewMemDB()
	viewB.Set(balanceKey("alice"), u64Bytes(100))
	viewB.Set(balanceKey("carol"), u64Bytes(999))
	viewB.Set(Key("unrelated"), Value("junk"))

	task := newTestTask(NewMemDB(), nil)
	tx := BankTransferTx("alice", "bob", 25, 0)

	statusA := task.ExecuteTransaction(viewA, &tx, 7, false)
	statusB := task.ExecuteTransaction(viewB, &tx, 7, false)

	require.Equal(t, statusA.Kind, statusB.Kind)
	require.Equal(t, statusA.Output.Status, statusB.Output.Status)
	require.Equal(t, statusA.Output.GasUsed, statusB.Output.GasUsed)

	var a, b []KVPair
	statusA.Output.WriteSet.Scan(func(k Key, v Value) bool {
		a = append(a, KVPair{k, v})
		return true
	})
	statusB.Output.WriteSet.Scan(func(k Key, v Value) bool {
		b = append(b, KVPair{k, v})
		return true
	})
	require.Equal(t, a, b)
}

func TestExecuteTransactionDiscardTrace(t *testing.T) {
	sink := NewSpecLogSink(nil)
	task := newTestTask(NewMemDB(), sink)

	// malformed sender: never an Abort, exactly one diagnostic trace
	tx := NoopTx("", 0)
	status := task.ExecuteTransaction(NewMemDB(), &tx, 3, false)
	require.Equal(t, ExecutionSuccess, status.Kind)
	require.True(t, status.Output.Discarded())

	entries := sink.Buffered(3)
	require.Equal(t, 1, bytes.Count(entries, []byte("\n")))
	require.Contains(t, string(entries), "transaction malformed")

	// discarded with a known sender names it in the trace
	tx = NoopTx("alice", 42)
	status = task.ExecuteTransaction(NewMemDB(), &tx, 4, false)
	require.Equal(t, ExecutionSuccess, status.Kind)
	require.True(t, status.Output.Discarded())

	entries = sink.Buffered(4)
	require.Equal(t, 1, bytes.Count(entries, []byte("\n")))
	require.Contains(t, string(entries), "transaction discarded")
	require.Contains(t, string(entries), "alice")

	// a re-execution replaces the previous attempt's entries
	status = task.ExecuteTransaction(NewMemDB(), &tx, 4, false)
	require.True(t, status.Output.Discarded())
	require.Equal(t, 1, bytes.Count(sink.Buffered(4), []byte("\n")))
}

func TestExecuteTransactionReconfiguration(t *testing.T) {
	storage := NewMemDB()
	task := newTestTask(storage, nil)

	tx := ReconfigureTx("alice", 0)
	status := task.ExecuteTransaction(storage, &tx, 0, false)
	require.Equal(t, ExecutionSkipRest, status.Kind)
	require.False(t, status.Output.Discarded())
	require.True(t, status.Output.TriggersReconfiguration())
}

func TestExecuteTransactionAbort(t *testing.T) {
	storage := NewMemDB()
	task := newTestTask(storage, nil)

	tx := FailTx("alice", 0)
	status := task.ExecuteTransaction(storage, &tx, 0, false)
	require.Equal(t, ExecutionAbort, status.Kind)
	require.Error(t, status.Err)
	require.Nil(t, status.Output)
}

func TestExecuteTransactionMaterializeInline(t *testing.T) {
	storage := NewMemDB()
	storage.Set(CounterKey, u64Bytes(7))
	task := newTestTask(storage, nil)

	tx := CounterAddTx("alice", 10, 0)
	status := task.ExecuteTransaction(storage, &tx, 0, true)
	require.Equal(t, ExecutionSuccess, status.Kind)
	require.Empty(t, status.Output.Deltas)

	v, ok := status.Output.WriteSet.Get(CounterKey)
	require.True(t, ok)
	require.Equal(t, u64Bytes(17), v)
}

func TestExecuteTransactionMaterializeFatal(t *testing.T) {
	// the aggregator base value is missing, resolution is a fatal condition
	storage := NewMemDB()
	task := newTestTask(storage, nil)

	tx := CounterAddTx("alice", 10, 0)
	require.Panics(t, func() {
		task.ExecuteTransaction(storage, &tx, 0, true)
	})
}

func TestWarmUpFailureIsSwallowed(t *testing.T) {
	// no resolvable modules at all, construction still succeeds
	task := NewExecutorTask(NewMemDB(), NewStaticResolver(), nil)
	require.NotNil(t, task)

	tx := NoopTx("alice", 0)
	status := task.ExecuteTransaction(NewMemDB(), &tx, 0, false)
	require.Equal(t, ExecutionSuccess, status.Kind)
	require.True(t, status.Output.Discarded())
	require.Equal(t, CodeModuleNotFound, status.Output.Status.Code)
}

func TestConvertToWriteOp(t *testing.T) {
	task := newTestTask(NewMemDB(), nil)

	// nil value is a deletion regardless of the creation flag
	for _, creation := range []bool{true, false} {
		wop, err := task.ConvertToWriteOp(Key("k"), nil, creation)
		require.NoError(t, err)
		require.Equal(t, WriteOpDeletion, wop.Kind)
		require.Nil(t, wop.Value)
	}

	wop, err := task.ConvertToWriteOp(Key("k"), Value("v"), true)
	require.NoError(t, err)
	require.Equal(t, WriteOpCreation, wop.Kind)
	require.Equal(t, Value("v"), wop.Value)

	wop, err = task.ConvertToWriteOp(Key("k"), Value("v"), false)
	require.NoError(t, err)
	require.Equal(t, WriteOpModification, wop.Kind)

	// conversion failure is the registered error, the cause is erased
	_, err = task.ConvertToWriteOp(Key("k"), Value{}, true)
	require.Equal(t, ErrWriteOpConversion, err)
}

func TestConvertToWriteOpMetadataPolicy(t *testing.T) {
	storage := NewMemDB()
	cfg := DefaultVMConfig()
	cfg.StorageSlotMetadata = true
	WriteVMConfig(storage, cfg)

	task := newTestTask(storage, nil)

	wop, err := task.ConvertToWriteOp(Key("k"), Value("v"), true)
	require.NoError(t, err)
	require.True(t, wop.Metadata.Present)
	require.True(t, wop.Metadata.NewSlot)

	wop, err = task.ConvertToWriteOp(Key("k"), Value("v"), false)
	require.NoError(t, err)
	require.True(t, wop.Metadata.Present)
	require.False(t, wop.Metadata.NewSlot)

	wop, err = task.ConvertToWriteOp(Key("k"), nil, false)
	require.NoError(t, err)
	require.False(t, wop.Metadata.Present)

	// policy disabled: no metadata on anything
	task = newTestTask(NewMemDB(), nil)
	wop, err = task.ConvertToWriteOp(Key("k"), Value("v"), true)
	require.NoError(t, err)
	require.False(t, wop.Metadata.Present)
}
