package block_exec

import (
	"testing"

	"github.com/test-go/testify/require"
)

func newTestVM(storage StateView) *VM {
	return NewVM(ReadVMConfig(storage), FrameworkResolver())
}

func TestVMExecuteSuccess(t *testing.T) {
	storage := NewMemDB()
	storage.Set(balanceKey("alice"), u64Bytes(100))
	vm := newTestVM(storage)

	tx := BankTransferTx("alice", "bob", 30, 0)
	status, out, sender, err := vm.ExecuteTransaction(storage, &tx)
	require.NoError(t, err)
	require.Equal(t, "alice", sender)
	require.Equal(t, CodeExecuted, status.Code)
	require.False(t, out.Discarded())

	// balances moved, epilogue bumped the sequence number
	v, ok := out.WriteSet.Get(balanceKey("alice"))
	require.True(t, ok)
	require.Equal(t, u64Bytes(70), v)
	v, ok = out.WriteSet.Get(balanceKey("bob"))
	require.True(t, ok)
	require.Equal(t, u64Bytes(30), v)
	v, ok = out.WriteSet.Get(sequenceNumberKey("alice"))
	require.True(t, ok)
	require.Equal(t, u64Bytes(1), v)

	// base state is untouched, all effects flow through the output
	require.Nil(t, storage.Get(balanceKey("bob")))
	require.Nil(t, storage.Get(sequenceNumberKey("alice")))
}

func TestVMMalformedSender(t *testing.T) {
	storage := NewMemDB()
	vm := newTestVM(storage)

	for _, sender := range []string{"", "bad/sender", "with space"} {
		tx := NoopTx(sender, 0)
		status, out, gotSender, err := vm.ExecuteTransaction(storage, &tx)
		require.NoError(t, err)
		require.Empty(t, gotSender)
		require.Equal(t, CodeMalformedSender, status.Code)
		require.True(t, out.Discarded())
		require.Equal(t, 0, out.WriteSet.Len())
	}
}

func TestVMSequenceNumberCheck(t *testing.T) {
	storage := NewMemDB()
	vm := newTestVM(storage)

	tx := NoopTx("alice", 5)
	status, out, sender, err := vm.ExecuteTransaction(storage, &tx)
	require.NoError(t, err)
	require.Equal(t, "alice", sender)
	require.Equal(t, CodeInvalidSequenceNumber, status.Code)
	require.True(t, out.Discarded())
}

func TestVMUnknownModuleAndFunction(t *testing.T) {
	storage := NewMemDB()
	vm := newTestVM(storage)

	tx := NoopTx("alice", 0)
	tx.Module = ModuleID{Address: "framework", Name: "nope"}
	status, out, _, err := vm.ExecuteTransaction(storage, &tx)
	require.NoError(t, err)
	require.Equal(t, CodeModuleNotFound, status.Code)
	require.True(t, out.Discarded())

	tx = NoopTx("alice", 0)
	tx.Function = "nope"
	status, out, _, err = vm.ExecuteTransaction(storage, &tx)
	require.NoError(t, err)
	require.Equal(t, CodeFunctionNotFound, status.Code)
	require.True(t, out.Discarded())
}

func TestVMRuntimeAbort(t *testing.T) {
	storage := NewMemDB()
	vm := newTestVM(storage)

	tx := FailTx("alice", 0)
	_, out, sender, err := vm.ExecuteTransaction(storage, &tx)
	require.Error(t, err)
	require.Nil(t, out)
	require.Equal(t, "alice", sender)
}

func TestVMOutOfGas(t *testing.T) {
	storage := NewMemDB()
	storage.Set(balanceKey("alice"), u64Bytes(100))
	vm := newTestVM(storage)

	// enough for base charge and prologue, not for the transfer
	tx := BankTransferTx("alice", "bob", 1, 0)
	tx.GasLimit = 20
	status, out, _, err := vm.ExecuteTransaction(storage, &tx)
	require.NoError(t, err)
	require.Equal(t, CodeOutOfGas, status.Code)
	require.False(t, out.Discarded())
	require.Equal(t, uint64(20), out.GasUsed)

	// payload writes dropped, the sequence number still advances
	_, ok := out.WriteSet.Get(balanceKey("bob"))
	require.False(t, ok)
	_, ok = out.WriteSet.Get(sequenceNumberKey("alice"))
	require.True(t, ok)
}

func TestVMInsufficientGasForPrologue(t *testing.T) {
	storage := NewMemDB()
	vm := newTestVM(storage)

	// below the base charge: no epilogue ran, the transaction stays
	// replayable and must be discarded rather than committed
	tx := NoopTx("alice", 0)
	tx.GasLimit = 5
	status, out, sender, err := vm.ExecuteTransaction(storage, &tx)
	require.NoError(t, err)
	require.Equal(t, "alice", sender)
	require.Equal(t, CodeInsufficientGas, status.Code)
	require.True(t, out.Discarded())
	require.Equal(t, 0, out.WriteSet.Len())

	// covers the base charge but not the prologue read
	tx = NoopTx("alice", 0)
	tx.GasLimit = 12
	status, out, _, err = vm.ExecuteTransaction(storage, &tx)
	require.NoError(t, err)
	require.Equal(t, CodeInsufficientGas, status.Code)
	require.True(t, out.Discarded())
}

func TestVMModuleCacheWarmUp(t *testing.T) {
	storage := NewMemDB()
	vm := newTestVM(storage)

	id := ModuleID{Address: "framework", Name: "account"}
	mod1, err := vm.LoadModule(id)
	require.NoError(t, err)
	mod2, err := vm.LoadModule(id)
	require.NoError(t, err)
	// same instance served from the cache
	require.True(t, mod1 == mod2)
}
