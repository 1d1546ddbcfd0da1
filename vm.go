package block_exec

import (
	"encoding/binary"
	"errors"
)

type StatusCode int

const (
	CodeExecuted StatusCode = iota
	CodeOutOfGas
	// discard class: the transaction never makes it into the committed
	// write set, the batch continues
	CodeMalformedSender
	CodeInvalidSequenceNumber
	CodeModuleNotFound
	CodeFunctionNotFound
	// the gas limit doesn't even cover the base charge and the prologue,
	// the transaction stays replayable so it must not commit
	CodeInsufficientGas
)

func (c StatusCode) String() string {
	switch c {
	case CodeExecuted:
		return "executed"
	case CodeOutOfGas:
		return "out of gas"
	case CodeMalformedSender:
		return "malformed sender"
	case CodeInvalidSequenceNumber:
		return "invalid sequence number"
	case CodeModuleNotFound:
		return "module not found"
	case CodeFunctionNotFound:
		return "function not found"
	case CodeInsufficientGas:
		return "insufficient gas"
	default:
		return "unknown"
	}
}

// VMStatus is the raw per-transaction outcome as reported by the VM, before
// the executor task classifies it.
type VMStatus struct {
	Code StatusCode
}

func (s VMStatus) String() string {
	return s.Code.String()
}

func (s VMStatus) IsDiscarded() bool {
	switch s.Code {
	case CodeMalformedSender, CodeInvalidSequenceNumber, CodeModuleNotFound,
		CodeFunctionNotFound, CodeInsufficientGas:
		return true
	default:
		return false
	}
}

// Transaction is format-validated ahead of execution, the VM still performs
// sender and sequence checks against state.
type Transaction struct {
	Sender         string
	SequenceNumber uint64
	Module         ModuleID
	Function       string
	Args           [][]byte
	GasLimit       uint64
}

// VM is one deterministic virtual machine instance, built per worker from
// on-chain configuration. The module cache is the only state carried across
// executions and is content-addressed, so sharing it between re-executions of
// the same index is safe.
type VM struct {
	config   VMConfig
	resolver ModuleResolver
	cache    *moduleCache
}

func NewVM(config VMConfig, resolver ModuleResolver) *VM {
	return &VM{
		config:   config,
		resolver: resolver,
		cache:    newModuleCache(),
	}
}

func (vm *VM) Config() VMConfig {
	return vm.config
}

// LoadModule resolves a module through the read-through code cache.
func (vm *VM) LoadModule(id ModuleID) (*Module, error) {
	if mod, ok := vm.cache.get(id); ok {
		return mod, nil
	}
	mod, err := vm.resolver.LoadModule(id)
	if err != nil {
		return nil, err
	}
	vm.cache.put(id, mod)
	return mod, nil
}

// ExecuteTransaction runs one transaction against the view. All effects flow
// through the returned output, shared state is never touched.
//
// The sender is returned whenever the transaction was well-formed enough to
// identify one, even if it is later discarded. A non-nil error is a VM-level
// execution failure (runtime abort), everything else is reported through the
// status.
func (vm *VM) ExecuteTransaction(view StateView, txn *Transaction) (VMStatus, *TxnOutput, string, error) {
	if !validSender(txn.Sender) {
		return discard(CodeMalformedSender, 0, "")
	}
	sender := txn.Sender

	ctx := newExecContext(view, sender, txn.Args, vm.config.GasSchedule, txn.GasLimit)
	if err := ctx.gas.charge(vm.config.GasSchedule.Base); err != nil {
		return discard(CodeInsufficientGas, ctx.gas.used, sender)
	}

	// prologue: the sequence number must match the account's. Running out
	// of gas here discards the transaction: the epilogue hasn't run yet, so
	// committing would leave it replayable.
	seq, err := ctx.GetU64(sequenceNumberKey(sender))
	if err != nil {
		return discard(CodeInsufficientGas, ctx.gas.used, sender)
	}
	if txn.SequenceNumber != seq {
		return discard(CodeInvalidSequenceNumber, ctx.gas.used, sender)
	}

	mod, err := vm.LoadModule(txn.Module)
	if err != nil {
		return discard(CodeModuleNotFound, ctx.gas.used, sender)
	}
	entry, ok := mod.Entry[txn.Function]
	if !ok {
		return discard(CodeFunctionNotFound, ctx.gas.used, sender)
	}

	status := VMStatus{Code: CodeExecuted}
	if err := entry(ctx); err != nil {
		if !errors.Is(err, errOutOfGas) {
			// runtime abort, surfaced to the engine as Abort
			return VMStatus{}, nil, sender, err
		}
		// keep the charge, drop the payload's effects
		status = VMStatus{Code: CodeOutOfGas}
		ctx.dropEffects()
	}

	// epilogue: bump the sender's sequence number
	ctx.setRaw(sequenceNumberKey(sender), u64Bytes(seq+1))

	return status, ctx.finish(status), sender, nil
}

func discard(code StatusCode, gasUsed uint64, sender string) (VMStatus, *TxnOutput, string, error) {
	status := VMStatus{Code: code}
	out := &TxnOutput{
		Status:   status,
		WriteSet: NewWriteSet(),
		GasUsed:  gasUsed,
	}
	return status, out, sender, nil
}

func validSender(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}

func sequenceNumberKey(sender string) Key {
	return Key("sequence" + sender)
}

var errOutOfGas = errors.New("out of gas")

type gasMeter struct {
	limit uint64
	used  uint64
}

func (g *gasMeter) charge(amount uint64) error {
	g.used += amount
	if g.used > g.limit {
		g.used = g.limit
		return errOutOfGas
	}
	return nil
}

// ExecContext is the effect collector handed to module entry functions.
// Reads go through the transaction's own pending writes first, then the
// supplied view.
type ExecContext struct {
	view     StateView
	sender   string
	args     [][]byte
	gas      gasMeter
	schedule GasSchedule

	writes *WriteSet
	deltas []DeltaOp
	events []Event
}

func newExecContext(view StateView, sender string, args [][]byte, schedule GasSchedule, gasLimit uint64) *ExecContext {
	return &ExecContext{
		view:     view,
		sender:   sender,
		args:     args,
		gas:      gasMeter{limit: gasLimit},
		schedule: schedule,
		writes:   NewWriteSet(),
	}
}

func (ctx *ExecContext) Sender() string {
	return ctx.sender
}

func (ctx *ExecContext) Args() [][]byte {
	return ctx.args
}

func (ctx *ExecContext) Get(key Key) (Value, error) {
	if err := ctx.gas.charge(ctx.schedule.Read); err != nil {
		return nil, err
	}
	if value, ok := ctx.writes.Get(key); ok {
		return value, nil
	}
	return ctx.view.Get(key), nil
}

func (ctx *ExecContext) Set(key Key, value Value) error {
	if value == nil {
		panic("nil value not allowed")
	}
	if err := ctx.gas.charge(ctx.schedule.Write); err != nil {
		return err
	}
	ctx.writes.Set(key, value)
	return nil
}

func (ctx *ExecContext) Delete(key Key) error {
	if err := ctx.gas.charge(ctx.schedule.Write); err != nil {
		return err
	}
	ctx.writes.Set(key, nil)
	return nil
}

// ApplyDelta records a deferred numeric adjustment instead of a plain write,
// letting non-conflicting transactions touch the same aggregator key.
func (ctx *ExecContext) ApplyDelta(delta DeltaOp) error {
	if err := ctx.gas.charge(ctx.schedule.Write); err != nil {
		return err
	}
	ctx.deltas = append(ctx.deltas, delta)
	return nil
}

func (ctx *ExecContext) EmitEvent(ev Event) {
	ctx.events = append(ctx.events, ev)
}

func (ctx *ExecContext) GetU64(key Key) (uint64, error) {
	v, err := ctx.Get(key)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

func (ctx *ExecContext) SetU64(key Key, value uint64) error {
	return ctx.Set(key, u64Bytes(value))
}

// setRaw bypasses gas metering, used by the epilogue.
func (ctx *ExecContext) setRaw(key Key, value Value) {
	ctx.writes.Set(key, value)
}

// dropEffects clears the payload's effects while keeping the gas charge,
// used when execution runs out of gas.
func (ctx *ExecContext) dropEffects() {
	ctx.writes = NewWriteSet()
	ctx.deltas = nil
	ctx.events = nil
}

func (ctx *ExecContext) finish(status VMStatus) *TxnOutput {
	return &TxnOutput{
		Status:   status,
		WriteSet: ctx.writes,
		Deltas:   ctx.deltas,
		Events:   ctx.events,
		GasUsed:  ctx.gas.used,
	}
}
