package block_exec

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/cometbft/cometbft/crypto/secp256k1"
)

// Simulated framework modules for tests and benchmarks.

// CounterKey is the aggregator key the counter module applies deltas to.
var CounterKey = Key("countertotal")

const DefaultGasLimit = 1000

func balanceKey(name string) Key {
	return Key("balance" + name)
}

// AccountModule is the warm-up target, its entries cover the common
// pre/post-condition work every transaction touches.
func AccountModule() *Module {
	verifySig := genRandomSignature()
	return &Module{
		ID: ModuleID{Address: "framework", Name: "account"},
		Entry: map[string]EntryFunc{
			"noop": func(ctx *ExecContext) error {
				verifySig()
				return nil
			},
			"fail": func(ctx *ExecContext) error {
				return fmt.Errorf("abort in %s: user abort code 42", ctx.Sender())
			},
		},
	}
}

func BankModule() *Module {
	verifySig := genRandomSignature()
	return &Module{
		ID: ModuleID{Address: "framework", Name: "bank"},
		Entry: map[string]EntryFunc{
			"transfer": func(ctx *ExecContext) error {
				verifySig()
				args := ctx.Args()
				if len(args) != 2 || len(args[1]) != 8 {
					return fmt.Errorf("transfer: malformed arguments")
				}
				receiver := string(args[0])
				amount := binary.BigEndian.Uint64(args[1])
				return bankTransfer(ctx, ctx.Sender(), receiver, amount)
			},
		},
	}
}

// CounterModule adjusts a shared aggregator through deferred deltas, so
// concurrent increments don't conflict with each other.
func CounterModule() *Module {
	return &Module{
		ID: ModuleID{Address: "framework", Name: "counter"},
		Entry: map[string]EntryFunc{
			"add": func(ctx *ExecContext) error {
				args := ctx.Args()
				if len(args) != 1 || len(args[0]) != 8 {
					return fmt.Errorf("add: malformed arguments")
				}
				return ctx.ApplyDelta(AddDelta(CounterKey, binary.BigEndian.Uint64(args[0])))
			},
		},
	}
}

// ReconfigModule changes global on-chain configuration, every transaction
// ordered after it in the same pass must not execute.
func ReconfigModule() *Module {
	return &Module{
		ID: ModuleID{Address: "framework", Name: "reconfig"},
		Entry: map[string]EntryFunc{
			"bump_epoch": func(ctx *ExecContext) error {
				epoch, err := ctx.GetU64(KeyEpoch)
				if err != nil {
					return err
				}
				if err := ctx.SetU64(KeyEpoch, epoch+1); err != nil {
					return err
				}
				ctx.EmitEvent(Event{Type: EventNewEpoch, Data: u64Bytes(epoch + 1)})
				return nil
			},
		},
	}
}

func FrameworkResolver() *StaticResolver {
	return NewStaticResolver(AccountModule(), BankModule(), CounterModule(), ReconfigModule())
}

func NoopTx(sender string, seq uint64) Transaction {
	return Transaction{
		Sender:         sender,
		SequenceNumber: seq,
		Module:         ModuleID{Address: "framework", Name: "account"},
		Function:       "noop",
		GasLimit:       DefaultGasLimit,
	}
}

func FailTx(sender string, seq uint64) Transaction {
	return Transaction{
		Sender:         sender,
		SequenceNumber: seq,
		Module:         ModuleID{Address: "framework", Name: "account"},
		Function:       "fail",
		GasLimit:       DefaultGasLimit,
	}
}

func BankTransferTx(sender, receiver string, amount, seq uint64) Transaction {
	return Transaction{
		Sender:         sender,
		SequenceNumber: seq,
		Module:         ModuleID{Address: "framework", Name: "bank"},
		Function:       "transfer",
		Args:           [][]byte{[]byte(receiver), u64Bytes(amount)},
		GasLimit:       DefaultGasLimit,
	}
}

func CounterAddTx(sender string, amount, seq uint64) Transaction {
	return Transaction{
		Sender:         sender,
		SequenceNumber: seq,
		Module:         ModuleID{Address: "framework", Name: "counter"},
		Function:       "add",
		Args:           [][]byte{u64Bytes(amount)},
		GasLimit:       DefaultGasLimit,
	}
}

func ReconfigureTx(sender string, seq uint64) Transaction {
	return Transaction{
		Sender:         sender,
		SequenceNumber: seq,
		Module:         ModuleID{Address: "framework", Name: "reconfig"},
		Function:       "bump_epoch",
		GasLimit:       DefaultGasLimit,
	}
}

func genRandomSignature() func() {
	privKey := secp256k1.GenPrivKey()
	signBytes := make([]byte, 1024)
	if _, err := cryptorand.Read(signBytes); err != nil {
		panic(err)
	}
	sig, _ := privKey.Sign(signBytes)
	pubKey := privKey.PubKey()

	return func() {
		pubKey.VerifySignature(signBytes, sig)
	}
}

func bankTransfer(ctx *ExecContext, sender, receiver string, amount uint64) error {
	senderBalance, err := ctx.GetU64(balanceKey(sender))
	if err != nil {
		return err
	}
	receiverBalance, err := ctx.GetU64(balanceKey(receiver))
	if err != nil {
		return err
	}

	if senderBalance >= amount {
		// avoid the failure
		senderBalance -= amount
	}
	receiverBalance += amount

	if err := ctx.SetU64(balanceKey(sender), senderBalance); err != nil {
		return err
	}
	return ctx.SetU64(balanceKey(receiver), receiverBalance)
}
