package block_exec

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
)

const codespace = "block_exec"

// ErrWriteOpConversion is returned whenever the metadata-aware conversion
// fails, the specific cause is intentionally erased at this boundary.
var ErrWriteOpConversion = errorsmod.Register(codespace, 2, "error on converting to write op")

type StorageOpKind int

const (
	StorageOpNew StorageOpKind = iota
	StorageOpModify
	StorageOpDelete
)

// StorageOp is the abstract mutation as the VM sees it, before the storage
// metadata policy is applied.
type StorageOp struct {
	Kind  StorageOpKind
	Value Value
}

type WriteOpKind int

const (
	WriteOpCreation WriteOpKind = iota
	WriteOpModification
	WriteOpDeletion
)

func (k WriteOpKind) String() string {
	switch k {
	case WriteOpCreation:
		return "creation"
	case WriteOpModification:
		return "modification"
	case WriteOpDeletion:
		return "deletion"
	default:
		return "unknown"
	}
}

// SlotMetadata is the storage-slot bookkeeping folded into a write operation
// when the metadata feature is enabled on chain.
type SlotMetadata struct {
	Present bool
	// the slot is allocated by this very operation
	NewSlot bool
}

// WriteOp is the final storage mutation for one key, Value is nil for
// deletions.
type WriteOp struct {
	Kind     WriteOpKind
	Value    Value
	Metadata SlotMetadata
}

// WriteOpConverter folds the storage-slot metadata policy into abstract
// storage operations. The policy flag is read once per task instance from VM
// configuration.
type WriteOpConverter struct {
	slotMetadataEnabled bool
}

func NewWriteOpConverter(slotMetadataEnabled bool) *WriteOpConverter {
	return &WriteOpConverter{slotMetadataEnabled: slotMetadataEnabled}
}

func (c *WriteOpConverter) Convert(key Key, op StorageOp) (WriteOp, error) {
	switch op.Kind {
	case StorageOpNew:
		if len(op.Value) == 0 {
			return WriteOp{}, fmt.Errorf("creation of %q without a value", key)
		}
		return WriteOp{
			Kind:     WriteOpCreation,
			Value:    op.Value,
			Metadata: c.metadata(true),
		}, nil
	case StorageOpModify:
		if len(op.Value) == 0 {
			return WriteOp{}, fmt.Errorf("modification of %q without a value", key)
		}
		return WriteOp{
			Kind:     WriteOpModification,
			Value:    op.Value,
			Metadata: c.metadata(false),
		}, nil
	case StorageOpDelete:
		// deleted slots carry no metadata
		return WriteOp{Kind: WriteOpDeletion}, nil
	default:
		return WriteOp{}, fmt.Errorf("unknown storage op kind %d for %q", op.Kind, key)
	}
}

func (c *WriteOpConverter) metadata(newSlot bool) SlotMetadata {
	if !c.slotMetadataEnabled {
		return SlotMetadata{}
	}
	return SlotMetadata{Present: true, NewSlot: newSlot}
}
