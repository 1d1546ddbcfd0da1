package block_exec

import (
	"encoding/binary"
	"strings"
)

// On-chain VM configuration, stored under reserved keys in base state and
// read once per task instance, before any transaction executes.
var (
	KeyEpoch        = Key("config/epoch")
	keyGasBase      = Key("config/gas_base")
	keyGasRead      = Key("config/gas_read")
	keyGasWrite     = Key("config/gas_write")
	keySlotMetadata = Key("config/slot_metadata")
	keyWarmModule   = Key("config/warm_module")
)

type GasSchedule struct {
	// charged once per transaction
	Base uint64
	// charged per state read / write
	Read  uint64
	Write uint64
}

type VMConfig struct {
	GasSchedule GasSchedule
	// attach storage-slot metadata to write operations
	StorageSlotMetadata bool
	// module loaded at construction to warm the code cache
	WarmModule ModuleID
	Epoch      uint64
}

func DefaultVMConfig() VMConfig {
	return VMConfig{
		GasSchedule: GasSchedule{
			Base:  10,
			Read:  3,
			Write: 5,
		},
		StorageSlotMetadata: false,
		WarmModule:          ModuleID{Address: "framework", Name: "account"},
	}
}

// ReadVMConfig builds the configuration snapshot from base state, absent keys
// fall back to defaults.
func ReadVMConfig(view StateView) VMConfig {
	cfg := DefaultVMConfig()
	cfg.GasSchedule.Base = readU64(view, keyGasBase, cfg.GasSchedule.Base)
	cfg.GasSchedule.Read = readU64(view, keyGasRead, cfg.GasSchedule.Read)
	cfg.GasSchedule.Write = readU64(view, keyGasWrite, cfg.GasSchedule.Write)
	cfg.Epoch = readU64(view, KeyEpoch, 0)
	cfg.StorageSlotMetadata = view.Get(keySlotMetadata) != nil

	if raw := view.Get(keyWarmModule); raw != nil {
		if id, ok := parseModuleID(string(raw)); ok {
			cfg.WarmModule = id
		}
	}
	return cfg
}

// WriteVMConfig stores the configuration under the reserved keys, used to
// prepare genesis state.
func WriteVMConfig(storage KVStore, cfg VMConfig) {
	storage.Set(keyGasBase, u64Bytes(cfg.GasSchedule.Base))
	storage.Set(keyGasRead, u64Bytes(cfg.GasSchedule.Read))
	storage.Set(keyGasWrite, u64Bytes(cfg.GasSchedule.Write))
	storage.Set(KeyEpoch, u64Bytes(cfg.Epoch))
	storage.Set(keyWarmModule, Value(cfg.WarmModule.String()))
	if cfg.StorageSlotMetadata {
		storage.Set(keySlotMetadata, Value{1})
	} else {
		storage.Delete(keySlotMetadata)
	}
}

func parseModuleID(s string) (ModuleID, bool) {
	addr, name, ok := strings.Cut(s, "::")
	if !ok || addr == "" || name == "" {
		return ModuleID{}, false
	}
	return ModuleID{Address: addr, Name: name}, true
}

func readU64(view StateView, key Key, fallback uint64) uint64 {
	v := view.Get(key)
	if len(v) != 8 {
		return fallback
	}
	return binary.BigEndian.Uint64(v)
}

func u64Bytes(v uint64) Value {
	var bz [8]byte
	binary.BigEndian.PutUint64(bz[:], v)
	return bz[:]
}
