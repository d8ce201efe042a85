package engine

import (
	"fmt"

	"github.com/hupe1980/engramgo/wal"
)

// Mode is the store's durability posture.
type Mode int32

const (
	// ModeBulk favors ingestion throughput: WAL appends are buffered and a
	// crash can lose the unsynced tail. This is the default posture.
	ModeBulk Mode = iota

	// ModeDurable favors safety: every mutation is fsynced before the write
	// returns.
	ModeDurable
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeBulk:
		return "bulk"
	case ModeDurable:
		return "durable"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// walMode maps the store posture onto the WAL sync posture.
func (m Mode) walMode() wal.Mode {
	if m == ModeDurable {
		return wal.ModeSync
	}
	return wal.ModeBuffered
}

// ModeInfo describes the current durability posture for callers.
type ModeInfo struct {
	Mode        Mode   `json:"mode"`
	Description string `json:"description"`
	SyncWrites  bool   `json:"sync_writes"`
}

// Info returns a ModeInfo for the mode.
func (m Mode) Info() ModeInfo {
	info := ModeInfo{Mode: m, SyncWrites: m == ModeDurable}
	switch m {
	case ModeDurable:
		info.Description = "every write fsynced before returning"
	default:
		info.Description = "buffered writes, maximum ingestion throughput"
	}
	return info
}
