// Package config carries the flag bits and tunables listed in spec.md §6.4.
package config

import "github.com/google/uuid"

// Flag bits, spec.md §6.4.
type Flags uint32

const (
	FlagSchemaless Flags = 1 << iota
	FlagTrackDDL
	FlagExperimentalLobs
	FlagShowIncompleteTransactions
	FlagIgnoreDataErrors
	FlagAdaptiveSchema
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Config is the parser's static configuration, analogous to the teacher's
// database-level settings (dbPath/dbName/enabled) in wal_manager.go, widened
// to the redo-log domain.
type Config struct {
	// ParserInstanceID distinguishes log lines from overlapping replay runs.
	ParserInstanceID uuid.UUID

	// BlockSize is 512, 1024, or 4096 (spec.md §3.1).
	BlockSize int

	Flags Flags

	// ConID restricts processing to a single PDB when > 0 (spec.md §4.3).
	ConID uint32

	// TransactionSizeMax is the per-transaction byte cap (spec.md §4.3).
	TransactionSizeMax uint64

	// FirstDataSCN / FirstSchemaSCN gate commit visibility (spec.md §3.2).
	FirstDataSCN   uint64
	FirstSchemaSCN uint64

	// MemoryChunkSize is the chunk size of each transaction's arena
	// (spec.md §4.1). The assembler does not check record lengths against
	// it.
	MemoryChunkSize uint32

	// LwnMaxMembers is the record budget per LWN (spec.md §3.1). The
	// assembler does not enforce it.
	LwnMaxMembers int
}

// Has reports whether bit is set in Flags.
func (c Config) Has(bit Flags) bool { return c.Flags.Has(bit) }

// Default returns a Config with the budgets named in spec.md §3.1/§4.1.
func Default() Config {
	return Config{
		ParserInstanceID: uuid.New(),
		BlockSize:        512,
		MemoryChunkSize:  1024 * 1024,
		LwnMaxMembers:    1 << 20,
	}
}
