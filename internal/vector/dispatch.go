package vector

import "github.com/go-logr/logr"

// handlerFunc is the fixed signature every opcode handler implements
// (spec.md §9, "Dynamic dispatch over opcodes"): a compile-time table of
// closures indexed by opcode rather than an inheritance hierarchy.
type handlerFunc func(log logr.Logger, r *RedoLogRecord, fields []field) error

var handlers = map[OpCode]handlerFunc{
	OpUndo:        decodeUndo,
	OpBegin:       decodeBegin,
	OpCommit:      decodeCommit,
	OpRollback1:   decodeRollback,
	OpRollback2:   decodeRollback,
	OpDDL:         decodeDDL,
	OpLobData1301: decodeLobData,
	OpLobData1A06: decodeLobData,
}

func init() {
	for op := OpCode(0x0B02); op <= 0x0B16; op++ {
		handlers[op] = decodeDataDML
	}
	handlers[OpIndexInsert0A02] = decodeIndexLob
	handlers[OpIndexInit0A08] = decodeIndexLob
	handlers[OpIndexUpdate0A12] = decodeIndexLob
	handlers[OpSession0513] = decodeSession
	handlers[OpSession0514] = decodeSession
}

// dispatch looks up and invokes the handler for r.OpCode. An unknown opcode
// is a soft inconsistency (spec.md §7): log at WARNING and leave the vector
// otherwise unfilled rather than failing the whole record.
func dispatch(log logr.Logger, r *RedoLogRecord, fields []field) error {
	h, ok := handlers[r.OpCode]
	if !ok {
		log.Info("unknown opcode, vector fields left undecoded", "opcode", r.OpCode, "block", r.Block, "offset", r.Offset)
		return nil
	}
	return h(log, r, fields)
}
