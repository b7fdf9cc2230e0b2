package vector

import (
	"github.com/go-logr/logr"

	"github.com/leengari/redologparser/internal/lob"
)

// decodeDataDML implements the Data DML family (0x0B02..0x0B16): field 1
// names the (bdba, slot) the operation touched. obj/data_obj are not
// decoded here; they arrive via promoteCompanionMeta from the preceding
// undo vector (spec.md §4.2, testable property #2).
func decodeDataDML(log logr.Logger, r *RedoLogRecord, fields []field) error {
	if len(fields) < 1 {
		return nil
	}
	fb := fields[0].bytes
	if len(fb) < 6 {
		log.Info("data DML vector: short target field", "length", len(fb))
		return nil
	}
	r.Bdba = ByteOrder.Uint32(fb[0:4])
	r.Slot = ByteOrder.Uint16(fb[4:6])
	return nil
}

// decodeIndexLob implements the experimental index/LOB vectors
// (0x0A02/0x0A08/0x0A12): field 1's index-key blob carries lob_id at a
// fixed 10-byte offset, lob_page_no as the following 4 bytes, and the
// remaining bytes are the index key itself (spec.md §4.2, Index/LOB
// family). Neither the decoder nor the router consults
// FlagExperimentalLobs; these vectors are always decoded and routed.
func decodeIndexLob(log logr.Logger, r *RedoLogRecord, fields []field) error {
	if len(fields) < 1 {
		return nil
	}
	fb := fields[0].bytes
	const lobIDOff, pageNoOff, keyOff = 0, 10, 14
	if len(fb) < keyOff {
		log.Info("index/lob vector: short key field", "length", len(fb))
		return nil
	}
	copy(r.LobID[:], fb[lobIDOff:lobIDOff+10])
	r.LobPageNo = lob.PageNo(ByteOrder.Uint32(fb[pageNoOff : pageNoOff+4]))
	r.IndKey = fb[keyOff:]
	r.IndKeyLength = len(r.IndKey)
	return nil
}

// decodeLobData implements the standalone LOB-data vectors
// (0x1301/0x1A06): the first 10 bytes of field 1 are the lob_id, the rest
// is that page's raw data (spec.md §4.2, LOB data family).
func decodeLobData(log logr.Logger, r *RedoLogRecord, fields []field) error {
	if len(fields) < 1 {
		return nil
	}
	fb := fields[0].bytes
	if len(fb) < 10 {
		log.Info("lob data vector: short field", "length", len(fb))
		return nil
	}
	copy(r.LobID[:], fb[0:10])
	r.Data = fb[10:]
	return nil
}

// decodeDDL implements the DDL marker vector (0x1801): ddl_type and seq are
// fixed-width, the remainder is the (possibly truncated) statement text
// (spec.md §4.2, DDL family; only consulted when FlagTrackDDL is set).
func decodeDDL(log logr.Logger, r *RedoLogRecord, fields []field) error {
	if len(fields) < 1 {
		return nil
	}
	fb := fields[0].bytes
	if len(fb) < 4 {
		log.Info("ddl vector: short field", "length", len(fb))
		return nil
	}
	r.DDLType = ByteOrder.Uint16(fb[0:2])
	r.DDLSeq = ByteOrder.Uint16(fb[2:4])
	r.DDLText = string(fb[4:])
	return nil
}
