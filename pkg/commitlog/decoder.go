package commitlog

// Decoder turns a record's raw payload into a typed value at traversal
// time. The log carries no row schema, so the decoder is supplied per call
// to Transactions/TransactionsFrom rather than fixed at Open. setID and
// opFlags are passed through from the record's own header since a
// schema-aware decoder (pkg/datastore's replay decoder) needs the table id
// to resolve which row type to decode payload against.
type Decoder interface {
	DecodeRecord(txOffset uint64, setID uint32, opFlags uint8, payload []byte) (any, error)
}

// BytesDecoder is the identity decoder: it hands back the raw payload
// bytes, used by callers (and this package's own tests) that don't carry a
// row schema at all.
type BytesDecoder struct{}

func (BytesDecoder) DecodeRecord(_ uint64, _ uint32, _ uint8, payload []byte) (any, error) {
	return payload, nil
}

// Record is one decoded entry yielded by Transactions/TransactionsFrom.
type Record struct {
	Offset  uint64
	OpFlags uint8
	SetID   uint32
	DataKey []byte
	Value   any
}

// CommitFrame is one decoded commit yielded by Commits, for fsck/diagnostic
// traversal that doesn't need per-record decoding.
type CommitFrame struct {
	CommitOffset uint64
	MinTxOffset  uint64
	RecordCount  uint16
	HasParent    bool
	ParentHash   [parentHashSize]byte
	Segment      string
}
