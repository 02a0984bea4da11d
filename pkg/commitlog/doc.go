/*
Package commitlog implements the durable, append-only, segmented commit log:
a sequence of commits, each a batch of records, persisted as a directory of
`<20-digit offset>.stdb-log` segment files written through pkg/dio's
page-aligned direct-I/O layer.

The log carries no row schema. Callers supply a Decoder to turn a record's
raw payload bytes into a typed value at traversal time (pkg/sats.Decode,
parameterized by a table's AlgebraicType, is the concrete decoder used
elsewhere in this module); the log itself only ever sees []byte.

# Framing

	segment file := commit frame*, zero-padded to the next 512-byte boundary
	commit frame := flags(1) parent_hash(32, present iff flags&0x01) commit_offset(8 LE) min_tx_offset(8 LE) record_count(2 LE) record*
	record       := op_flags(1) set_id(4 LE) data_key_len(1) data_key(data_key_len) payload_len(4 LE) payload(payload_len)

Commit offsets are contiguous: commit_offset(Ci) + record_count(Ci) ==
commit_offset(Ci+1). Parent-hash chaining uses crypto/sha256 over each
commit frame's encoded bytes; the wire format reserves 32 bytes for it, so
an 8-byte hash like xxhash cannot serve here.

# Durability

Append buffers a record into the current commit and never blocks; it fails
with ErrRecordsFull once the commit already holds Options.MaxRecordsInCommit
records. That rejection is the log's only backpressure signal. Flush seals the pending commit
into the active segment's page buffer (and rolls to a new segment if needed)
without fsync; FlushAndSync additionally calls the segment's SyncData and is
the only operation that gives a durability guarantee.
*/
package commitlog
