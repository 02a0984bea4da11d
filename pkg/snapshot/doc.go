/*
Package snapshot persists periodic point-in-time copies of a
datastore.CommittedState to a database's `snapshots/` directory, so
RelationalDB.Open can skip replaying the entire commit log from offset
zero: it loads the most recent snapshot, then replays only the tail of the
log after the snapshot's offset.

Each snapshot is its own bbolt database file, named
`<20-digit zero-padded offset>.stdb-snap`, following the commit log's own
segment-naming convention (pkg/commitlog). One bolt bucket per table,
"table:<id>", holds its committed rows (key: big-endian RowPointer, value:
the row's sats wire encoding against its own schema); a "seq:<id>" bucket
per table (written only when the table has sequences) holds each
sequence column's allocated watermark, so a restored table's sequences
never hand out a value already used before the snapshot.

Snapshots are an optional acceleration, never a requirement for
correctness: RelationalDB.Open works identically, only slower, with no
snapshots directory present at all.
*/
package snapshot
