/*
Package datastore holds the in-memory, MVCC table store: CommittedState (the
authoritative snapshot of every table's rows, indexes, and sequences) and
TxState (a mutating transaction's private insert/delete buffer), plus the
transaction manager that moves a TxState into CommittedState on commit by
handing its encoded contents to a commit log.

Rows are addressed by RowPointer, an opaque handle that is only meaningful
for the lifetime of one transaction view, never persisted, never compared
across restarts.
*/
package datastore
