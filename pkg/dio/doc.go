/*
Package dio provides page- and block-aligned buffered I/O over files opened
in a mode that bypasses the OS page cache, so the commit log (see pkg/commitlog)
has deterministic durability without double buffering.

# Architecture

	┌─────────────────── ALIGNED-PAGE I/O ─────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │               Page (4 KiB)                  │          │
	│  │  - backing allocation aligned to 512 bytes  │          │
	│  │  - write position, spare capacity           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│       ┌─────────────┴─────────────┐                       │
	│       ▼                           ▼                       │
	│  ┌──────────┐               ┌──────────┐                 │
	│  │PagedReader│               │PagedWriter│                 │
	│  │ fill/     │               │ accumulate/                │
	│  │ consume   │               │ flush aligned prefix       │
	│  └─────┬────┘               └─────┬────┘                 │
	│        │                           │                       │
	│        ▼                           ▼                       │
	│  ┌────────────────────────────────────────────┐          │
	│  │     Open (O_DIRECT / F_NOCACHE /             │          │
	│  │     FILE_FLAG_NO_BUFFERING, per platform)    │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

All on-disk writes occur at offsets and sizes that are multiples of
BlockSize; readers must tolerate a trailing zero-padded tail.
*/
package dio
