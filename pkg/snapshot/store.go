package snapshot

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/stormdb/pkg/datastore"
	"github.com/cuemby/stormdb/pkg/sats"
)

var (
	bucketMeta = []byte("meta")
	keyOffset  = []byte("offset")
)

const fileSuffix = ".stdb-snap"

// Store manages the snapshots/ directory beneath a RelationalDB's root.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating it if absent.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func fileName(offset uint64) string {
	return fmt.Sprintf("%020d%s", offset, fileSuffix)
}

func tableBucket(tableID uint32) []byte {
	return []byte("table:" + strconv.FormatUint(uint64(tableID), 10))
}

func seqBucket(tableID uint32) []byte {
	return []byte("seq:" + strconv.FormatUint(uint64(tableID), 10))
}

// List returns every snapshot offset present, ascending.
func (s *Store) List() ([]uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list %s: %w", s.dir, err)
	}
	var offsets []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		raw := strings.TrimSuffix(e.Name(), fileSuffix)
		off, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}

// Latest returns the highest snapshot offset present, or ok=false if none.
func (s *Store) Latest() (offset uint64, ok bool, err error) {
	offsets, err := s.List()
	if err != nil {
		return 0, false, err
	}
	if len(offsets) == 0 {
		return 0, false, nil
	}
	return offsets[len(offsets)-1], true, nil
}

// Write captures every table in cs into a new snapshot file named for
// offset (the commit log offset this snapshot is consistent as-of). The
// caller must hold a guard excluding writers on cs (a read transaction is
// enough), so the copy is a consistent point in time.
func (s *Store) Write(cs *datastore.CommittedState, offset uint64) error {
	path := filepath.Join(s.dir, fileName(offset))
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		offBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(offBytes, offset)
		if err := meta.Put(keyOffset, offBytes); err != nil {
			return err
		}

		for _, schema := range cs.AllTables() {
			rows, err := cs.SnapshotRows(schema.ID)
			if err != nil {
				return fmt.Errorf("snapshot table %s: %w", schema.Name, err)
			}
			rowType := schema.RowType()

			tb, err := tx.CreateBucketIfNotExists(tableBucket(schema.ID))
			if err != nil {
				return err
			}
			for _, row := range rows {
				w := sats.NewWriter()
				if err := sats.Encode(w, rowType, row.Value, nil); err != nil {
					return fmt.Errorf("snapshot table %s row: %w", schema.Name, err)
				}
				key := make([]byte, 8)
				binary.BigEndian.PutUint64(key, uint64(row.Ptr))
				if err := tb.Put(key, w.Bytes()); err != nil {
					return err
				}
			}

			allocs, err := cs.SequenceAllocations(schema.ID)
			if err != nil {
				return fmt.Errorf("snapshot table %s sequences: %w", schema.Name, err)
			}
			if len(allocs) > 0 {
				sb, err := tx.CreateBucketIfNotExists(seqBucket(schema.ID))
				if err != nil {
					return err
				}
				for seqID, allocated := range allocs {
					key := make([]byte, 4)
					binary.BigEndian.PutUint32(key, seqID)
					val := make([]byte, 8)
					binary.BigEndian.PutUint64(val, uint64(allocated))
					if err := sb.Put(key, val); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// Load restores the snapshot at offset into cs, which must already have
// every referenced table registered via CreateTable (the catalog bootstrap
// that always precedes a snapshot load). It returns only an error; the
// caller resumes replaying the commit log from offset+1 itself.
func (s *Store) Load(cs *datastore.CommittedState, offset uint64) error {
	return s.LoadTables(cs, offset, nil)
}

// LoadTables is Load restricted to the given table ids (every registered
// table when only is nil). RelationalDB.Open uses this to restore the
// system catalog tables first, decode the user tables they describe, and
// only then restore those user tables, a single Load pass can't do both,
// since a table not yet registered in cs is (correctly) skipped, and
// calling Load twice over the same already-restored system tables would
// double-insert their rows into their unique indexes.
func (s *Store) LoadTables(cs *datastore.CommittedState, offset uint64, only []uint32) error {
	wanted := map[uint32]bool(nil)
	if only != nil {
		wanted = make(map[uint32]bool, len(only))
		for _, id := range only {
			wanted[id] = true
		}
	}

	path := filepath.Join(s.dir, fileName(offset))
	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer db.Close()

	return db.View(func(tx *bolt.Tx) error {
		for _, schema := range cs.AllTables() {
			if wanted != nil && !wanted[schema.ID] {
				continue
			}
			tb := tx.Bucket(tableBucket(schema.ID))
			if tb == nil {
				continue // table created after this snapshot was taken
			}
			rowType := schema.RowType()

			var rows []datastore.Row
			if err := tb.ForEach(func(k, v []byte) error {
				ptr := datastore.RowPointer(binary.BigEndian.Uint64(k))
				val, err := sats.Decode(sats.NewReader(v), rowType, nil)
				if err != nil {
					return fmt.Errorf("snapshot table %s row: %w", schema.Name, err)
				}
				rows = append(rows, datastore.Row{Ptr: ptr, Value: val})
				return nil
			}); err != nil {
				return err
			}

			allocs := make(map[uint32]int64)
			if sb := tx.Bucket(seqBucket(schema.ID)); sb != nil {
				if err := sb.ForEach(func(k, v []byte) error {
					allocs[binary.BigEndian.Uint32(k)] = int64(binary.BigEndian.Uint64(v))
					return nil
				}); err != nil {
					return err
				}
			}

			if err := cs.LoadSnapshotRows(schema.ID, rows, allocs); err != nil {
				return fmt.Errorf("snapshot table %s: %w", schema.Name, err)
			}
		}
		return nil
	})
}

// DeleteFrom removes every snapshot whose offset is >= cut, per the
// Open Question decision recorded in DESIGN.md: a ResetTo invalidates any
// snapshot that captured state past the cut, rather than preserving it as
// a restorable branch.
func (s *Store) DeleteFrom(cut uint64) error {
	offsets, err := s.List()
	if err != nil {
		return err
	}
	for _, off := range offsets {
		if off < cut {
			continue
		}
		path := filepath.Join(s.dir, fileName(off))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("snapshot: remove %s: %w", path, err)
		}
	}
	return nil
}
