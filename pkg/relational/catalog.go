package relational

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/stormdb/pkg/datastore"
	"github.com/cuemby/stormdb/pkg/sats"
)

// Fixed ids for the system tables every RelationalDB bootstraps before
// accepting a user CreateTable call. System catalogs are themselves
// ordinary tables: queryable and insertable like any other. No table,
// system or user, can be dropped: this package has no drop operation.
const (
	stTableID    uint32 = 1
	stColumnID   uint32 = 2
	stIndexID    uint32 = 3
	stSequenceID uint32 = 4
	stRLSID      uint32 = 5

	firstUserTableID uint32 = 6
)

// Column type fidelity in the catalog is intentionally shallow: st_column
// stores each column's top-level sats.Kind tag, not a fully recursive
// AlgebraicType tree. Every table this engine's own tests and scenarios
// create uses scalar columns, so the catalog can fully reconstruct them on
// replay; a caller who registers a table with a nested Product/Sum/Array
// column must re-supply that TableSchema to CreateTable after a fresh
// Open rather than rely on catalog-driven reconstruction alone. Recording
// a full self-describing type tree would require the catalog to host a
// meta-schema for AlgebraicType itself, which is out of scope here.

var (
	stTableSchema, errStTable = datastore.NewTableSchema(stTableID, "st_table", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU32), PrimaryKey: true},
		{Name: "name", Type: sats.Scalar(sats.KindString)},
		{Name: "access", Type: sats.Scalar(sats.KindU8)},
		{Name: "lifecycle", Type: sats.Scalar(sats.KindU8)},
	}, nil, datastore.AccessPublic, datastore.LifecycleSystem)
	stColumnSchema, errStColumn = datastore.NewTableSchema(stColumnID, "st_column", []datastore.ColumnDef{
		{Name: "table_id", Type: sats.Scalar(sats.KindU32)},
		{Name: "col_index", Type: sats.Scalar(sats.KindU32)},
		{Name: "name", Type: sats.Scalar(sats.KindString)},
		{Name: "kind", Type: sats.Scalar(sats.KindU8)},
		{Name: "primary_key", Type: sats.Scalar(sats.KindBool)},
		{Name: "has_seq", Type: sats.Scalar(sats.KindBool)},
		{Name: "sequence_id", Type: sats.Scalar(sats.KindU32)},
	}, nil, datastore.AccessPublic, datastore.LifecycleSystem)
	stIndexSchema, errStIndex = datastore.NewTableSchema(stIndexID, "st_index", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU32), PrimaryKey: true},
		{Name: "table_id", Type: sats.Scalar(sats.KindU32)},
		{Name: "name", Type: sats.Scalar(sats.KindString)},
		{Name: "kind", Type: sats.Scalar(sats.KindU8)},
		{Name: "columns_csv", Type: sats.Scalar(sats.KindString)},
	}, nil, datastore.AccessPublic, datastore.LifecycleSystem)
	stSequenceSchema, errStSequence = datastore.NewTableSchema(stSequenceID, "st_sequence", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU32), PrimaryKey: true},
		{Name: "table_id", Type: sats.Scalar(sats.KindU32)},
		{Name: "column_index", Type: sats.Scalar(sats.KindU32)},
		{Name: "allocated", Type: sats.Scalar(sats.KindI64)},
	}, nil, datastore.AccessPublic, datastore.LifecycleSystem)
	stRLSSchema, errStRLS = datastore.NewTableSchema(stRLSID, "st_row_level_security", []datastore.ColumnDef{
		{Name: "table_id", Type: sats.Scalar(sats.KindU32), PrimaryKey: true},
		{Name: "sql", Type: sats.Scalar(sats.KindString)},
	}, nil, datastore.AccessPublic, datastore.LifecycleSystem)
)

func init() {
	for _, err := range []error{errStTable, errStColumn, errStIndex, errStSequence, errStRLS} {
		if err != nil {
			panic(fmt.Sprintf("relational: system table schema: %v", err)) // fixed schemas, always well-formed
		}
	}
}

func systemTableSchemas() []datastore.TableSchema {
	return []datastore.TableSchema{stTableSchema, stColumnSchema, stIndexSchema, stSequenceSchema, stRLSSchema}
}

// rowOf builds a row for schema from fields keyed by column name, so
// callers never need to know BuildProduct's canonical field ordering:
// schema.Columns is already in that order, and rowOf follows it.
func rowOf(schema datastore.TableSchema, fields map[string]sats.Value) sats.Value {
	out := make([]sats.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		out[i] = fields[c.Name]
	}
	return sats.ProductValue(out)
}

// fieldsOf is rowOf's inverse: it maps row's values back to their column
// names using schema's own canonical order.
func fieldsOf(schema datastore.TableSchema, row sats.Value) map[string]sats.Value {
	out := make(map[string]sats.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		out[c.Name] = row.Product[i]
	}
	return out
}

// encodeCatalogRows turns schema into the rows st_table/st_column/st_index
// inserts when the table is created, so a later Open can reconstruct it
// without the caller re-declaring it (subject to the shallow-column-type
// note above).
func encodeCatalogRows(schema datastore.TableSchema) (tableRow sats.Value, columnRows, indexRows []sats.Value) {
	tableRow = rowOf(stTableSchema, map[string]sats.Value{
		"id":        sats.U32Value(schema.ID),
		"name":      sats.StringValue(schema.Name),
		"access":    sats.U8Value(uint8(schema.Access)),
		"lifecycle": sats.U8Value(uint8(schema.Lifecycle)),
	})

	for i, c := range schema.Columns {
		columnRows = append(columnRows, rowOf(stColumnSchema, map[string]sats.Value{
			"table_id":    sats.U32Value(schema.ID),
			"col_index":   sats.U32Value(uint32(i)),
			"name":        sats.StringValue(c.Name),
			"kind":        sats.U8Value(uint8(c.Type.Kind)),
			"primary_key": sats.BoolValue(c.PrimaryKey),
			"has_seq":     sats.BoolValue(c.HasSeq),
			"sequence_id": sats.U32Value(c.SequenceID),
		}))
	}

	for _, idx := range schema.Indexes {
		cols := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			cols[i] = strconv.Itoa(c)
		}
		indexRows = append(indexRows, rowOf(stIndexSchema, map[string]sats.Value{
			"id":          sats.U32Value(idx.ID),
			"table_id":    sats.U32Value(schema.ID),
			"name":        sats.StringValue(idx.Name),
			"kind":        sats.U8Value(uint8(idx.Kind)),
			"columns_csv": sats.StringValue(strings.Join(cols, ",")),
		}))
	}
	return tableRow, columnRows, indexRows
}

// decodeUserTables rebuilds every non-system TableSchema from the rows
// already committed into st_table/st_column/st_index, in preparation for
// CreateTable-ing each before the commit log's user-table records replay.
func decodeUserTables(cs *datastore.CommittedState) ([]datastore.TableSchema, error) {
	tableRows, err := cs.SnapshotRows(stTableID)
	if err != nil {
		return nil, fmt.Errorf("relational: catalog: %w", err)
	}
	columnRows, err := cs.SnapshotRows(stColumnID)
	if err != nil {
		return nil, fmt.Errorf("relational: catalog: %w", err)
	}
	indexRows, err := cs.SnapshotRows(stIndexID)
	if err != nil {
		return nil, fmt.Errorf("relational: catalog: %w", err)
	}

	colsByTable := make(map[uint32][]map[string]sats.Value)
	for _, r := range columnRows {
		f := fieldsOf(stColumnSchema, r.Value)
		tid := uint32(f["table_id"].Uint)
		colsByTable[tid] = append(colsByTable[tid], f)
	}
	idxByTable := make(map[uint32][]map[string]sats.Value)
	for _, r := range indexRows {
		f := fieldsOf(stIndexSchema, r.Value)
		tid := uint32(f["table_id"].Uint)
		idxByTable[tid] = append(idxByTable[tid], f)
	}

	var out []datastore.TableSchema
	for _, tr := range tableRows {
		f := fieldsOf(stTableSchema, tr.Value)
		id := uint32(f["id"].Uint)
		if id < firstUserTableID {
			continue // system table, already bootstrapped
		}
		name := f["name"].Str
		access := datastore.Access(f["access"].Uint)
		lifecycle := datastore.Lifecycle(f["lifecycle"].Uint)

		rawCols := colsByTable[id]
		columns := make([]datastore.ColumnDef, len(rawCols))
		for _, cf := range rawCols {
			idx := cf["col_index"].Uint
			columns[idx] = datastore.ColumnDef{
				Name:       cf["name"].Str,
				Type:       sats.Scalar(sats.Kind(cf["kind"].Uint)),
				PrimaryKey: cf["primary_key"].Bool,
				HasSeq:     cf["has_seq"].Bool,
				SequenceID: uint32(cf["sequence_id"].Uint),
			}
		}

		var indexes []datastore.IndexDef
		for _, idxf := range idxByTable[id] {
			var cols []int
			for _, s := range strings.Split(idxf["columns_csv"].Str, ",") {
				if s == "" {
					continue
				}
				n, err := strconv.Atoi(s)
				if err != nil {
					return nil, fmt.Errorf("relational: catalog: bad index column list %q: %w", idxf["columns_csv"].Str, err)
				}
				cols = append(cols, n)
			}
			indexes = append(indexes, datastore.IndexDef{
				ID:      uint32(idxf["id"].Uint),
				Name:    idxf["name"].Str,
				Columns: cols,
				Kind:    datastore.IndexKind(idxf["kind"].Uint),
			})
		}

		// Columns and indexes are already in canonical order as recorded
		// at creation time; build the schema directly rather than through
		// NewTableSchema, which would try (harmlessly, but needlessly) to
		// recanonicalize and re-synthesize a PK index we already have.
		out = append(out, datastore.TableSchema{
			ID: id, Name: name, Columns: columns, Indexes: indexes,
			Access: access, Lifecycle: lifecycle,
		})
	}
	return out, nil
}
