package datastore

import "github.com/cuemby/stormdb/pkg/sats"

// Access is a table's public/private visibility tag.
type Access int

const (
	AccessPublic Access = iota
	AccessPrivate
)

// Lifecycle distinguishes system catalog tables from user tables.
type Lifecycle int

const (
	LifecycleUser Lifecycle = iota
	LifecycleSystem
)

// IndexKind selects which Index implementation backs an IndexDef.
type IndexKind int

const (
	IndexUnique IndexKind = iota
	IndexMulti
)

// IndexDef declares one index over one or more columns of a table, named by
// position in RowType.Product.
type IndexDef struct {
	ID      uint32
	Name    string
	Columns []int
	Kind    IndexKind
}

// ColumnDef names and types one field of a table's row product, and
// records whether it is the table's primary key and/or sequence-backed.
type ColumnDef struct {
	Name       string
	Type       sats.AlgebraicType
	PrimaryKey bool
	SequenceID uint32 // 0 means "no sequence"
	HasSeq     bool
}

// TableSchema is a table's stable definition: id, row type, indexes,
// sequences, access and lifecycle tags.
type TableSchema struct {
	ID        uint32
	Name      string
	Columns   []ColumnDef
	Indexes   []IndexDef
	Access    Access
	Lifecycle Lifecycle
}

// NewTableSchema builds a TableSchema, reordering columns (and remapping
// every IndexDef's column positions along with them) into the canonical
// field order pkg/sats.BuildProduct computes, applied once, here, at
// schema-construction time, so every later consumer (Insert, RowType,
// index maintenance) works against one single column order and never
// re-derives it.
func NewTableSchema(id uint32, name string, columns []ColumnDef, indexes []IndexDef, access Access, lifecycle Lifecycle) (TableSchema, error) {
	fields := make([]sats.ProductElement, len(columns))
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		n := c.Name
		fields[i] = sats.ProductElement{Name: &n, Type: c.Type}
		byName[c.Name] = i
	}
	canonical, err := sats.BuildProduct(fields)
	if err != nil {
		return TableSchema{}, err
	}

	orderedColumns := make([]ColumnDef, len(columns))
	oldToNew := make([]int, len(columns))
	for newIdx, f := range canonical {
		oldIdx := byName[*f.Name]
		orderedColumns[newIdx] = columns[oldIdx]
		oldToNew[oldIdx] = newIdx
	}

	orderedIndexes := make([]IndexDef, len(indexes))
	maxIndexID := uint32(0)
	for i, idx := range indexes {
		remapped := make([]int, len(idx.Columns))
		for j, oldCol := range idx.Columns {
			remapped[j] = oldToNew[oldCol]
		}
		idx.Columns = remapped
		orderedIndexes[i] = idx
		if idx.ID > maxIndexID {
			maxIndexID = idx.ID
		}
	}

	// Every primary key needs a unique index to enforce it and to let
	// DeleteByPK/UpdateByPK resolve a key to a RowPointer; synthesize one if
	// the caller didn't declare it explicitly.
	pkCol := -1
	for i, c := range orderedColumns {
		if c.PrimaryKey {
			pkCol = i
			break
		}
	}
	if pkCol >= 0 {
		hasPKIndex := false
		for _, idx := range orderedIndexes {
			if len(idx.Columns) == 1 && idx.Columns[0] == pkCol && idx.Kind == IndexUnique {
				hasPKIndex = true
				break
			}
		}
		if !hasPKIndex {
			orderedIndexes = append(orderedIndexes, IndexDef{
				ID:      maxIndexID + 1,
				Name:    name + "_pkey",
				Columns: []int{pkCol},
				Kind:    IndexUnique,
			})
		}
	}

	return TableSchema{
		ID:        id,
		Name:      name,
		Columns:   orderedColumns,
		Indexes:   orderedIndexes,
		Access:    access,
		Lifecycle: lifecycle,
	}, nil
}

// RowType builds the product AlgebraicType every row of this table must
// conform to. s.Columns is already in canonical order (NewTableSchema
// applies it once), so this just projects each column's type through in
// that order.
func (s TableSchema) RowType() sats.AlgebraicType {
	fields := make([]sats.ProductElement, len(s.Columns))
	for i, c := range s.Columns {
		name := c.Name
		fields[i] = sats.ProductElement{Name: &name, Type: c.Type}
	}
	return sats.AlgebraicType{Kind: sats.KindProduct, Product: fields}
}

// PrimaryKeyColumn returns the index of the table's primary-key column, or
// -1 if it has none.
func (s TableSchema) PrimaryKeyColumn() int {
	for i, c := range s.Columns {
		if c.PrimaryKey {
			return i
		}
	}
	return -1
}
