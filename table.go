package rowkey

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type ColumnInfo struct {
	Name          string
	Offset        int
	Type          DataType
	AutoIncrement bool
	PrimaryKey    bool
}

// IndexColumn references a table column. A positive Length indexes only
// that many leading characters.
type IndexColumn struct {
	Name   string
	Offset int
	Length int
}

type IndexInfo struct {
	Name    string
	Columns []IndexColumn
	Unique  bool
	Primary bool
}

// Offsets returns the column positions the index is defined over.
func (idx *IndexInfo) Offsets() []int {
	offsets := make([]int, len(idx.Columns))
	for i, ic := range idx.Columns {
		offsets[i] = ic.Offset
	}
	return offsets
}

func (idx *IndexInfo) hasColumn(name string) bool {
	for _, ic := range idx.Columns {
		if strings.EqualFold(ic.Name, name) {
			return true
		}
	}
	return false
}

// TableInfo is the subset of table metadata needed to key and deduplicate
// rows. When PKIsHandle is set the table has a single integer primary-key
// column whose value is the row id; such a primary key is not listed in
// Indexes.
type TableInfo struct {
	Name       string
	Columns    []*ColumnInfo
	Indexes    []*IndexInfo
	PKIsHandle bool
}

func (t *TableInfo) Column(name string) *ColumnInfo {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return col
		}
	}
	return nil
}

func (t *TableInfo) AutoIncrementColumn() *ColumnInfo {
	for _, col := range t.Columns {
		if col.AutoIncrement {
			return col
		}
	}
	return nil
}

// PKHandleColumn returns the row-id column of a PKIsHandle table.
func (t *TableInfo) PKHandleColumn() *ColumnInfo {
	if !t.PKIsHandle {
		return nil
	}
	for _, col := range t.Columns {
		if col.PrimaryKey && col.Type.Tp().isInteger() {
			return col
		}
	}
	return nil
}

// PrimaryIndex returns the clustered primary key of a table that is neither
// keyed by an int row id nor keyless.
func (t *TableInfo) PrimaryIndex() *IndexInfo {
	if t.PKIsHandle {
		return nil
	}
	for _, idx := range t.Indexes {
		if idx.Primary {
			return idx
		}
	}
	return nil
}

// UniqueIndexes returns the unique and primary indexes in declaration order,
// followed by a synthesized index over the row-id column of a PKIsHandle
// table. With ignoreAutoIncrement, every index that includes the
// auto-increment column is left out.
func (t *TableInfo) UniqueIndexes(ignoreAutoIncrement bool) []*IndexInfo {
	var result []*IndexInfo
	for _, idx := range t.Indexes {
		if idx.Unique || idx.Primary {
			result = append(result, idx)
		}
	}
	if col := t.PKHandleColumn(); col != nil {
		result = append(result, &IndexInfo{
			Name:    "PRIMARY",
			Columns: []IndexColumn{{Name: col.Name, Offset: col.Offset}},
			Unique:  true,
			Primary: true,
		})
	}
	if ignoreAutoIncrement {
		if auto := t.AutoIncrementColumn(); auto != nil {
			kept := result[:0:0]
			for _, idx := range result {
				if !idx.hasColumn(auto.Name) {
					kept = append(kept, idx)
				}
			}
			result = kept
		}
	}
	return result
}

// UniqueProjections returns the column positions of every unique index.
func (t *TableInfo) UniqueProjections(ignoreAutoIncrement bool) [][]int {
	indexes := t.UniqueIndexes(ignoreAutoIncrement)
	projections := make([][]int, len(indexes))
	for i, idx := range indexes {
		projections[i] = idx.Offsets()
	}
	return projections
}

func (t *TableInfo) Validate() error {
	if t.Name == "" {
		return errors.New("table has no name")
	}
	if len(t.Columns) == 0 {
		return errors.Newf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	autos := 0
	for i, col := range t.Columns {
		if col.Offset != i {
			return errors.Newf("table %s: column %s has offset %d, wanted %d", t.Name, col.Name, col.Offset, i)
		}
		key := strings.ToLower(col.Name)
		if seen[key] {
			return errors.Newf("table %s: duplicate column %s", t.Name, col.Name)
		}
		seen[key] = true
		if col.AutoIncrement {
			autos++
		}
	}
	if autos > 1 {
		return errors.Newf("table %s has %d auto-increment columns", t.Name, autos)
	}
	primaries := 0
	for _, idx := range t.Indexes {
		if len(idx.Columns) == 0 {
			return errors.Newf("table %s: index %s has no columns", t.Name, idx.Name)
		}
		for _, ic := range idx.Columns {
			col := t.Column(ic.Name)
			if col == nil || col.Offset != ic.Offset {
				return errors.Newf("table %s: index %s references unknown column %s", t.Name, idx.Name, ic.Name)
			}
			if ic.Length > 0 && !col.Type.Tp().isString() {
				return errors.Newf("table %s: index %s has a prefix length on non-string column %s", t.Name, idx.Name, ic.Name)
			}
		}
		if idx.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		return errors.Newf("table %s has %d primary keys", t.Name, primaries)
	}
	if t.PKIsHandle {
		if primaries > 0 {
			return errors.Newf("table %s: pk_is_handle table lists its primary key as an index", t.Name)
		}
		n := 0
		for _, col := range t.Columns {
			if col.PrimaryKey {
				n++
			}
		}
		if n != 1 || t.PKHandleColumn() == nil {
			return errors.Newf("table %s: pk_is_handle needs exactly one integer primary key column", t.Name)
		}
	}
	return nil
}

// HandleOf computes the key of row: the row id of a PKIsHandle table or a
// common handle over the primary index. ok is false for tables without a
// primary key, whose rows get row ids assigned by the store.
func (t *TableInfo) HandleOf(row Row) (h Handle, ok bool, err error) {
	if col := t.PKHandleColumn(); col != nil {
		v := row.Get(col.Offset, nil)
		if v == nil {
			return Handle{}, false, errors.Newf("%s: primary key %s is NULL", t.Name, col.Name)
		}
		id, err := toInt64(v)
		if err != nil {
			return Handle{}, false, errors.Wrapf(col.Type.convErr(v, err), "%s.%s", t.Name, col.Name)
		}
		return NewIntHandle(id), true, nil
	}
	pk := t.PrimaryIndex()
	if pk == nil {
		return Handle{}, false, nil
	}
	types := make([]DataType, len(pk.Columns))
	values := make([]any, len(pk.Columns))
	prefixLengths := make([]int, len(pk.Columns))
	for i, ic := range pk.Columns {
		col := t.Columns[ic.Offset]
		types[i] = col.Type
		prefixLengths[i] = ic.Length
		v, err := handleValue(col, row.Get(ic.Offset, nil))
		if err != nil {
			return Handle{}, false, errors.Wrapf(err, "%s.%s", t.Name, col.Name)
		}
		values[i] = v
	}
	h, err = NewCommonHandle(types, values, prefixLengths)
	if err != nil {
		return Handle{}, false, errors.Wrapf(err, "%s", t.Name)
	}
	return h, true, nil
}

// handleValue converts a row value into the form NewCommonHandle expects:
// epoch milliseconds for TIMESTAMP and epoch days for DATE.
func handleValue(col *ColumnInfo, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type.Tp() {
	case TypeTimestamp:
		if n, err := toInt64(v); err == nil {
			return n, nil
		}
		t, err := ConvertToDateTime(v, col.Type.Location())
		if err != nil {
			return nil, err
		}
		return t.UnixMilli(), nil
	case TypeDate:
		if n, err := toInt64(v); err == nil {
			return n, nil
		}
		t, err := ConvertToDateTime(v, col.Type.Location())
		if err != nil {
			return nil, err
		}
		y, m, d := t.In(col.Type.Location()).Date()
		return floorDiv(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix(), secondsPerDay), nil
	}
	return v, nil
}
