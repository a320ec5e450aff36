package rowkey

import (
	"bytes"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// RowBuffer collects rows for a bulk write. A buffer with unique projections
// admits a row only if, under every projection, its projected values differ
// from those of every row already buffered. Duplicates are rejected with
// false, never with an error.
//
// RowBuffer is not safe for concurrent use.
type RowBuffer struct {
	capacity int
	rows     []Row
	trackers []*uniqueTracker
}

func NewRowBuffer(capacity int) *RowBuffer {
	return NewRowBufferWithProjections(capacity, nil)
}

// NewRowBufferWithProjections creates a buffer that deduplicates on each
// projection, a list of column positions. Projections are checked in order.
func NewRowBufferWithProjections(capacity int, projections [][]int) *RowBuffer {
	if capacity <= 0 {
		panic(errors.AssertionFailedf("row buffer capacity must be positive, got %d", capacity))
	}
	rb := &RowBuffer{
		capacity: capacity,
		rows:     make([]Row, 0, capacity),
		trackers: make([]*uniqueTracker, len(projections)),
	}
	for i, cols := range projections {
		rb.trackers[i] = newUniqueTracker(slices.Clone(cols))
	}
	return rb
}

// NewDedupRowBuffer deduplicates on the unique indexes of tbl; see
// TableInfo.UniqueIndexes.
func NewDedupRowBuffer(tbl *TableInfo, ignoreAutoIncrement bool, capacity int) *RowBuffer {
	return NewRowBufferWithProjections(capacity, tbl.UniqueProjections(ignoreAutoIncrement))
}

func (rb *RowBuffer) Capacity() int { return rb.capacity }
func (rb *RowBuffer) Size() int     { return len(rb.rows) }
func (rb *RowBuffer) IsFull() bool  { return len(rb.rows) >= rb.capacity }

// Rows returns a snapshot of the buffered rows.
func (rb *RowBuffer) Rows() []Row {
	return slices.Clone(rb.rows)
}

// Projections returns the column positions deduplicated on.
func (rb *RowBuffer) Projections() [][]int {
	result := make([][]int, len(rb.trackers))
	for i, tr := range rb.trackers {
		result[i] = slices.Clone(tr.columns)
	}
	return result
}

// Add buffers row and reports whether it was admitted. A rejected duplicate
// leaves the buffer unchanged.
func (rb *RowBuffer) Add(row Row) (bool, error) {
	if rb.IsFull() {
		return false, ErrBufferFull
	}
	if len(rb.trackers) == 0 {
		rb.rows = append(rb.rows, row)
		return true, nil
	}
	keys := make([][]byte, len(rb.trackers))
	hashes := make([]uint64, len(rb.trackers))
	for i, tr := range rb.trackers {
		key, err := tr.key(row)
		if err != nil {
			return false, err
		}
		h := xxhash.Sum64(key)
		if tr.contains(h, key) {
			return false, nil
		}
		keys[i], hashes[i] = key, h
	}
	rb.rows = append(rb.rows, row)
	for i, tr := range rb.trackers {
		tr.insert(hashes[i], keys[i])
	}
	return true, nil
}

// AddAll adds rows in order and returns how many were admitted. It stops at
// the first error, typically ErrBufferFull, returning the count so far.
func (rb *RowBuffer) AddAll(rows []Row) (int, error) {
	n := 0
	for _, row := range rows {
		ok, err := rb.Add(row)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Clear drops the buffered rows and forgets every seen value. Snapshots
// returned by Rows are unaffected.
func (rb *RowBuffer) Clear() {
	rb.rows = make([]Row, 0, rb.capacity)
	for _, tr := range rb.trackers {
		tr.reset()
	}
}

// uniqueTracker remembers the canonical tuples seen under one projection,
// bucketed by xxhash.
type uniqueTracker struct {
	columns []int
	seen    map[uint64][][]byte
}

func newUniqueTracker(columns []int) *uniqueTracker {
	return &uniqueTracker{columns: columns, seen: make(map[uint64][][]byte)}
}

func (tr *uniqueTracker) key(row Row) ([]byte, error) {
	values := make([]any, len(tr.columns))
	for i, col := range tr.columns {
		values[i] = row.Get(col, nil)
	}
	key, err := appendCanonicalTuple(nil, values)
	if err != nil {
		return nil, errors.Wrapf(err, "projecting columns %v", tr.columns)
	}
	return key, nil
}

func (tr *uniqueTracker) contains(h uint64, key []byte) bool {
	for _, k := range tr.seen[h] {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}

func (tr *uniqueTracker) insert(h uint64, key []byte) {
	tr.seen[h] = append(tr.seen[h], key)
}

func (tr *uniqueTracker) reset() {
	tr.seen = make(map[uint64][][]byte)
}
