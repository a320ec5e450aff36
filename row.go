package rowkey

// Row is a buffered table row. Implementations are owned by the caller and
// are never modified by this package.
type Row interface {
	// Get returns the value of column col, or def when the row has no
	// value there.
	Get(col int, def any) any
}

// Values is a Row backed by a slice indexed by column offset.
type Values []any

func (v Values) Get(col int, def any) any {
	if col < 0 || col >= len(v) || v[col] == nil {
		return def
	}
	return v[col]
}
