package rowkey

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/andreyvit/rowkey/codec"
)

// Compression selects how stored row values are compressed.
type Compression string

const (
	NoCompression     Compression = "none"
	SnappyCompression Compression = "snappy"
)

func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", NoCompression:
		return NoCompression, nil
	case SnappyCompression:
		return SnappyCompression, nil
	}
	return "", errors.Newf("unknown compression %q", s)
}

const metaBucket = "meta"

// Row value header flags.
const (
	valueFlagSnappy byte = 1 << 0
)

type Options struct {
	Logger      *slog.Logger
	Compression Compression
	IsTesting   bool
	MmapSize    int
}

// Store is a local staging area for buffered rows, keyed by row handle so
// that its iteration order matches the row store's.
type Store struct {
	st          storage
	logger      *slog.Logger
	compression Compression
}

// tableMeta is persisted per table in the meta bucket.
type tableMeta struct {
	NextRowID int64    `msgpack:"n"`
	Columns   []string `msgpack:"c"`
	Flushes   int      `msgpack:"f"`
}

// Open opens or creates a Bolt-backed store at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, errors.Wrapf(err, "opening store %s", path)
	}
	return newStore(newBoltStorage(bdb), opt), nil
}

// OpenMemory returns a store that lives in memory only.
func OpenMemory(opt Options) *Store {
	return newStore(newMemStorage(), opt)
}

func newStore(st storage, opt Options) *Store {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	compression := opt.Compression
	if compression == "" {
		compression = NoCompression
	}
	return &Store{st: st, logger: logger, compression: compression}
}

func (s *Store) Close() error {
	return s.st.Close()
}

func (s *Store) write(f func(tx storageTx) error) error {
	tx, err := s.st.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) read(f func(tx storageTx) error) error {
	tx, err := s.st.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

// Flush writes every buffered row under its handle and clears buf. Rows of
// tables without a primary key get sequential row ids. A row whose handle is
// already stored replaces it. On error nothing is written and buf is left
// intact.
func (s *Store) Flush(tbl *TableInfo, buf *RowBuffer) (int, error) {
	start := time.Now()
	rows := buf.Rows()
	err := s.write(func(tx storageTx) error {
		meta, err := loadTableMeta(tx, tbl)
		if err != nil {
			return err
		}
		b, err := tx.CreateBucket(tbl.Name)
		if err != nil {
			return err
		}
		for i, row := range rows {
			h, ok, err := tbl.HandleOf(row)
			if err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			if !ok {
				meta.NextRowID++
				h = NewIntHandle(meta.NextRowID)
			} else if h.IsInt() && h.id > meta.NextRowID {
				meta.NextRowID = h.id
			}
			value, err := s.encodeRow(tbl, row)
			if err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			if err := b.Put(h.EncodedAsKey(), value); err != nil {
				return err
			}
			s.logger.Debug("rowkey: put", slog.String("table", tbl.Name), hexAttr("key", h.EncodedAsKey()), slog.Int("value_size", len(value)))
		}
		meta.Flushes++
		return saveTableMeta(tx, tbl, meta)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "flushing %d rows into %s", len(rows), tbl.Name)
	}
	buf.Clear()
	s.logger.Debug("rowkey: flushed", slog.String("table", tbl.Name), slog.Int("rows", len(rows)), slog.Duration("elapsed", time.Since(start)))
	return len(rows), nil
}

// Get returns the row stored under h, or nil if there is none.
func (s *Store) Get(tbl *TableInfo, h Handle) (Values, error) {
	var row Values
	err := s.read(func(tx storageTx) error {
		b := tx.Bucket(tbl.Name)
		if b == nil {
			return nil
		}
		raw := b.Get(h.EncodedAsKey())
		if raw == nil {
			return nil
		}
		var err error
		row, err = s.decodeRow(tbl, raw)
		return err
	})
	return row, err
}

// Delete removes the row stored under h. Deleting a missing row is not an
// error.
func (s *Store) Delete(tbl *TableInfo, h Handle) error {
	return s.write(func(tx storageTx) error {
		b := tx.Bucket(tbl.Name)
		if b == nil {
			return nil
		}
		return b.Delete(h.EncodedAsKey())
	})
}

// Scan calls f for every row with start <= key < end in key order until f
// returns false. A nil start or end leaves that side unbounded.
func (s *Store) Scan(tbl *TableInfo, start, end []byte, f func(h Handle, row Values) bool) error {
	s.logger.Debug("rowkey: scan", slog.String("table", tbl.Name), hexAttr("start", start), hexAttr("end", end))
	return s.read(func(tx storageTx) error {
		b := tx.Bucket(tbl.Name)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var k, v []byte
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}
		for ; k != nil; k, v = c.Next() {
			if end != nil && bytes.Compare(k, end) >= 0 {
				break
			}
			h, err := s.handleFromKey(tbl, k)
			if err != nil {
				return err
			}
			row, err := s.decodeRow(tbl, v)
			if err != nil {
				return errors.Wrapf(err, "row %s", h)
			}
			if !f(h, row) {
				break
			}
		}
		return nil
	})
}

// ScanPrefix scans the rows whose keys start with the column encodings of
// h. The zero padding of a short common handle is not part of the prefix.
func (s *Store) ScanPrefix(tbl *TableInfo, h Handle, f func(h Handle, row Values) bool) error {
	start, end := h.prefixRange()
	return s.Scan(tbl, start, end, f)
}

func (s *Store) Count(tbl *TableInfo) (int, error) {
	var n int
	err := s.read(func(tx storageTx) error {
		if b := tx.Bucket(tbl.Name); b != nil {
			n = b.KeyCount()
		}
		return nil
	})
	return n, err
}

func (s *Store) handleFromKey(tbl *TableInfo, k []byte) (Handle, error) {
	if tbl.PrimaryIndex() == nil {
		_, id, err := codec.DecodeInt(k)
		if err != nil {
			return Handle{}, err
		}
		return NewIntHandle(id), nil
	}
	return NewCommonHandleFromBytes(k)
}

// encodeRow returns a header byte followed by the value encoding of every
// column, snappy-compressed if configured. The result is freshly allocated
// because Bolt keeps referencing put values until commit.
func (s *Store) encodeRow(tbl *TableInfo, row Row) ([]byte, error) {
	var body []byte
	for _, col := range tbl.Columns {
		var err error
		body, err = col.Type.Encode(body, EncodeValue, row.Get(col.Offset, nil))
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.Name)
		}
	}
	if s.compression == SnappyCompression {
		compressed := snappy.Encode(nil, body)
		return append([]byte{valueFlagSnappy}, compressed...), nil
	}
	return append([]byte{0}, body...), nil
}

func (s *Store) decodeRow(tbl *TableInfo, raw []byte) (Values, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty row value")
	}
	flags, body := raw[0], raw[1:]
	if flags&valueFlagSnappy != 0 {
		var err error
		body, err = snappy.Decode(nil, body)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing row value")
		}
	}
	in := codec.NewInput(body)
	row := make(Values, len(tbl.Columns))
	for i, col := range tbl.Columns {
		if in.EOF() {
			break
		}
		v, err := col.Type.Decode(in)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.Name)
		}
		row[i] = v
	}
	return row, nil
}

func loadTableMeta(tx storageTx, tbl *TableInfo) (*tableMeta, error) {
	meta := &tableMeta{}
	b := tx.Bucket(metaBucket)
	if b == nil {
		return meta, nil
	}
	raw := b.Get([]byte(tbl.Name))
	if raw == nil {
		return meta, nil
	}
	if err := msgpack.Unmarshal(raw, meta); err != nil {
		return nil, errors.Wrapf(err, "decoding meta of %s", tbl.Name)
	}
	if len(meta.Columns) != 0 && len(meta.Columns) != len(tbl.Columns) {
		return nil, errors.Newf("table %s was stored with %d columns, now has %d", tbl.Name, len(meta.Columns), len(tbl.Columns))
	}
	return meta, nil
}

func saveTableMeta(tx storageTx, tbl *TableInfo, meta *tableMeta) error {
	meta.Columns = meta.Columns[:0]
	for _, col := range tbl.Columns {
		meta.Columns = append(meta.Columns, col.Name)
	}
	raw, err := msgpack.Marshal(meta)
	if err != nil {
		return err
	}
	b, err := tx.CreateBucket(metaBucket)
	if err != nil {
		return err
	}
	return b.Put([]byte(tbl.Name), raw)
}
