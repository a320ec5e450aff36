package rowkey

import (
	"bytes"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

const memBTreeDegree = 16

type memKV struct {
	key   []byte
	value []byte
}

func memKVLess(a, b memKV) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type memTree = btree.BTreeG[memKV]

// memStorage keeps buckets in copy-on-write B-trees. A transaction works on
// clones of the trees taken at BeginTx; committing a writable transaction
// publishes its clones.
type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[string]*memTree
	closed  bool
	writer  bool
}

// newMemStorage returns a transient in-memory storage for tests and dry runs.
func newMemStorage() storage {
	s := &memStorage{buckets: make(map[string]*memTree)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errStorageClosed
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, errStorageClosed
		}
		s.writer = true
	}

	snap := make(map[string]*memTree, len(s.buckets))
	for k, t := range s.buckets {
		snap[k] = t.Clone()
	}
	return &memTx{base: s, writable: writable, buckets: snap}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	buckets  map[string]*memTree
	closed   bool
}

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Bucket(name string) storageBucket {
	if tx.closed {
		panic(errors.AssertionFailedf("tx is closed"))
	}
	t := tx.buckets[name]
	if t == nil {
		return nil
	}
	return memBucket{tx: tx, t: t}
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if tx.closed {
		panic(errors.AssertionFailedf("tx is closed"))
	}
	if !tx.writable {
		return nil, errors.New("tx not writable")
	}
	t := tx.buckets[name]
	if t == nil {
		t = btree.NewG(memBTreeDegree, memKVLess)
		tx.buckets[name] = t
	}
	return memBucket{tx: tx, t: t}, nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return errors.New("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return errStorageClosed
	}
	tx.base.buckets = tx.buckets
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

type memBucket struct {
	tx *memTx
	t  *memTree
}

func (b memBucket) Get(key []byte) []byte {
	kv, ok := b.t.Get(memKV{key: key})
	if !ok {
		return nil
	}
	return kv.value
}

func (b memBucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return errors.New("tx not writable")
	}
	b.t.ReplaceOrInsert(memKV{key: slices.Clone(key), value: slices.Clone(value)})
	return nil
}

func (b memBucket) Delete(key []byte) error {
	if !b.tx.writable {
		return errors.New("tx not writable")
	}
	b.t.Delete(memKV{key: key})
	return nil
}

func (b memBucket) Cursor() storageCursor {
	return &memCursor{t: b.t}
}

func (b memBucket) KeyCount() int { return b.t.Len() }

// memCursor remembers its current key; every move is a fresh O(log n)
// descent, so the tree may be modified between moves.
type memCursor struct {
	t   *memTree
	cur []byte
}

func (c *memCursor) First() ([]byte, []byte) {
	kv, ok := c.t.Min()
	return c.land(kv, ok)
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	var found memKV
	var ok bool
	c.t.AscendGreaterOrEqual(memKV{key: seek}, func(kv memKV) bool {
		found, ok = kv, true
		return false
	})
	return c.land(found, ok)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.cur == nil {
		return nil, nil
	}
	var found memKV
	var ok bool
	c.t.AscendGreaterOrEqual(memKV{key: c.cur}, func(kv memKV) bool {
		if bytes.Equal(kv.key, c.cur) {
			return true
		}
		found, ok = kv, true
		return false
	})
	return c.land(found, ok)
}

func (c *memCursor) land(kv memKV, ok bool) ([]byte, []byte) {
	if !ok {
		c.cur = nil
		return nil, nil
	}
	c.cur = kv.key
	return kv.key, kv.value
}
