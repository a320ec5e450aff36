package rowkey

import "github.com/cockroachdb/errors"

// errStorageClosed is returned by operations on a closed in-memory storage.
var errStorageClosed = errors.New("storage closed")

// storage is a transactional ordered key-value backend (Bolt or in-memory).
type storage interface {
	// BeginTx starts a new transaction. Only one writable transaction runs
	// at a time; read-only ones see a consistent snapshot.
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	// Bucket returns the named bucket or nil if it doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket creates a bucket if it doesn't exist.
	CreateBucket(name string) (storageBucket, error)

	Commit() error

	// Rollback aborts the transaction. It is safe to call after Commit.
	Rollback() error
}

// storageBucket is a sorted key-value collection.
type storageBucket interface {
	// Get returns nil if key is not found. The value is only valid for the
	// life of the transaction.
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() storageCursor
	KeyCount() int
}

// storageCursor iterates over a bucket in key order. A nil key means the
// cursor ran off the end.
type storageCursor interface {
	First() (key, value []byte)
	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)
	Next() (key, value []byte)
}
