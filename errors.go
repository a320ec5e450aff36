package rowkey

import (
	"github.com/cockroachdb/errors"

	"github.com/andreyvit/rowkey/codec"
)

var (
	// ErrInvalidEncoding marks malformed handle or value bytes.
	ErrInvalidEncoding = codec.ErrInvalidEncoding

	// ErrUnsupportedOperation is returned when an operation does not apply
	// to the kind of handle it is called on.
	ErrUnsupportedOperation = errors.New("unsupported handle operation")

	// ErrBufferFull is returned by RowBuffer.Add when the buffer holds
	// capacity rows.
	ErrBufferFull = errors.New("row buffer is full")

	// ErrUnsupportedConversion is returned when a Go value cannot be stored
	// in a column of the given type.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
)
