/*
Package rowkey encodes row handles for an ordered key-value row store in the
TiDB key format, and buffers rows before a bulk write.

# Handles

A handle is either an int64 row id or a common handle: the primary-key
column values concatenated in the memcomparable encoding of package codec,
so that comparing handles byte by byte orders rows like their keys. A common
handle is at least 9 bytes long; shorter encodings are zero-padded, and a
zero byte where a column flag is expected ends the column list.

Column i of a common handle spans the bytes after column i-1 up to and
including colEndOffsets[i].

# Temporal columns

DATE, DATETIME and TIMESTAMP values are packed into a uint64:

	((((year*13 + month) << 5 | day) << 17 | hour << 12 | minute << 6 | second) << 24) | microsecond

Key and value encodings write UintFlag and the 8 packed bytes; readers also
accept the uvarint form. The packed zero date decodes as 0001-01-01 00:00:00.
DATE and DATETIME are stored as wall-clock time in the column's location,
TIMESTAMP in UTC.

# Row buffers

A RowBuffer holds up to capacity rows. With unique projections it silently
rejects a row whose projected values repeat those of a buffered row under any
projection. Store.Flush writes a buffer into a Bolt (or in-memory) staging
store keyed by handle.

# Stored rows

Value: one header byte (bit 0: snappy), then the value encoding of every
column in table order. Per-table metadata (next implicit row id, column
names) is a msgpack document in the "meta" bucket.
*/
package rowkey
