package rowkey

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"

	"github.com/andreyvit/rowkey/codec"
)

// MySQLType is the column type tag used by the row store.
type MySQLType byte

const (
	TypeTiny       MySQLType = 1
	TypeShort      MySQLType = 2
	TypeLong       MySQLType = 3
	TypeFloat      MySQLType = 4
	TypeDouble     MySQLType = 5
	TypeTimestamp  MySQLType = 7
	TypeLonglong   MySQLType = 8
	TypeInt24      MySQLType = 9
	TypeDate       MySQLType = 10
	TypeDuration   MySQLType = 11
	TypeDatetime   MySQLType = 12
	TypeVarchar    MySQLType = 15
	TypeNewDecimal MySQLType = 246
	TypeBlob       MySQLType = 252
	TypeVarString  MySQLType = 253
	TypeString     MySQLType = 254
)

var mysqlTypeNames = map[MySQLType]string{
	TypeTiny:       "tinyint",
	TypeShort:      "smallint",
	TypeInt24:      "mediumint",
	TypeLong:       "int",
	TypeLonglong:   "bigint",
	TypeFloat:      "float",
	TypeDouble:     "double",
	TypeNewDecimal: "decimal",
	TypeVarchar:    "varchar",
	TypeVarString:  "varstring",
	TypeString:     "char",
	TypeBlob:       "blob",
	TypeDate:       "date",
	TypeDatetime:   "datetime",
	TypeTimestamp:  "timestamp",
	TypeDuration:   "time",
}

var mysqlTypeAliases = map[string]MySQLType{
	"integer": TypeLong,
	"text":    TypeBlob,
	"numeric": TypeNewDecimal,
	"real":    TypeDouble,
}

func (tp MySQLType) String() string {
	if s, ok := mysqlTypeNames[tp]; ok {
		return s
	}
	return "type(" + strconv.Itoa(int(tp)) + ")"
}

// ParseMySQLType parses a SQL type name like "bigint" or "varchar".
func ParseMySQLType(s string) (MySQLType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for tp, name := range mysqlTypeNames {
		if name == s {
			return tp, nil
		}
	}
	if tp, ok := mysqlTypeAliases[s]; ok {
		return tp, nil
	}
	return 0, errors.Newf("unknown column type %q", s)
}

func (tp MySQLType) isInteger() bool {
	switch tp {
	case TypeTiny, TypeShort, TypeInt24, TypeLong, TypeLonglong:
		return true
	}
	return false
}

func (tp MySQLType) isString() bool {
	switch tp {
	case TypeVarchar, TypeVarString, TypeString, TypeBlob:
		return true
	}
	return false
}

func (tp MySQLType) isTemporal() bool {
	return tp == TypeDate || tp == TypeDatetime || tp == TypeTimestamp
}

// EncodeType selects one of the three encodings of a column value.
type EncodeType int

const (
	// EncodeKey produces memcomparable bytes.
	EncodeKey EncodeType = iota
	// EncodeValue produces compact, non-comparable bytes for row values.
	EncodeValue
	// EncodeProto produces the flagless form used by the coprocessor protocol.
	EncodeProto
)

// DataType describes one column type. The zero DataType is not valid; use
// NewDataType.
type DataType struct {
	tp       MySQLType
	unsigned bool
	flen     int
	decimal  int
	loc      *time.Location
}

func NewDataType(tp MySQLType) DataType {
	return DataType{tp: tp}
}

func (dt DataType) WithUnsigned(unsigned bool) DataType {
	dt.unsigned = unsigned
	return dt
}

// WithLength sets the declared display width (precision for decimals) and
// the number of fractional digits.
func (dt DataType) WithLength(flen, decimal int) DataType {
	dt.flen, dt.decimal = flen, decimal
	return dt
}

// WithLocation sets the zone of DATE and DATETIME columns. TIMESTAMP is
// always stored in UTC.
func (dt DataType) WithLocation(loc *time.Location) DataType {
	dt.loc = loc
	return dt
}

func (dt DataType) Tp() MySQLType    { return dt.tp }
func (dt DataType) IsUnsigned() bool { return dt.unsigned }
func (dt DataType) Flen() int        { return dt.flen }
func (dt DataType) Decimal() int     { return dt.decimal }

func (dt DataType) Location() *time.Location {
	if dt.tp == TypeTimestamp {
		return time.UTC
	}
	if dt.loc != nil {
		return dt.loc
	}
	return time.Local
}

func (dt DataType) String() string {
	var buf strings.Builder
	buf.WriteString(dt.tp.String())
	if dt.tp == TypeNewDecimal {
		p, f := dt.decimalLength()
		buf.WriteString("(" + strconv.Itoa(p) + "," + strconv.Itoa(f) + ")")
	} else if dt.flen > 0 {
		buf.WriteString("(" + strconv.Itoa(dt.flen) + ")")
	}
	if dt.unsigned {
		buf.WriteString(" unsigned")
	}
	return buf.String()
}

const (
	defaultDecimalPrecision = 10
	defaultDecimalScale     = 0
)

func (dt DataType) decimalLength() (int, int) {
	if dt.flen <= 0 {
		return defaultDecimalPrecision, defaultDecimalScale
	}
	return dt.flen, dt.decimal
}

// Encode appends the et encoding of v. NULL is written as a bare NilFlag in
// the key and value encodings and as nothing in the proto encoding.
func (dt DataType) Encode(b []byte, et EncodeType, v any) ([]byte, error) {
	if v == nil {
		if et == EncodeProto {
			return b, nil
		}
		return append(b, codec.NilFlag), nil
	}
	switch {
	case dt.tp.isInteger():
		if dt.unsigned {
			n, err := toUint64(v)
			if err != nil {
				return nil, dt.convErr(v, err)
			}
			switch et {
			case EncodeKey:
				b = append(b, codec.UintFlag)
				return codec.EncodeUint(b, n), nil
			case EncodeValue:
				b = append(b, codec.UvarintFlag)
				return codec.EncodeUvarint(b, n), nil
			default:
				return codec.EncodeUint(b, n), nil
			}
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		switch et {
		case EncodeKey:
			b = append(b, codec.IntFlag)
			return codec.EncodeInt(b, n), nil
		case EncodeValue:
			b = append(b, codec.VarintFlag)
			return codec.EncodeVarint(b, n), nil
		default:
			return codec.EncodeInt(b, n), nil
		}

	case dt.tp == TypeFloat || dt.tp == TypeDouble:
		f, err := toFloat64(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		if et != EncodeProto {
			b = append(b, codec.FloatFlag)
		}
		return codec.EncodeFloat(b, f), nil

	case dt.tp == TypeNewDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		if et != EncodeProto {
			b = append(b, codec.DecimalFlag)
		}
		precision, frac := dt.decimalLength()
		return codec.EncodeDecimal(b, d, precision, frac)

	case dt.tp.isString():
		var data []byte
		switch v := v.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			return nil, dt.convErr(v, nil)
		}
		switch et {
		case EncodeKey:
			b = append(b, codec.BytesFlag)
			return codec.EncodeBytes(b, data), nil
		case EncodeValue:
			b = append(b, codec.CompactBytesFlag)
			return codec.EncodeCompactBytes(b, data), nil
		default:
			return append(b, data...), nil
		}

	case dt.tp.isTemporal():
		t, err := ConvertToDateTime(v, dt.Location())
		if err != nil {
			return nil, err
		}
		if dt.tp == TypeDate {
			t = truncateToDate(t.In(dt.Location()))
		}
		return encodeFullPrecision(b, et, t, dt.Location()), nil

	case dt.tp == TypeDuration:
		d, err := toDuration(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		if et != EncodeProto {
			b = append(b, codec.DurationFlag)
		}
		return codec.EncodeInt(b, int64(d)), nil

	default:
		return nil, errors.Newf("cannot encode column of type %s", dt.tp)
	}
}

// Decode reads one flagged value written by Encode in key or value mode and
// returns it as the column's natural Go type: int64 or uint64, float64,
// *apd.Decimal, string, time.Time or time.Duration. NULL decodes to nil.
func (dt DataType) Decode(in *codec.Input) (any, error) {
	flag, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	if flag == codec.NilFlag {
		return nil, nil
	}
	switch {
	case dt.tp.isInteger():
		var n uint64
		switch flag {
		case codec.IntFlag:
			u, err := in.ReadUint64()
			if err != nil {
				return nil, err
			}
			n = uint64(codec.DecodeCmpUintToInt(u))
		case codec.UintFlag:
			n, err = in.ReadUint64()
		case codec.VarintFlag:
			var i int64
			i, err = in.ReadVarint()
			n = uint64(i)
		case codec.UvarintFlag:
			n, err = in.ReadUvarint()
		default:
			return nil, dt.flagErr(flag)
		}
		if err != nil {
			return nil, err
		}
		if dt.unsigned {
			return n, nil
		}
		return int64(n), nil

	case dt.tp == TypeFloat || dt.tp == TypeDouble:
		if flag != codec.FloatFlag {
			return nil, dt.flagErr(flag)
		}
		raw, err := in.Raw(8)
		if err != nil {
			return nil, err
		}
		_, f, err := codec.DecodeFloat(raw)
		return f, err

	case dt.tp == TypeNewDecimal:
		if flag != codec.DecimalFlag {
			return nil, dt.flagErr(flag)
		}
		return in.ReadDecimal()

	case dt.tp.isString():
		var data []byte
		switch flag {
		case codec.BytesFlag:
			data, err = in.ReadBytes()
		case codec.CompactBytesFlag:
			data, err = in.ReadCompactBytes()
		default:
			return nil, dt.flagErr(flag)
		}
		if err != nil {
			return nil, err
		}
		return string(data), nil

	case dt.tp == TypeDate:
		return dt.DecodeDate(flag, in)

	case dt.tp == TypeDatetime || dt.tp == TypeTimestamp:
		return dt.DecodeDateTimeForBatchWrite(flag, in)

	case dt.tp == TypeDuration:
		switch flag {
		case codec.DurationFlag, codec.IntFlag:
			u, err := in.ReadUint64()
			if err != nil {
				return nil, err
			}
			return time.Duration(codec.DecodeCmpUintToInt(u)), nil
		case codec.VarintFlag:
			n, err := in.ReadVarint()
			if err != nil {
				return nil, err
			}
			return time.Duration(n), nil
		default:
			return nil, dt.flagErr(flag)
		}

	default:
		return nil, errors.Newf("cannot decode column of type %s", dt.tp)
	}
}

// Convert turns a loosely typed value, as produced by encoding/json with
// UseNumber, into the Go type Encode and Decode use for this column.
func (dt DataType) Convert(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case dt.tp.isInteger():
		if dt.unsigned {
			n, err := toUint64(v)
			if err != nil {
				return nil, dt.convErr(v, err)
			}
			return n, nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		return n, nil
	case dt.tp == TypeFloat || dt.tp == TypeDouble:
		f, err := toFloat64(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		return f, nil
	case dt.tp == TypeNewDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		return d, nil
	case dt.tp.isString():
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case json.Number:
			return v.String(), nil
		}
		return nil, dt.convErr(v, nil)
	case dt.tp.isTemporal():
		t, err := ConvertToDateTime(v, dt.Location())
		if err != nil {
			return nil, err
		}
		t = t.In(dt.Location())
		if dt.tp == TypeDate {
			t = truncateToDate(t)
		}
		return t, nil
	case dt.tp == TypeDuration:
		d, err := toDuration(v)
		if err != nil {
			return nil, dt.convErr(v, err)
		}
		return d, nil
	}
	return nil, errors.Newf("cannot convert to column of type %s", dt.tp)
}

func (dt DataType) convErr(v any, cause error) error {
	err := errors.Mark(errors.Newf("cannot convert %T %v to %s", v, v, dt), ErrUnsupportedConversion)
	if cause != nil {
		err = errors.WithSecondaryError(err, cause)
	}
	return err
}

func (dt DataType) flagErr(flag byte) error {
	return errors.Mark(errors.Newf("invalid flag type for %s: %d", dt.typeName(), flag), codec.ErrInvalidEncoding)
}

func (dt DataType) typeName() string {
	switch dt.tp {
	case TypeDate:
		return "DateType"
	case TypeDatetime:
		return "DateTimeType"
	case TypeTimestamp:
		return "TimestampType"
	default:
		return dt.tp.String()
	}
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, errors.Newf("%v is not an int64", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	case time.Duration:
		return int64(v), nil
	}
	return 0, ErrUnsupportedConversion
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errors.Newf("%d overflows int64", v)
	}
	return int64(v), nil
}

func toUint64(v any) (uint64, error) {
	switch v := v.(type) {
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case json.Number:
		return strconv.ParseUint(v.String(), 10, 64)
	case string:
		return strconv.ParseUint(v, 10, 64)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Newf("%d is negative", n)
	}
	return uint64(n), nil
}

func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

func toDecimal(v any) (*apd.Decimal, error) {
	switch v := v.(type) {
	case *apd.Decimal:
		return v, nil
	case apd.Decimal:
		return &v, nil
	case string:
		d, _, err := apd.NewFromString(v)
		return d, err
	case json.Number:
		d, _, err := apd.NewFromString(v.String())
		return d, err
	case float64:
		var d apd.Decimal
		return d.SetFloat64(v)
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return apd.New(n, 0), nil
}

func toDuration(v any) (time.Duration, error) {
	switch v := v.(type) {
	case time.Duration:
		return v, nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
		return parseClockDuration(v)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n), nil
}

// parseClockDuration parses the MySQL TIME form [-]HH:MM:SS[.ffffff].
func parseClockDuration(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.Newf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid time %q", s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid time %q", s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(math.Round(sec*1e6))*time.Microsecond
	if neg {
		d = -d
	}
	return d, nil
}
