package rowkey

import (
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/andreyvit/rowkey/codec"
)

func packedInput(flag byte, packed uint64) *codec.Input {
	b := []byte{flag}
	if flag == codec.UvarintFlag {
		b = codec.EncodeUvarint(b, packed)
	} else {
		b = codec.EncodeUint(b, packed)
	}
	return codec.NewInput(b)
}

func TestDecodeDateTimeForBatchWrite(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	dt := NewDataType(TypeDatetime).WithLocation(loc)
	tm := time.Date(2022, 11, 6, 1, 30, 0, 250000000, loc)
	packed := codec.PackDateTime(tm)

	for _, flag := range []byte{codec.UintFlag, codec.UvarintFlag} {
		in := packedInput(flag, packed)
		a, err := dt.DecodeDateTimeForBatchWrite(must(in.ReadByte()), in)
		if err != nil {
			t.Fatalf("** DecodeDateTimeForBatchWrite(flag %d) failed: %v", flag, err)
		}
		isTrue(t, a.Equal(tm), "flag %d: got %v, wanted %v", flag, a, tm)
		isTrue(t, a.Location() == loc, "flag %d: location %v, wanted %v", flag, a.Location(), loc)
	}
}

func TestDecodeDateTimeTimestampIsUTC(t *testing.T) {
	dt := NewDataType(TypeTimestamp).WithLocation(time.FixedZone("X", 5*3600))
	packed := codec.PackDateTime(time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC))
	in := packedInput(codec.UintFlag, packed)
	a := must(dt.DecodeDateTimeForBatchWrite(must(in.ReadByte()), in))
	deepEqual(t, a.Unix(), time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC).Unix())
}

func TestDecodeDateTimeMicros(t *testing.T) {
	dt := NewDataType(TypeDatetime).WithLocation(time.UTC)
	tests := []struct {
		tm       time.Time
		expected int64
	}{
		{time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(1970, 1, 1, 0, 0, 1, 123456000, time.UTC), 1_123_456},
		{time.Date(1969, 12, 31, 23, 59, 59, 500000000, time.UTC), -500_000},
		{time.Date(1969, 12, 31, 23, 59, 58, 999999000, time.UTC), -1_000_001},
		{time.Date(2020, 1, 1, 0, 0, 0, 1000, time.UTC), 1_577_836_800_000_001},
	}
	for _, test := range tests {
		in := packedInput(codec.UintFlag, codec.PackDateTime(test.tm))
		a, err := dt.DecodeDateTime(must(in.ReadByte()), in)
		if err != nil {
			t.Errorf("** DecodeDateTime(%v) failed: %v", test.tm, err)
		} else if a != test.expected {
			t.Errorf("** DecodeDateTime(%v) = %d, wanted %d", test.tm, a, test.expected)
		}
	}
}

func TestDecodeZeroDateFallback(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	expected := time.Date(1, 1, 1, 0, 0, 0, 0, loc)

	in := packedInput(codec.UintFlag, 0)
	a := must(NewDataType(TypeDatetime).WithLocation(loc).DecodeDateTimeForBatchWrite(must(in.ReadByte()), in))
	isTrue(t, a.Equal(expected), "datetime fallback = %v, wanted %v", a, expected)

	in = packedInput(codec.UvarintFlag, 0)
	a = must(NewDataType(TypeDate).WithLocation(loc).DecodeDate(must(in.ReadByte()), in))
	isTrue(t, a.Equal(expected), "date fallback = %v, wanted %v", a, expected)
}

func TestDecodeDate(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	dt := NewDataType(TypeDate).WithLocation(loc)
	in := packedInput(codec.UintFlag, codec.PackDateTime(time.Date(2023, 5, 17, 22, 45, 0, 0, loc)))
	a := must(dt.DecodeDate(must(in.ReadByte()), in))
	isTrue(t, a.Equal(time.Date(2023, 5, 17, 0, 0, 0, 0, loc)), "DecodeDate = %v", a)
}

func TestDecodeDateTimeErrors(t *testing.T) {
	dt := NewDataType(TypeDatetime).WithLocation(time.UTC)

	in := codec.NewInput(unhex("03 800000000000002a"))
	_, err := dt.DecodeDateTimeForBatchWrite(must(in.ReadByte()), in)
	isTrue(t, errors.Is(err, ErrInvalidEncoding), "IntFlag: %v", err)
	if err != nil {
		deepEqual(t, err.Error(), "invalid flag type for DateTimeType: 3")
	}

	// month 0
	in = packedInput(codec.UintFlag, 1<<24)
	_, err = dt.DecodeDateTime(must(in.ReadByte()), in)
	isTrue(t, errors.Is(err, ErrInvalidEncoding), "month 0: %v", err)

	in = codec.NewInput(unhex("04 0000"))
	_, err = dt.DecodeDate(must(in.ReadByte()), in)
	isTrue(t, errors.Is(err, ErrInvalidEncoding), "truncated: %v", err)
}

func TestEncodeFullPrecision(t *testing.T) {
	loc := time.FixedZone("UTC+1", 3600)
	tm := time.Date(2021, 3, 4, 5, 6, 7, 890123000, time.UTC)
	packed := codec.PackDateTime(tm.In(loc))
	payload := hex.EncodeToString(codec.EncodeUint(nil, packed))

	deepEqual(t, hex.EncodeToString(encodeFullPrecision(nil, EncodeKey, tm, loc)), "04"+payload)
	deepEqual(t, hex.EncodeToString(encodeFullPrecision(nil, EncodeValue, tm, loc)), "04"+payload)
	deepEqual(t, hex.EncodeToString(encodeFullPrecision(nil, EncodeProto, tm, loc)), payload)

	// nanoseconds below a microsecond are dropped
	a := encodeFullPrecision(nil, EncodeKey, tm.Add(999), loc)
	deepEqual(t, hex.EncodeToString(a), "04"+payload)
}

func TestEncodeDateTruncatesInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	dt := NewDataType(TypeDate).WithLocation(loc)
	// 2020-06-30 20:00 UTC is already July 1st in loc
	b := must(dt.Encode(nil, EncodeKey, time.Date(2020, 6, 30, 20, 0, 0, 0, time.UTC)))
	expected := encodeFullPrecision(nil, EncodeKey, time.Date(2020, 7, 1, 0, 0, 0, 0, loc), loc)
	deepEqual(t, hex.EncodeToString(b), hex.EncodeToString(expected))
}

func TestConvertToDateTime(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	tm := time.Date(2020, 1, 2, 3, 4, 5, 0, loc)
	tests := []struct {
		input    any
		expected time.Time
	}{
		{tm, tm},
		{&tm, tm},
		{"2020-01-02T03:04:05+05:00", tm},
		{"2020-01-02T03:04:05.5Z", time.Date(2020, 1, 2, 3, 4, 5, 500000000, time.UTC)},
		{"2020-01-02 03:04:05", tm},
		{"2020-01-02T03:04:05", tm},
		{"2020-01-02", time.Date(2020, 1, 2, 0, 0, 0, 0, loc)},
		{int64(1_577_836_800), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{json.Number("-1"), time.Unix(-1, 0)},
	}
	for _, test := range tests {
		a, err := ConvertToDateTime(test.input, loc)
		if err != nil {
			t.Errorf("** ConvertToDateTime(%v) failed: %v", test.input, err)
		} else if !a.Equal(test.expected) {
			t.Errorf("** ConvertToDateTime(%v) = %v, wanted %v", test.input, a, test.expected)
		}
	}

	var nilTime *time.Time
	for _, input := range []any{"yesterday", json.Number("1.5"), 1.5, nilTime, true} {
		if _, err := ConvertToDateTime(input, loc); !errors.Is(err, ErrUnsupportedConversion) {
			t.Errorf("** ConvertToDateTime(%v) = %v, wanted ErrUnsupportedConversion", input, err)
		}
	}
}
