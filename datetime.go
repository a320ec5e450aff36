package rowkey

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/andreyvit/rowkey/codec"
)

// encodeFullPrecision writes t with microsecond precision as wall-clock
// fields in loc. Key and value encodings are identical: UintFlag followed by
// the 8-byte packed value. The proto encoding is the packed value alone.
func encodeFullPrecision(b []byte, et EncodeType, t time.Time, loc *time.Location) []byte {
	packed := codec.PackDateTime(t.In(loc))
	if et != EncodeProto {
		b = append(b, codec.UintFlag)
	}
	return codec.EncodeUint(b, packed)
}

// readPacked reads the payload that follows flag. Both the uvarint and the
// fixed 8-byte forms occur in the wild.
func (dt DataType) readPacked(flag byte, in *codec.Input) (uint64, error) {
	switch flag {
	case codec.UvarintFlag:
		return in.ReadUvarint()
	case codec.UintFlag:
		return in.ReadUint64()
	default:
		return 0, dt.flagErr(flag)
	}
}

// fallbackDateTime replaces the zero date 0000-00-00, which has no time.Time
// equivalent. Rounding to the nearest valid value matches what MySQL drivers
// do.
func fallbackDateTime(loc *time.Location) time.Time {
	return time.Date(1, 1, 1, 0, 0, 0, 0, loc)
}

// DecodeDateTimeForBatchWrite decodes a DATETIME or TIMESTAMP payload into a
// time in the column's location.
func (dt DataType) DecodeDateTimeForBatchWrite(flag byte, in *codec.Input) (time.Time, error) {
	packed, err := dt.readPacked(flag, in)
	if err != nil {
		return time.Time{}, err
	}
	t, ok, err := codec.ToTime(packed, dt.Location())
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return fallbackDateTime(dt.Location()), nil
	}
	return t, nil
}

// DecodeDateTime decodes a DATETIME or TIMESTAMP payload into microseconds
// since the Unix epoch: whole seconds (rounded toward negative infinity)
// times 10^6 plus the microseconds within the second.
func (dt DataType) DecodeDateTime(flag byte, in *codec.Input) (int64, error) {
	t, err := dt.DecodeDateTimeForBatchWrite(flag, in)
	if err != nil {
		return 0, err
	}
	return floorDiv(t.UnixMilli(), 1000)*1_000_000 + int64(t.Nanosecond()/1000), nil
}

// DecodeDate decodes a DATE payload into midnight of that day in the
// column's location.
func (dt DataType) DecodeDate(flag byte, in *codec.Input) (time.Time, error) {
	packed, err := dt.readPacked(flag, in)
	if err != nil {
		return time.Time{}, err
	}
	loc := dt.Location()
	t, ok, err := codec.ToTime(packed, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return fallbackDateTime(loc), nil
	}
	return truncateToDate(t), nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ConvertToDateTime accepts a time.Time, a string in one of the common SQL
// or RFC 3339 layouts (zone-less strings are read in loc), or an integer
// number of seconds since the Unix epoch.
func ConvertToDateTime(v any, loc *time.Location) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, nil
		}
		for _, layout := range dateTimeLayouts {
			if t, err := time.ParseInLocation(layout, v, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, errors.Mark(errors.Newf("cannot parse %q as a date/time", v), ErrUnsupportedConversion)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, errors.Mark(errors.Wrapf(err, "cannot convert %s to a date/time", v), ErrUnsupportedConversion)
		}
		return time.Unix(n, 0), nil
	case int, int32, int64, uint32, uint64:
		n, err := toInt64(v)
		if err != nil {
			return time.Time{}, errors.Mark(err, ErrUnsupportedConversion)
		}
		return time.Unix(n, 0), nil
	}
	return time.Time{}, errors.Mark(errors.Newf("cannot convert %T to a date/time", v), ErrUnsupportedConversion)
}
