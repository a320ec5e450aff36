package codec

import (
	"time"
)

// Packed date/time layout, most significant first:
//
//	year*13+month | day (5 bits) | hour (5) | minute (6) | second (6) | micros (24)
//
// Zero packs the MySQL zero date 0000-00-00 00:00:00.
const (
	microBits  = 24
	hmsBits    = 17
	dayBits    = 5
	minuteBits = 6
	secondBits = 6
)

// PackDateTime packs the wall-clock fields of t as seen in t's own location.
func PackDateTime(t time.Time) uint64 {
	ymd := uint64(t.Year()*13+int(t.Month()))<<dayBits | uint64(t.Day())
	hms := uint64(t.Hour())<<(minuteBits+secondBits) | uint64(t.Minute())<<secondBits | uint64(t.Second())
	return (ymd<<hmsBits|hms)<<microBits | uint64(t.Nanosecond()/1000)
}

// DateTimeFields is the calendar form of a packed value.
type DateTimeFields struct {
	Year, Month, Day             int
	Hour, Minute, Second, Micros int
}

func (f DateTimeFields) IsZero() bool {
	return f == DateTimeFields{}
}

func (f DateTimeFields) In(loc *time.Location) time.Time {
	return time.Date(f.Year, time.Month(f.Month), f.Day, f.Hour, f.Minute, f.Second, f.Micros*1000, loc)
}

func UnpackDateTime(packed uint64) DateTimeFields {
	ymdhms := packed >> microBits
	ymd := ymdhms >> hmsBits
	ym := ymd >> dayBits
	hms := ymdhms & (1<<hmsBits - 1)
	return DateTimeFields{
		Year:   int(ym / 13),
		Month:  int(ym % 13),
		Day:    int(ymd & (1<<dayBits - 1)),
		Hour:   int(hms >> (minuteBits + secondBits)),
		Minute: int((hms >> secondBits) & (1<<minuteBits - 1)),
		Second: int(hms & (1<<secondBits - 1)),
		Micros: int(packed & (1<<microBits - 1)),
	}
}

// ToTime converts a packed value into a time in loc. ok is false for the
// zero date; fields out of calendar range are an error.
func ToTime(packed uint64, loc *time.Location) (t time.Time, ok bool, err error) {
	if packed == 0 {
		return time.Time{}, false, nil
	}
	f := UnpackDateTime(packed)
	if f.Month < 1 || f.Month > 12 || f.Day < 1 || f.Day > 31 || f.Hour > 23 || f.Minute > 59 || f.Second > 59 || f.Micros > 999999 {
		return time.Time{}, false, dataErrf(EncodeUint(nil, packed), 0, nil, "invalid packed date time %04d-%02d-%02d %02d:%02d:%02d.%06d", f.Year, f.Month, f.Day, f.Hour, f.Minute, f.Second, f.Micros)
	}
	t = f.In(loc)
	if t.Day() != f.Day {
		return time.Time{}, false, dataErrf(EncodeUint(nil, packed), 0, nil, "invalid packed date %04d-%02d-%02d", f.Year, f.Month, f.Day)
	}
	return t, true, nil
}
