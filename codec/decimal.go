package codec

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// Decimals use the MySQL binary layout: digits are grouped into words of 9
// decimal digits stored in 4 bytes, partial words use dig2bytes[n] bytes,
// negative values are stored complemented and the first bit is flipped so
// that the bytes compare like the numbers.
const (
	digitsPerWord = 9
	wordSize      = 4

	MaxDecimalPrecision = 65
	MaxDecimalScale     = 30
)

var dig2bytes = [digitsPerWord + 1]int{0, 1, 1, 2, 2, 3, 3, 4, 4, 4}

var pow10 = [digitsPerWord + 1]uint64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000}

// DecimalBinSize returns the width of the binary form of DECIMAL(precision,
// frac), excluding the two leading precision and frac bytes.
func DecimalBinSize(precision, frac int) (int, error) {
	if precision <= 0 || precision > MaxDecimalPrecision || frac < 0 || frac > MaxDecimalScale || frac > precision {
		return 0, errors.Mark(errors.Newf("invalid decimal precision %d and frac %d", precision, frac), ErrInvalidEncoding)
	}
	digitsInt := precision - frac
	wordsInt := digitsInt / digitsPerWord
	wordsFrac := frac / digitsPerWord
	xInt := digitsInt - wordsInt*digitsPerWord
	xFrac := frac - wordsFrac*digitsPerWord
	return wordsInt*wordSize + dig2bytes[xInt] + wordsFrac*wordSize + dig2bytes[xFrac], nil
}

func peekDecimal(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, dataErrf(b, 0, nil, "insufficient bytes to cut decimal header")
	}
	size, err := DecimalBinSize(int(b[0]), int(b[1]))
	if err != nil {
		return 0, dataErrf(b, 0, err, "invalid decimal header")
	}
	if len(b) < 2+size {
		return 0, dataErrf(b, 2, nil, "insufficient bytes for decimal: %d remaining, %d wanted", len(b)-2, size)
	}
	return 2 + size, nil
}

var decimalCtx = func() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(MaxDecimalPrecision + MaxDecimalScale + 1)
	ctx.Rounding = apd.RoundHalfUp
	return ctx
}()

// EncodeDecimal appends precision, frac and the binary form of d rounded
// half-up to frac digits. It fails when d needs more than precision-frac
// integer digits.
func EncodeDecimal(b []byte, d *apd.Decimal, precision, frac int) ([]byte, error) {
	size, err := DecimalBinSize(precision, frac)
	if err != nil {
		return nil, err
	}
	if d.Form != apd.Finite {
		return nil, errors.Newf("cannot encode non-finite decimal %s", d)
	}
	var q apd.Decimal
	if _, err := decimalCtx.Quantize(&q, d, -int32(frac)); err != nil {
		return nil, errors.Wrapf(err, "rounding %s to %d fractional digits", d, frac)
	}
	s := q.Text('f')
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")

	digitsInt := precision - frac
	if len(intPart) > digitsInt {
		return nil, errors.Newf("decimal %s overflows DECIMAL(%d,%d)", d, precision, frac)
	}
	intPart = strings.Repeat("0", digitsInt-len(intPart)) + intPart
	if len(fracPart) < frac {
		fracPart += strings.Repeat("0", frac-len(fracPart))
	}
	if neg && strings.Trim(intPart+fracPart, "0") == "" {
		neg = false
	}
	var mask uint64
	if neg {
		mask = ^uint64(0)
	}

	b = growBytes(b, 2+size)
	b = append(b, byte(precision), byte(frac))
	binStart := len(b)

	lead := digitsInt % digitsPerWord
	b = appendDecimalWord(b, intPart[:lead], mask)
	for i := lead; i < digitsInt; i += digitsPerWord {
		b = appendDecimalWord(b, intPart[i:i+digitsPerWord], mask)
	}
	wordsFrac := frac / digitsPerWord
	for i := 0; i < wordsFrac*digitsPerWord; i += digitsPerWord {
		b = appendDecimalWord(b, fracPart[i:i+digitsPerWord], mask)
	}
	b = appendDecimalWord(b, fracPart[wordsFrac*digitsPerWord:frac], mask)

	b[binStart] ^= 0x80
	return b, nil
}

func appendDecimalWord(b []byte, digits string, mask uint64) []byte {
	if len(digits) == 0 {
		return b
	}
	x, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		panic(errors.AssertionFailedf("non-digit decimal word %q", digits))
	}
	x ^= mask
	size := dig2bytes[len(digits)]
	for i := size - 1; i >= 0; i-- {
		b = append(b, byte(x>>(8*uint(i))))
	}
	return b
}

// DecodeDecimal decodes a value produced by EncodeDecimal.
func DecodeDecimal(b []byte) (remaining []byte, d *apd.Decimal, precision, frac int, err error) {
	n, err := peekDecimal(b)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	precision, frac = int(b[0]), int(b[1])
	bin := make([]byte, n-2)
	copy(bin, b[2:n])

	neg := bin[0]&0x80 == 0
	bin[0] ^= 0x80
	var mask uint64
	if neg {
		mask = ^uint64(0)
	}

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	pos := 0
	readWord := func(digits int) error {
		if digits == 0 {
			return nil
		}
		size := dig2bytes[digits]
		var x uint64
		for _, c := range bin[pos : pos+size] {
			x = x<<8 | uint64(c)
		}
		x = (x ^ mask) & (1<<(8*uint(size)) - 1)
		if x >= pow10[digits] {
			return dataErrf(b, 2+pos, nil, "invalid decimal word %d for %d digits", x, digits)
		}
		pos += size
		s := strconv.FormatUint(x, 10)
		sb.WriteString(strings.Repeat("0", digits-len(s)))
		sb.WriteString(s)
		return nil
	}

	digitsInt := precision - frac
	if digitsInt == 0 {
		sb.WriteByte('0')
	}
	if err := readWord(digitsInt % digitsPerWord); err != nil {
		return nil, nil, 0, 0, err
	}
	for i := digitsInt % digitsPerWord; i < digitsInt; i += digitsPerWord {
		if err := readWord(digitsPerWord); err != nil {
			return nil, nil, 0, 0, err
		}
	}
	if frac > 0 {
		sb.WriteByte('.')
		wordsFrac := frac / digitsPerWord
		for i := 0; i < wordsFrac; i++ {
			if err := readWord(digitsPerWord); err != nil {
				return nil, nil, 0, 0, err
			}
		}
		if err := readWord(frac - wordsFrac*digitsPerWord); err != nil {
			return nil, nil, 0, 0, err
		}
	}

	d, _, err = apd.NewFromString(sb.String())
	if err != nil {
		return nil, nil, 0, 0, dataErrf(b, 0, err, "invalid decimal")
	}
	if d.IsZero() {
		d.Negative = false
	}
	return b[n:], d, precision, frac, nil
}
