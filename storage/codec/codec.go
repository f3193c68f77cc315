package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrValuesCount is returned by Encode when the number of values does not
// match the column list.
var ErrValuesCount = errors.New("codec: value count does not match column count")

// ErrInvalidData is returned when a byte does not represent a valid value
// of its target type (e.g. a boolean byte that is neither 0 nor 1).
var ErrInvalidData = errors.New("codec: invalid data for target type")

// ErrUTF8Encoding is returned when a Char/Varchar's bytes are not valid
// UTF-8.
var ErrUTF8Encoding = errors.New("codec: invalid utf-8 in string column")

// Codec encodes and decodes ordered tuples of Values against a fixed
// column list, per spec §4.4.
type Codec struct {
	columns         []Column
	varLensByteCt   int
	bitmapByteCt    int
	dataRegionStart int
}

// New builds a Codec for columns, in declaration order.
func New(columns []Column) *Codec {
	varLens, bitmap := bytesReprInfo(columns)
	return &Codec{
		columns:         columns,
		varLensByteCt:   varLens,
		bitmapByteCt:    bitmap,
		dataRegionStart: varLens + bitmap,
	}
}

func bytesReprInfo(columns []Column) (varLenByteCount, bitmapByteCt int) {
	containsNullable := false
	for _, c := range columns {
		containsNullable = containsNullable || c.Nullable
		if c.Type.IsVariableLength() {
			varLenByteCount += 2
		}
	}
	if containsNullable {
		bitmapByteCt = bitmapByteCount(len(columns))
	}
	return varLenByteCount, bitmapByteCt
}

// Columns returns the column list this codec was built with.
func (c *Codec) Columns() []Column { return c.columns }

// MaxSize is the sum of every column's worst-case byte count, including
// the var-len area and null bitmap overhead; used to pick node capacities.
func (c *Codec) MaxSize() int {
	size := c.varLensByteCt + c.bitmapByteCt
	for _, col := range c.columns {
		size += col.maxDataBytes()
	}
	return size
}

// Encode serializes values against the codec's column list as
// [var_len_area][null_bitmap][data_area].
func (c *Codec) Encode(values []Value) ([]byte, error) {
	if len(values) != len(c.columns) {
		return nil, ErrValuesCount
	}

	dataByteCount := 0
	for _, v := range values {
		dataByteCount += v.ByteCount()
	}

	out := make([]byte, c.varLensByteCt+c.bitmapByteCt+dataByteCount)
	varLens := out[:c.varLensByteCt]
	bitmap := out[c.varLensByteCt:c.dataRegionStart]
	data := out[c.dataRegionStart:]

	varLenPos := 0
	dataPos := 0
	for i, col := range c.columns {
		v := values[i]
		if col.Type.IsVariableLength() {
			binary.LittleEndian.PutUint16(varLens[varLenPos:varLenPos+2], uint16(v.ByteCount()))
			varLenPos += 2
		}
		if col.Nullable && v.IsNull() {
			bitmapSet(bitmap, i)
		}
		n, err := writeValue(data[dataPos:], v)
		if err != nil {
			return nil, err
		}
		dataPos += n
	}

	return out, nil
}

// Decode deserializes values against the codec's column list, returning
// the total number of bytes consumed from the start of src (var_len_area +
// null_bitmap + the data bytes actually read), so a caller can split "key
// part" from "value part" of a concatenated record. See DESIGN.md for why
// this differs from a data-region-relative count.
func (c *Codec) Decode(src []byte) ([]Value, int, error) {
	varLens := src[:c.varLensByteCt]
	bitmap := src[c.varLensByteCt:c.dataRegionStart]
	data := src[c.dataRegionStart:]

	values := make([]Value, len(c.columns))
	varLenPos := 0
	dataPos := 0
	for i, col := range c.columns {
		if col.Nullable && len(bitmap) > 0 && bitmapIsSet(bitmap, i) {
			// Encode writes a var-len slot for a variable-length column
			// even when it is NULL, so skip that slot here as well.
			if col.Type.IsVariableLength() {
				varLenPos += 2
			}
			values[i] = NullValue()
			continue
		}

		if col.Type.IsVariableLength() {
			length := int(binary.LittleEndian.Uint16(varLens[varLenPos : varLenPos+2]))
			varLenPos += 2
			v, err := readString(data[dataPos : dataPos+length])
			if err != nil {
				return nil, 0, err
			}
			values[i] = v
			dataPos += length
			continue
		}

		v, n, err := readFixedSizeValue(data[dataPos:], col.Type, col.TypeLen)
		if err != nil {
			return nil, 0, err
		}
		values[i] = v
		dataPos += n
	}

	return values, c.dataRegionStart + dataPos, nil
}

func writeValue(dst []byte, v Value) (int, error) {
	switch v.Kind() {
	case KindNull:
		return 0, nil
	case KindBool:
		if v.Bool() {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
		return 1, nil
	case KindI8:
		dst[0] = byte(v.I8())
		return 1, nil
	case KindI16:
		binary.LittleEndian.PutUint16(dst, uint16(v.I16()))
		return 2, nil
	case KindI32:
		binary.LittleEndian.PutUint32(dst, uint32(v.I32()))
		return 4, nil
	case KindI64:
		binary.LittleEndian.PutUint64(dst, uint64(v.I64()))
		return 8, nil
	case KindU8:
		dst[0] = v.U8()
		return 1, nil
	case KindU16:
		binary.LittleEndian.PutUint16(dst, v.U16())
		return 2, nil
	case KindU32:
		binary.LittleEndian.PutUint32(dst, v.U32())
		return 4, nil
	case KindU64:
		binary.LittleEndian.PutUint64(dst, v.U64())
		return 8, nil
	case KindF32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v.F32()))
		return 4, nil
	case KindF64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.F64()))
		return 8, nil
	case KindString:
		return copy(dst, v.String()), nil
	default:
		return 0, errors.New("codec: unknown value kind")
	}
}

func readFixedSizeValue(src []byte, sqlType SqlType, typeLen uint16) (Value, int, error) {
	switch sqlType {
	case Boolean:
		switch src[0] {
		case 0:
			return BoolValue(false), 1, nil
		case 1:
			return BoolValue(true), 1, nil
		default:
			return Value{}, 0, ErrInvalidData
		}
	case TinyInt:
		return I8Value(int8(src[0])), 1, nil
	case SmallInt:
		return I16Value(int16(binary.LittleEndian.Uint16(src))), 2, nil
	case Int:
		return I32Value(int32(binary.LittleEndian.Uint32(src))), 4, nil
	case BigInt:
		return I64Value(int64(binary.LittleEndian.Uint64(src))), 8, nil
	case TinyUint:
		return U8Value(src[0]), 1, nil
	case SmallUint:
		return U16Value(binary.LittleEndian.Uint16(src)), 2, nil
	case Uint:
		return U32Value(binary.LittleEndian.Uint32(src)), 4, nil
	case BigUint:
		return U64Value(binary.LittleEndian.Uint64(src)), 8, nil
	case Float:
		return F32Value(math.Float32frombits(binary.LittleEndian.Uint32(src))), 4, nil
	case Double:
		return F64Value(math.Float64frombits(binary.LittleEndian.Uint64(src))), 8, nil
	case Char:
		v, err := readString(src[:typeLen])
		return v, int(typeLen), err
	default:
		return Value{}, 0, errors.Errorf("codec: %v is not a fixed-size type", sqlType)
	}
}

func readString(src []byte) (Value, error) {
	// The data this core writes is always UTF-8 (it only ever comes from Go
	// strings), so validity failures indicate on-disk corruption.
	if !utf8.Valid(src) {
		return Value{}, ErrUTF8Encoding
	}
	return StringValue(string(src)), nil
}
