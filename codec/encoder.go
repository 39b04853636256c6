package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"reflect"

	"github.com/holiman/uint256"
)

var ErrUnsupportedType = errors.New("unsupported type")

// Marshaler is implemented by types with a hand-written canonical encoding.
type Marshaler interface {
	MarshalCanonical() ([]byte, error)
}

// Marshal returns the canonical encoding of v, the byte string absorbed by
// queue digests.
//
// Fixed width integers are little endian, VM words are 32 bytes big endian,
// slices and byte strings carry a compact length prefix, arrays and structs
// are the concatenation of their elements and a pointer is an option byte
// followed by its element. Struct fields tagged `codec:"-"` are skipped.
func Marshal(v interface{}) ([]byte, error) {
	var e encoder
	if err := e.value(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) value(in interface{}) error {
	if m, ok := in.(Marshaler); ok {
		b, err := m.MarshalCanonical()
		if err != nil {
			return err
		}
		e.buf = append(e.buf, b...)
		return nil
	}

	switch in := in.(type) {
	case int:
		if in < 0 {
			return fmt.Errorf("%w: negative int %d", ErrUnsupportedType, in)
		}
		e.compact(uint64(in))
		return nil
	case uint:
		e.compact(uint64(in))
		return nil
	case uint256.Int:
		e.word(&in)
		return nil
	case *uint256.Int:
		if in == nil {
			in = new(uint256.Int)
		}
		e.word(in)
		return nil
	case []byte:
		e.bytes(in)
		return nil
	case string:
		e.bytes([]byte(in))
		return nil
	}
	return e.reflected(reflect.ValueOf(in))
}

func (e *encoder) reflected(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}
	case reflect.Uint8, reflect.Int8:
		e.buf = append(e.buf, byte(fixed(v)))
	case reflect.Uint16, reflect.Int16:
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(fixed(v)))
	case reflect.Uint32, reflect.Int32:
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(fixed(v)))
	case reflect.Uint64, reflect.Int64:
		e.buf = binary.LittleEndian.AppendUint64(e.buf, fixed(v))
	case reflect.Ptr:
		if v.IsNil() {
			e.buf = append(e.buf, 0)
			return nil
		}
		e.buf = append(e.buf, 1)
		return e.value(v.Elem().Interface())
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			for i := 0; i < v.Len(); i++ {
				e.buf = append(e.buf, byte(v.Index(i).Uint()))
			}
			return nil
		}
		return e.elems(v)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			e.bytes(v.Bytes())
			return nil
		}
		e.compact(uint64(v.Len()))
		return e.elems(v)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("codec") == "-" {
				continue
			}
			if err := e.value(v.Field(i).Interface()); err != nil {
				return fmt.Errorf("field %s.%s: %w", t.Name(), f.Name, err)
			}
		}
	default:
		if !v.IsValid() {
			return fmt.Errorf("%w: nil", ErrUnsupportedType)
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())
	}
	return nil
}

func (e *encoder) elems(v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := e.value(v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// fixed returns the two's complement bits of a sized integer.
func fixed(v reflect.Value) uint64 {
	if v.CanUint() {
		return v.Uint()
	}
	return uint64(v.Int())
}

func (e *encoder) word(w *uint256.Int) {
	b := w.Bytes32()
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) bytes(b []byte) {
	e.compact(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// compact writes n in the variable length form: the two low bits of the
// first byte select a 1, 2 or 4 byte encoding, or a byte count followed by
// the little endian value.
func (e *encoder) compact(n uint64) {
	switch {
	case n < 1<<6:
		e.buf = append(e.buf, byte(n)<<2)
	case n < 1<<14:
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(n<<2)|1)
	case n < 1<<30:
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(n<<2)|2)
	default:
		size := (bits.Len64(n) + 7) / 8
		e.buf = append(e.buf, byte(size-4)<<2|3)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], n)
		e.buf = append(e.buf, b[:size]...)
	}
}
