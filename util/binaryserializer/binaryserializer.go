package binaryserializer

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxItems is the number of buffers to keep in the free
// list to use for binary serialization and deserialization.
const maxItems = 1024

// MaxVarIntLen is the maximum number of bytes a uint64 takes when encoded
// as a varint.
const MaxVarIntLen = binary.MaxVarintLen64

// ErrVarIntOverflow is returned when a varint does not fit in 64 bits.
var ErrVarIntOverflow = errors.New("varint overflows a 64-bit integer")

// ErrNonCanonicalVarInt is returned when a varint is encoded with redundant
// trailing zero groups. Such encodings would give one value two byte forms
// and thus two hashes.
var ErrNonCanonicalVarInt = errors.New("varint is not canonically encoded")

// binaryFreeList provides a free list of buffers to use for serializing and
// deserializing primitive integer values to and from io.Readers and
// io.Writers. Every buffer has a capacity of MaxVarIntLen.
var binaryFreeList = make(chan []byte, maxItems)

// Borrow returns a byte slice from the free list with a length of
// MaxVarIntLen. A new buffer is allocated if the free list is empty.
func Borrow() []byte {
	var buf []byte
	select {
	case buf = <-binaryFreeList:
	default:
		buf = make([]byte, MaxVarIntLen)
	}
	return buf[:MaxVarIntLen]
}

// Return puts the provided byte slice back on the free list. The buffer MUST
// have been obtained via the Borrow function.
func Return(buf []byte) {
	select {
	case binaryFreeList <- buf:
	default:
		// Let it go to the garbage collector.
	}
}

// Uint8 reads a single byte from the provided reader.
func Uint8(r io.Reader) (uint8, error) {
	buf := Borrow()[:1]
	defer Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return buf[0], nil
}

// Uint32 reads four little-endian bytes from the provided reader.
func Uint32(r io.Reader) (uint32, error) {
	buf := Borrow()[:4]
	defer Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// Uint64 reads eight little-endian bytes from the provided reader.
func Uint64(r io.Reader) (uint64, error) {
	buf := Borrow()[:8]
	defer Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// PutUint8 writes a single byte to the given writer.
func PutUint8(w io.Writer, val uint8) error {
	buf := Borrow()[:1]
	defer Return(buf)
	buf[0] = val
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// PutUint32 writes val as four little-endian bytes.
func PutUint32(w io.Writer, val uint32) error {
	buf := Borrow()[:4]
	defer Return(buf)
	binary.LittleEndian.PutUint32(buf, val)
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// PutUint64 writes val as eight little-endian bytes.
func PutUint64(w io.Writer, val uint64) error {
	buf := Borrow()[:8]
	defer Return(buf)
	binary.LittleEndian.PutUint64(buf, val)
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// PutVarInt writes val as an unsigned LEB128 varint: seven bits per byte,
// least significant group first, high bit set on every byte but the last.
func PutVarInt(w io.Writer, val uint64) error {
	buf := Borrow()
	defer Return(buf)
	n := binary.PutUvarint(buf, val)
	_, err := w.Write(buf[:n])
	return errors.WithStack(err)
}

// VarInt reads a varint written by PutVarInt. Encodings that overflow 64
// bits or end with a zero continuation group are rejected.
func VarInt(r io.Reader) (uint64, error) {
	var value uint64
	var shift uint
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := Uint8(r)
		if err != nil {
			return 0, err
		}
		if i == MaxVarIntLen-1 && b > 1 {
			return 0, errors.WithStack(ErrVarIntOverflow)
		}
		if b&0x80 == 0 {
			if b == 0 && i > 0 {
				return 0, errors.WithStack(ErrNonCanonicalVarInt)
			}
			return value | uint64(b)<<shift, nil
		}
		value |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, errors.WithStack(ErrVarIntOverflow)
}

// VarIntSerializeSize returns the number of bytes PutVarInt writes for val.
func VarIntSerializeSize(val uint64) int {
	size := 1
	for val >= 0x80 {
		val >>= 7
		size++
	}
	return size
}

// PutBytes writes a varint length prefix followed by data.
func PutBytes(w io.Writer, data []byte) error {
	err := PutVarInt(w, uint64(len(data)))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}

// Bytes reads a length-prefixed byte slice written by PutBytes. maxLength
// bounds the allocation for untrusted input.
func Bytes(r io.Reader, maxLength uint64) ([]byte, error) {
	length, err := VarInt(r)
	if err != nil {
		return nil, err
	}
	if length > maxLength {
		return nil, errors.Errorf("byte slice of length %d exceeds the maximum of %d", length, maxLength)
	}
	data := make([]byte, length)
	_, err = io.ReadFull(r, data)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}
