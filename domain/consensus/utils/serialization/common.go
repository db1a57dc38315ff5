package serialization

import (
	"io"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/util/binaryserializer"
	"github.com/pkg/errors"
)

// errNoEncodingForType signifies that there's no encoding for the given type.
var errNoEncodingForType = errors.New("there's no encoding for this type")

var errMalformed = errors.New("errMalformed")

// maxCount bounds every length prefix read from untrusted data.
const maxCount = 1 << 20

// WriteElement writes the little endian representation of element to w.
func WriteElement(w io.Writer, element interface{}) error {
	// Attempt to write the element based on the concrete type via fast
	// type assertions first.
	switch e := element.(type) {
	case uint8:
		return binaryserializer.PutUint8(w, e)

	case uint16:
		err := binaryserializer.PutUint8(w, uint8(e))
		if err != nil {
			return err
		}
		return binaryserializer.PutUint8(w, uint8(e>>8))

	case uint32:
		return binaryserializer.PutUint32(w, e)

	case uint64:
		return binaryserializer.PutUint64(w, e)

	case bool:
		if e {
			return binaryserializer.PutUint8(w, 0x01)
		}
		return binaryserializer.PutUint8(w, 0x00)

	case externalapi.DomainHash:
		_, err := w.Write(e[:])
		return err

	case *externalapi.DomainHash:
		_, err := w.Write(e[:])
		return err

	case externalapi.KeyImage:
		_, err := w.Write(e[:])
		return err

	case externalapi.PublicKey:
		_, err := w.Write(e[:])
		return err

	case externalapi.Signature:
		_, err := w.Write(e[:])
		return err
	}

	return errors.Wrapf(errNoEncodingForType, "couldn't find a way to write type %T", element)
}

// WriteElements writes multiple items to w. It is equivalent to multiple
// calls to writeElement.
func WriteElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		err := WriteElement(w, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to.
func ReadElement(r io.Reader, element interface{}) error {
	// Attempt to read the element based on the concrete type via fast
	// type assertions first.
	switch e := element.(type) {
	case *uint8:
		rv, err := binaryserializer.Uint8(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *uint16:
		low, err := binaryserializer.Uint8(r)
		if err != nil {
			return err
		}
		high, err := binaryserializer.Uint8(r)
		if err != nil {
			return err
		}
		*e = uint16(low) | uint16(high)<<8
		return nil

	case *uint32:
		rv, err := binaryserializer.Uint32(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *uint64:
		rv, err := binaryserializer.Uint64(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *bool:
		rv, err := binaryserializer.Uint8(r)
		if err != nil {
			return err
		}
		if rv == 0x00 {
			*e = false
		} else if rv == 0x01 {
			*e = true
		} else {
			return errors.Wrapf(errMalformed, "in order to keep serialization canonical, true has to"+
				" always be 0x01")
		}
		return nil

	case *externalapi.DomainHash:
		_, err := io.ReadFull(r, e[:])
		return err

	case *externalapi.KeyImage:
		_, err := io.ReadFull(r, e[:])
		return err

	case *externalapi.PublicKey:
		_, err := io.ReadFull(r, e[:])
		return err

	case *externalapi.Signature:
		_, err := io.ReadFull(r, e[:])
		return err
	}

	return errors.Wrapf(errNoEncodingForType, "couldn't find a way to read type %T", element)
}

// ReadElements reads multiple items from r. It is equivalent to multiple
// calls to ReadElement.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		err := ReadElement(r, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteVarInt writes val to w as a varint.
func WriteVarInt(w io.Writer, val uint64) error {
	return binaryserializer.PutVarInt(w, val)
}

// ReadVarInt reads a varint from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	value, err := binaryserializer.VarInt(r)
	if err != nil {
		if errors.Is(err, binaryserializer.ErrVarIntOverflow) || errors.Is(err, binaryserializer.ErrNonCanonicalVarInt) {
			return 0, errors.Wrap(errMalformed, err.Error())
		}
		return 0, err
	}
	return value, nil
}

// ReadVarIntUint32 reads a varint that must fit into 32 bits.
func ReadVarIntUint32(r io.Reader) (uint32, error) {
	value, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if value > 0xFFFFFFFF {
		return 0, errors.Wrapf(errMalformed, "varint %d does not fit into 32 bits", value)
	}
	return uint32(value), nil
}

// ReadVarIntUint8 reads a varint that must fit into 8 bits.
func ReadVarIntUint8(r io.Reader) (uint8, error) {
	value, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if value > 0xFF {
		return 0, errors.Wrapf(errMalformed, "varint %d does not fit into 8 bits", value)
	}
	return uint8(value), nil
}

// ReadCount reads a varint length prefix and bounds it.
func ReadCount(r io.Reader) (int, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if count > maxCount {
		return 0, errors.Wrapf(errMalformed, "count %d exceeds the maximum of %d", count, maxCount)
	}
	return int(count), nil
}

// WriteBytes writes a length prefixed byte slice.
func WriteBytes(w io.Writer, data []byte) error {
	return binaryserializer.PutBytes(w, data)
}

// ReadBytes reads a length prefixed byte slice.
func ReadBytes(r io.Reader) ([]byte, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if length > maxBlobSize {
		return nil, errors.Wrapf(errMalformed, "byte slice of length %d exceeds the maximum of %d",
			length, maxBlobSize)
	}
	data := make([]byte, length)
	_, err = io.ReadFull(r, data)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// maxBlobSize bounds length prefixed byte slices.
const maxBlobSize = 1 << 26

// IsMalformedError returns whether the error indicates a malformed data source
func IsMalformedError(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, errMalformed)
}
