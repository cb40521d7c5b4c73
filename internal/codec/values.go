package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"daq-svr/internal/registry"
)

// safeRead bounds-checks a payload read so a short packet never panics.
func safeRead(data []byte, offset, length int) ([]byte, error) {
	if offset+length > len(data) {
		return nil, fmt.Errorf("%w: tried to read %d bytes at offset %d (len=%d)", ErrSizeMismatch, length, offset, len(data))
	}
	return data[offset : offset+length], nil
}

// DecodeValue reinterprets little-endian bytes as an unsigned integer or an
// IEEE-754 float.
func DecodeValue(b []byte, enc registry.Encoding) float64 {
	if enc == registry.Float {
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case 8:
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	return float64(u)
}

// DecodeFields consumes each field's width from payload starting at offset
// and returns the decoded values with the new offset.
func DecodeFields(fields []registry.Descriptor, payload []byte, offset int) ([]float64, int, error) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		raw, err := safeRead(payload, offset, f.Width)
		if err != nil {
			return nil, offset, fmt.Errorf("%s: %w", f.Name, err)
		}
		offset += f.Width
		out = append(out, DecodeValue(raw, f.Encoding))
	}
	return out, offset, nil
}

// AppendValue packs v into width little-endian bytes. Integers are truncated
// to the field width, so wider values wrap. Negative values use two's complement.
func AppendValue(dst []byte, v float64, width int, enc registry.Encoding) []byte {
	if enc == registry.Float {
		switch width {
		case 4:
			return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
		case 8:
			return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
		}
	}
	var u uint64
	if v >= 0 {
		u = uint64(math.Mod(v, 1<<64))
	} else {
		u = uint64(int64(v))
	}
	for i := 0; i < width; i++ {
		dst = append(dst, byte(u>>(8*i)))
	}
	return dst
}
