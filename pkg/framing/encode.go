package framing

import (
	"fmt"
	"strings"
)

// DecodeText interprets frame bytes as Unicode code points, one per byte.
// This matches devices speaking Latin-1-style text protocols: 0x41 is "A",
// 0xB0 is the degree sign.
func DecodeText(frame []byte) string {
	var sb strings.Builder
	sb.Grow(len(frame))
	for _, b := range frame {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}

// EncodeText is the inverse of DecodeText. Code points above 0xFF do not
// fit a single wire byte and are rejected.
func EncodeText(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return nil, fmt.Errorf("framing: code point %U does not fit one wire byte", r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

// EncodeFrame builds a header+length+payload frame for transmission. The
// payload must fit the one-byte length field.
func EncodeFrame(header, payload []byte) ([]byte, error) {
	if len(payload) > 255 {
		return nil, fmt.Errorf("framing: payload length %d exceeds the one-byte length field", len(payload))
	}
	out := make([]byte, 0, len(header)+1+len(payload))
	out = append(out, header...)
	out = append(out, byte(len(payload)))
	out = append(out, payload...)
	return out, nil
}

// AppendTerminated appends payload followed by the terminator bytes to dst
// and returns the extended slice.
func AppendTerminated(dst, payload, term []byte) []byte {
	dst = append(dst, payload...)
	return append(dst, term...)
}
