package beacon

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// Bounds-checked readers. Every multi-byte read in the parsers goes
// through these so a short buffer can never be indexed past its end.

func uint8At(b []byte, off int) (uint8, bool) {
	if off < 0 || off >= len(b) {
		return 0, false
	}
	return b[off], true
}

func int8At(b []byte, off int) (int8, bool) {
	v, ok := uint8At(b, off)
	return int8(v), ok
}

func window(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off+n > len(b) {
		return nil, false
	}
	return b[off : off+n], true
}

func uint16LE(b []byte, off int) (uint16, bool) {
	w, ok := window(b, off, 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(w), true
}

func uint16BE(b []byte, off int) (uint16, bool) {
	w, ok := window(b, off, 2)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint16(w), true
}

func int16LE(b []byte, off int) (int16, bool) {
	v, ok := uint16LE(b, off)
	return int16(v), ok
}

func int16BE(b []byte, off int) (int16, bool) {
	v, ok := uint16BE(b, off)
	return int16(v), ok
}

func uint24LE(b []byte, off int) (uint32, bool) {
	w, ok := window(b, off, 3)
	if !ok {
		return 0, false
	}
	return uint32(w[0]) | uint32(w[1])<<8 | uint32(w[2])<<16, true
}

func uint32LE(b []byte, off int) (uint32, bool) {
	w, ok := window(b, off, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(w), true
}

func uint32BE(b []byte, off int) (uint32, bool) {
	w, ok := window(b, off, 4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(w), true
}

func hexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// formatUUID renders 16 bytes as 8-4-4-4-12 upper case hex.
func formatUUID(b []byte) string {
	if len(b) != 16 {
		return hexUpper(b)
	}
	return hexUpper(b[0:4]) + "-" + hexUpper(b[4:6]) + "-" + hexUpper(b[6:8]) + "-" +
		hexUpper(b[8:10]) + "-" + hexUpper(b[10:16])
}

// formatMAC renders 6 bytes as lower case colon separated hex.
func formatMAC(b []byte) string {
	parts := make([]string, len(b))
	for i, x := range b {
		parts[i] = hex.EncodeToString([]byte{x})
	}
	return strings.Join(parts, ":")
}

var urlSchemes = []string{
	"http://www.",
	"https://www.",
	"http://",
	"https://",
}

var urlEncodings = []string{
	".com/", ".org/", ".edu/", ".net/", ".info/", ".biz/", ".gov/",
	".com", ".org", ".edu", ".net", ".info", ".biz", ".gov",
}

// expandURL decodes an Eddystone-URL scheme prefix byte and encoded URL.
func expandURL(scheme byte, encoded []byte) (string, error) {
	if int(scheme) >= len(urlSchemes) {
		return "", malformed("url scheme 0x%02X", scheme)
	}
	var sb strings.Builder
	sb.WriteString(urlSchemes[scheme])
	for _, c := range encoded {
		switch {
		case int(c) < len(urlEncodings):
			sb.WriteString(urlEncodings[c])
		case c <= 0x20 || c >= 0x7F:
			return "", malformed("url byte 0x%02X", c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func ptr[T any](v T) *T {
	return &v
}
