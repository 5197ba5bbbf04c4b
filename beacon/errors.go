package beacon

import "github.com/pkg/errors"

var (
	// ErrNoMatch is returned when no enabled format claims an advertisement.
	ErrNoMatch = errors.New("no matching beacon format")
	// ErrTruncated means the payload is shorter than the format requires.
	// The advertisement is discarded.
	ErrTruncated = errors.New("advertisement truncated")
	// ErrUnknownSubtype means the signature matched but a frame type or tag
	// was not recognised.
	ErrUnknownSubtype = errors.New("unknown subtype")
	// ErrMalformedField means a field is self-inconsistent, eg a TLV length
	// that runs past the end of the buffer.
	ErrMalformedField = errors.New("malformed field")
)

func truncated(format string, args ...interface{}) error {
	return errors.Wrapf(ErrTruncated, format, args...)
}

func unknownSubtype(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnknownSubtype, format, args...)
}

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedField, format, args...)
}

// IsDiscard reports whether err means the whole advertisement must be
// dropped rather than partially applied.
func IsDiscard(err error) bool {
	switch errors.Cause(err) {
	case ErrTruncated, ErrNoMatch:
		return true
	}
	return false
}
