package sniff

import "github.com/pkg/errors"

// Globals
var (
	// ErrorMalformedSignature is wrapped by detectors which find a
	// structured header that doesn't parse. It is treated as no
	// match and is never returned to the caller.
	ErrorMalformedSignature = errors.New("malformed signature")
	// ErrorInvalidState is returned for API misuse
	ErrorInvalidState = errors.New("invalid state")
	// ErrorNoDetectors is returned if a registry with no usable
	// detectors is asked to detect something
	ErrorNoDetectors = errors.New("no detectors configured for the enabled formats")
)

// Malformed wraps ErrorMalformedSignature with a message
func Malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrorMalformedSignature, format, args...)
}

// IsMalformed returns true if err is a malformed signature error
func IsMalformed(err error) bool {
	return errors.Is(err, ErrorMalformedSignature)
}
