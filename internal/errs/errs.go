package errs

import (
	"errors"
	"fmt"
)

var (
	ErrParse               = errors.New("parse error")
	ErrTransport           = errors.New("transport error")
	ErrUpstream            = errors.New("upstream error")
	ErrNotFound            = errors.New("not found")
	ErrSizeLimit           = errors.New("size limit exceeded")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrRPC                 = errors.New("json-rpc error")
	ErrMetadataParse       = errors.New("invalid token metadata")
	ErrTooManyHops         = errors.New("too many metadata hops")
	ErrUnknownChain        = errors.New("unknown chain")
	ErrInvalidCID          = errors.New("invalid CID")

	// Terminal "no content" states. They are returned as errors so callers can
	// short-circuit, but they do not indicate a failure.
	ErrEmptyBody     = errors.New("empty body")
	ErrEmptyTokenURI = errors.New("empty token uri")
)

// SizeLimitError reports a resource that grew past the configured ceiling
// while it was being read.
type SizeLimitError struct {
	URL   string
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("linked file %s exceeds limit of %dkb", e.URL, e.Limit/1000)
}

func (e *SizeLimitError) Unwrap() error {
	return ErrSizeLimit
}

// IsNoContent reports whether err is one of the valid-but-empty terminal states.
func IsNoContent(err error) bool {
	return errors.Is(err, ErrEmptyBody) || errors.Is(err, ErrEmptyTokenURI)
}
