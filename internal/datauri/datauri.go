// Package datauri encodes and decodes RFC 2397 "data:" URIs.
package datauri

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/nftgp/http-gateway/internal/errs"
)

const Scheme = "data:"

// capturing groups: 1: mime type 2: ";base64" 3: payload
var dataURIPattern = regexp.MustCompile(`(?is)^data:(.*?)(;base64)?,(.*)$`)

type DataURI struct {
	MimeType string
	IsBase64 bool
	Data     []byte
}

// Decode parses uri and returns its payload as raw bytes. Base64 payloads are
// decoded, anything else is returned verbatim.
func Decode(uri string) (*DataURI, error) {
	match := dataURIPattern.FindStringSubmatch(uri)
	if match == nil {
		return nil, fmt.Errorf("%w: %.64s is not a valid data URI", errs.ErrParse, uri)
	}

	d := &DataURI{
		MimeType: match[1],
		IsBase64: match[2] != "",
	}

	if !d.IsBase64 {
		d.Data = []byte(match[3])
		return d, nil
	}

	payload := match[3]
	if strings.Contains(payload, "%") {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid escape in base64 payload: %v", errs.ErrParse, err)
		}
		payload = unescaped
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", errs.ErrParse, err)
	}
	d.Data = data
	return d, nil
}

func decodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	// unpadded payloads are common in hand-built URIs
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

// Encode always produces the base64 form.
func Encode(data []byte, mimeType string) string {
	var b strings.Builder
	b.Grow(len(Scheme) + len(mimeType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(Scheme)
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

func (d *DataURI) String() string {
	if d.IsBase64 {
		return Encode(d.Data, d.MimeType)
	}
	return Scheme + d.MimeType + "," + string(d.Data)
}

// IsDataURI reports whether uri uses the data scheme.
func IsDataURI(uri string) bool {
	return len(uri) >= len(Scheme) && strings.EqualFold(uri[:len(Scheme)], Scheme)
}
