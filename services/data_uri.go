// File: /services/data_uri.go
package services

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrMalformedDataURI = errors.New("malformed data URI")

// InlineImage is an image payload ready to be sent inline to the model.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// EncodeDataURI builds the data:<mime>;base64,<payload> form stored in a route's images.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its MIME type and bytes.
func DecodeDataURI(uri string) (InlineImage, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return InlineImage{}, ErrMalformedDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return InlineImage{}, ErrMalformedDataURI
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mimeType == "" {
		return InlineImage{}, ErrMalformedDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return InlineImage{}, ErrMalformedDataURI
	}
	return InlineImage{MIMEType: mimeType, Data: data}, nil
}
