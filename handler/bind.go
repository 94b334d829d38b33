package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// MaxBodySize caps JSON request bodies.
const MaxBodySize = 1 << 20

// DecodeJSON strictly decodes the request body into v: the content type must
// be application/json, unknown fields are rejected and trailing data is an
// error. Failures are returned as HTTPError values.
func DecodeJSON(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return ErrUnsupportedMedia.WithMessage("expected application/json")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrBadRequest.WithMessage("empty body")
		}
		return ErrBadRequest.WithMessage("invalid JSON: " + err.Error())
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrBadRequest.WithMessage("unexpected data after JSON object")
	}
	return nil
}
