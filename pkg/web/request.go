package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Param returns the web call parameters from the request.
func Param(r *http.Request, key string) string {
	return r.PathValue(key)
}

// Decode reads the body of an HTTP request into val. An empty body leaves val
// untouched. Unknown fields are rejected.
func Decode(r *http.Request, val any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(val); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("request: unable to decode payload: %w", err)
	}
	return nil
}
