package web

// handlers_common.go contains shared request parsing helpers used across handlers.

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/giftapi/internal/core"
)

// maxJSONBodySize bounds JSON request bodies.
const maxJSONBodySize = 1 << 20

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parsePage reads the page and size query parameters.
func parsePage(r *http.Request) core.PageRequest {
	return core.PageRequest{
		Page: parseIntParam(r, "page", 0),
		Size: parseIntParam(r, "size", core.DefaultPageSize),
	}.Normalize()
}

// parseIDParam reads a positive integer path parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ValidationErrors{{
			Field:   name,
			Value:   raw,
			Message: "must be a positive integer",
		}}
	}
	return id, nil
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// clientIP returns the request's client address without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
