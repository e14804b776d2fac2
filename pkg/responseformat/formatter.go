// Package responseformat writes HTTP responses as JSON or, when requested
// with format=msgpack, as MessagePack.
package responseformat

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Content types
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/x-msgpack"
)

// ErrorBody is the payload written for failed requests
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// Formatter encodes response bodies
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WantsMsgPack reports whether the request asked for MessagePack
func WantsMsgPack(req *http.Request) bool {
	return req.URL.Query().Get("format") == "msgpack"
}

// WriteResponse writes data with the given status. JSON is the default;
// MessagePack is used when format=msgpack is specified.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if WantsMsgPack(req) {
		w.Header().Set("Content-Type", ContentTypeMsgPack)
		w.WriteHeader(status)
		encoder := msgpack.NewEncoder(w)
		encoder.SetCustomStructTag("json") // Use json tags for MessagePack
		return encoder.Encode(data)
	}

	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an ErrorBody in the requested format
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, msg string, details ...string) error {
	return f.WriteResponse(w, req, status, ErrorBody{Error: msg, Details: details})
}
