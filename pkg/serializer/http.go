package serializer

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/munnerz/goautoneg"
)

// RespondJSON writes a JSON response with the given status code and data.
// The body is encoded before headers are written so a failed encoding
// never produces a partial response.
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", FormatJSON.ContentType())

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("json encoding failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("response write failed", slog.String("error", err.Error()))
	}
}

// NegotiateFormat picks a response format from the request. An explicit
// ?format= query parameter wins over the Accept header; anything
// unrecognized yields JSON.
func NegotiateFormat(r *http.Request) Format {
	if q := Format(r.URL.Query().Get("format")); q != "" && !q.IsUnknown() {
		return q
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return FormatJSON
	}
	alternatives := []string{
		FormatJSON.ContentType(),
		FormatYAML.ContentType(),
		"application/x-yaml",
		"text/yaml",
		FormatTable.ContentType(),
	}
	switch goautoneg.Negotiate(accept, alternatives) {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML
	case "text/plain":
		return FormatTable
	default:
		return FormatJSON
	}
}

// Respond writes data in the format negotiated from r.
func Respond(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	format := NegotiateFormat(r)
	if format == FormatJSON {
		RespondJSON(w, statusCode, data)
		return
	}

	content, err := Marshal(format, data)
	if err != nil {
		slog.Error("response encoding failed",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(statusCode)
	if _, err := w.Write(content); err != nil {
		slog.Warn("response write failed", slog.String("error", err.Error()))
	}
}
