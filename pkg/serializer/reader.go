package serializer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// maxDocumentSize bounds documents read back from disk.
const maxDocumentSize = 64 << 20

// Reader decodes a previously written document.
type Reader struct {
	format Format
	input  io.ReadCloser
}

// NewFileReader opens path for decoding in format. Table output cannot be
// read back.
func NewFileReader(format Format, path string) (*Reader, error) {
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("format %q cannot be deserialized", format)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Reader{format: format, input: f}, nil
}

// Deserialize decodes the document into v.
func (r *Reader) Deserialize(v any) error {
	content, err := io.ReadAll(io.LimitReader(r.input, maxDocumentSize))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	switch r.format {
	case FormatYAML:
		err = yaml.Unmarshal(content, v)
	default:
		err = json.Unmarshal(content, v)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s document: %w", r.format, err)
	}
	return nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.input.Close()
}
