package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// Parse decodes and validates a document from raw JSON bytes.
//
// Failures carry one of two codes:
//   - PARSE_FAILURE: the bytes are empty or not valid JSON
//   - MALFORMED_INPUT: valid JSON without the document shape
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, verrors.New(verrors.ErrCodeParseFailure, "empty request body")
	}

	// Syntax is checked separately so that a body like `not json` is a parse
	// failure, while `[1,2]` or `"x"` is a document of the wrong shape.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return nil, verrors.Wrap(verrors.ErrCodeParseFailure, err, "invalid JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return nil, verrors.New(verrors.ErrCodeMalformedInput, "document must be a JSON object, got %s", typeErr.Value)
		default:
			return nil, verrors.Wrap(verrors.ErrCodeParseFailure, err, "invalid JSON")
		}
	}
	if top == nil {
		return nil, verrors.New(verrors.ErrCodeMalformedInput, "document must be a JSON object, got null")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, decodeError(err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Read reads all of r and parses it with [Parse].
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, verrors.Wrap(verrors.ErrCodeParseFailure, err, "read document")
	}
	return Parse(data)
}

// Canonical re-encodes the document without insignificant whitespace and
// with a stable field order. Two bodies that decode to the same document
// produce the same canonical bytes.
func (d *Document) Canonical() ([]byte, error) {
	return json.Marshal(d)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "document"
		}
		return verrors.New(verrors.ErrCodeMalformedInput, "%s: expected %s, got %s", field, typeErr.Type, typeErr.Value)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return verrors.Wrap(verrors.ErrCodeParseFailure, err, "invalid JSON at offset %d", syntaxErr.Offset)
	}
	return verrors.Wrap(verrors.ErrCodeMalformedInput, err, "decode document")
}

// String summarizes the document for logs.
func (d *Document) String() string {
	return fmt.Sprintf("document(inputs=%d outputs=%d nodes=%d edges=%d)",
		len(d.Inputs), len(d.Outputs), len(d.Nodes), len(d.Edges))
}
