package viewgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Response Serialization API
// =============================================================================

// MarshalResponse encodes a response as compact JSON, the wire form returned
// by the server. Map keys are sorted by encoding/json, so output is
// deterministic.
func MarshalResponse(r Response) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// UnmarshalResponse decodes a response. Missing sections decode as empty maps.
func UnmarshalResponse(data []byte) (Response, error) {
	r := NewResponse()
	if err := json.Unmarshal(data, &r); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	for _, c := range Categories {
		if r.Section(c) == nil {
			r.setSection(c, make(map[string]Point))
		}
	}
	return r, nil
}

// WriteResponse writes a response as indented JSON to w.
func WriteResponse(r Response, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteResponseFile writes a response to a JSON file.
func WriteResponseFile(r Response, path string) error {
	var buf bytes.Buffer
	if err := WriteResponse(r, &buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ReadResponse decodes a response from r.
func ReadResponse(r io.Reader) (Response, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Response{}, fmt.Errorf("read: %w", err)
	}
	return UnmarshalResponse(data)
}

// ReadResponseFile reads a response from a JSON file.
func ReadResponseFile(path string) (Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Response{}, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalResponse(data)
}

// =============================================================================
// Internal Implementation
// =============================================================================

func (r *Response) setSection(c Category, m map[string]Point) {
	switch c {
	case CategoryInput:
		r.Inputs = m
	case CategoryOutput:
		r.Outputs = m
	case CategoryNode:
		r.Nodes = m
	}
}
