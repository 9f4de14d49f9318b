package document

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

const chainDoc = `{
	"inputs":  [{"name": "A"}],
	"outputs": [{"name": "C"}],
	"nodes":   [{"name": "B"}],
	"edges":   [{"from": "A", "to": "B"}, {"from": {"kind": "node", "name": "B"}, "to": {"kind": "output", "name": "C"}}]
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(chainDoc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if len(doc.Inputs) != 1 || doc.Inputs[0].Name != "A" {
		t.Errorf("Inputs = %+v, want [A]", doc.Inputs)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Name != "B" {
		t.Errorf("Nodes = %+v, want [B]", doc.Nodes)
	}
	if len(doc.Outputs) != 1 || doc.Outputs[0].Name != "C" {
		t.Errorf("Outputs = %+v, want [C]", doc.Outputs)
	}
	if len(doc.Edges) != 2 {
		t.Fatalf("Edges = %d, want 2", len(doc.Edges))
	}

	if got := doc.Edges[0].From; got != (Ref{Name: "A"}) {
		t.Errorf("Edges[0].From = %+v, want bare ref A", got)
	}
	if got := doc.Edges[1].To; got != (Ref{Kind: KindOutput, Name: "C"}) {
		t.Errorf("Edges[1].To = %+v, want output C", got)
	}
	if doc.EntityCount() != 3 {
		t.Errorf("EntityCount() = %d, want 3", doc.EntityCount())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode verrors.Code
		wantMsg  string
	}{
		{"empty body", "", verrors.ErrCodeParseFailure, "empty"},
		{"whitespace body", "  \n ", verrors.ErrCodeParseFailure, "empty"},
		{"not json", "not json", verrors.ErrCodeParseFailure, "invalid JSON"},
		{"truncated", `{"inputs": [`, verrors.ErrCodeParseFailure, "invalid JSON"},
		{"array", `[1, 2]`, verrors.ErrCodeMalformedInput, "JSON object"},
		{"string", `"graph"`, verrors.ErrCodeMalformedInput, "JSON object"},
		{"null", `null`, verrors.ErrCodeMalformedInput, "JSON object"},
		{"missing nodes", `{"inputs": [], "outputs": []}`, verrors.ErrCodeMalformedInput, "nodes: collection is required"},
		{"missing all", `{}`, verrors.ErrCodeMalformedInput, "inputs: collection is required"},
		{"null collection", `{"inputs": null, "outputs": [], "nodes": []}`, verrors.ErrCodeMalformedInput, "inputs"},
		{"nodes not a list", `{"inputs": [], "outputs": [], "nodes": {}}`, verrors.ErrCodeMalformedInput, "nodes"},
		{"name not a string", `{"inputs": [{"name": 3}], "outputs": [], "nodes": []}`, verrors.ErrCodeMalformedInput, "inputs.name"},
		{"missing name", `{"inputs": [], "outputs": [], "nodes": [{"type": "Relu"}]}`, verrors.ErrCodeMalformedInput, "nodes[0].name: field is required"},
		{"control char in name", `{"inputs": [{"name": "a\u0000b"}], "outputs": [], "nodes": []}`, verrors.ErrCodeMalformedInput, "control"},
		{"bad edge kind", `{"inputs": [], "outputs": [], "nodes": [], "edges": [{"from": {"kind": "tensor", "name": "a"}, "to": "b"}]}`, verrors.ErrCodeMalformedInput, "must be one of"},
		{"edge without target", `{"inputs": [], "outputs": [], "nodes": [], "edges": [{"from": "a"}]}`, verrors.ErrCodeMalformedInput, "edges[0].to.name"},
		{"edge ref number", `{"inputs": [], "outputs": [], "nodes": [], "edges": [{"from": 1, "to": "b"}]}`, verrors.ErrCodeMalformedInput, ""},
		{"op type number", `{"inputs": [], "outputs": [], "nodes": [{"name": "n", "type": 7}]}`, verrors.ErrCodeMalformedInput, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.body))
			if err == nil {
				t.Fatalf("Parse() = %+v, want error", doc)
			}
			if code := verrors.GetCode(err); code != tt.wantCode {
				t.Errorf("code = %v, want %v (err: %v)", code, tt.wantCode, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseEmptyCollections(t *testing.T) {
	doc, err := Parse([]byte(`{"inputs": [], "outputs": [], "nodes": []}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if doc.EntityCount() != 0 {
		t.Errorf("EntityCount() = %d, want 0", doc.EntityCount())
	}
}

func TestParseToleratesMetadata(t *testing.T) {
	body := `{
		"inputs": [{"name": "x", "type": "float32", "shape": [1, "N", 224], "output_names": ["conv"],
		            "arguments": [{"name": "x", "type": "float32", "shape": [1, 3]}]}],
		"outputs": [{"name": "y", "type": {"dtype": "float32"}, "input_names": ["conv"], "arguments": [{"name": "y"}]}],
		"nodes": [{"name": "conv", "type": {"name": "Conv"}, "width": 120, "height": 40,
		           "inputs": [{"name": "X", "arguments": [{"name": "x", "shape": "(1, 3)", "initializer": false}]}],
		           "outputs": [{"name": "Y", "arguments": [{"name": "y"}]}],
		           "unknown_field": {"ignored": true}}]
	}`

	doc, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	n := doc.Nodes[0]
	if n.Type.Name != "Conv" {
		t.Errorf("Type.Name = %q, want Conv", n.Type.Name)
	}
	if !n.HasHint() || *n.Width != 120 || *n.Height != 40 {
		t.Errorf("size hint = %+v, want 120x40", n.Size)
	}
	if doc.Inputs[0].HasHint() {
		t.Error("input should have no size hint")
	}
}

func TestOpTypeForms(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"inputs": [], "outputs": [], "nodes": [{"name": "n", "type": "Relu"}]}`, "Relu"},
		{`{"inputs": [], "outputs": [], "nodes": [{"name": "n", "type": {"name": "Relu"}}]}`, "Relu"},
		{`{"inputs": [], "outputs": [], "nodes": [{"name": "n", "type": null}]}`, ""},
		{`{"inputs": [], "outputs": [], "nodes": [{"name": "n"}]}`, ""},
	}

	for _, tt := range tests {
		doc, err := Parse([]byte(tt.body))
		if err != nil {
			t.Fatalf("Parse(%s) error: %v", tt.body, err)
		}
		if got := doc.Nodes[0].Type.Name; got != tt.want {
			t.Errorf("Parse(%s) type = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestRead(t *testing.T) {
	doc, err := Read(strings.NewReader(chainDoc))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if doc.EntityCount() != 3 {
		t.Errorf("EntityCount() = %d, want 3", doc.EntityCount())
	}
}

func TestCanonical(t *testing.T) {
	a, err := Parse([]byte(`{"inputs":[{"name":"x","shape":[1,3]}],"outputs":[],"nodes":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse([]byte("{\n  \"nodes\": [],\n  \"outputs\": [],\n  \"inputs\": [ { \"shape\": [ 1, 3 ], \"name\": \"x\" } ]\n}"))
	if err != nil {
		t.Fatal(err)
	}

	ca, err := a.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	cb, err := b.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ca, cb) {
		t.Errorf("Canonical() differs:\n%s\n%s", ca, cb)
	}

	c, err := Parse([]byte(`{"inputs":[{"name":"z"}],"outputs":[],"nodes":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	cc, _ := c.Canonical()
	if bytes.Equal(ca, cc) {
		t.Error("different documents should have different canonical forms")
	}
}

func TestConnectivity(t *testing.T) {
	doc, err := Parse([]byte(`{
		"inputs": [{"name": "img", "arguments": [{"name": "img:0"}]}, {"name": "bare"}],
		"outputs": [{"name": "prob", "arguments": [{"name": "prob:0"}]}, {"name": "plain"}],
		"nodes": [
			{"name": "conv",
			 "inputs": [{"name": "X", "arguments": [{"name": "img:0"}, {"name": "W", "initializer": true}, {"name": ""}]}],
			 "outputs": [{"name": "Y", "arguments": [{"name": "conv:0"}]}],
			 "controlDependencies": [{"name": "bare"}]},
			{"name": "fused",
			 "inputs": [{"name": "X", "arguments": [{"name": "conv:0"}]}],
			 "outputs": [{"name": "Y", "arguments": [{"name": "unused"}]}],
			 "chain": [{"name": "", "outputs": []}, {"name": "", "outputs": [{"name": "Y", "arguments": [{"name": "prob:0"}]}]}]}
		]
	}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"input with arguments", doc.Inputs[0].Produces(), []string{"img:0"}},
		{"bare input", doc.Inputs[1].Produces(), []string{"bare"}},
		{"output with arguments", doc.Outputs[0].Consumes(), []string{"prob:0"}},
		{"bare output consumes nothing", doc.Outputs[1].Consumes(), nil},
		{"node consumes", doc.Nodes[0].Consumes(), []string{"img:0", "bare"}},
		{"node produces", doc.Nodes[0].Produces(), []string{"conv:0"}},
		{"chain replaces outputs", doc.Nodes[1].Produces(), []string{"prob:0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !slices.Equal(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestRefString(t *testing.T) {
	if got := (Ref{Name: "a"}).String(); got != `"a"` {
		t.Errorf("String() = %s", got)
	}
	if got := (Ref{Kind: KindNode, Name: "a"}).String(); got != `node "a"` {
		t.Errorf("String() = %s", got)
	}
}
