package reflectbind

import (
	"testing"

	"github.com/zepo-dev/zepo/internal/token"
)

type simpleStruct struct {
	Name    string `reflectbind:"name"`
	Version string `reflectbind:"version"`
	Private bool   `reflectbind:"private,omitempty"`
}

type nestedStruct struct {
	ID   int           `reflectbind:"id"`
	Tags []string      `reflectbind:"tags"`
	Meta *simpleStruct `reflectbind:"meta"`
}

type extensionStruct struct {
	Name  string                 `reflectbind:"name"`
	Extra map[string]token.Token `reflectbind:"-,extension"`
}

func mustParse(t *testing.T, src string) token.Token {
	t.Helper()
	tok, err := token.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return tok
}

func TestParse_SimpleStruct(t *testing.T) {
	tok := mustParse(t, `{"name":"widget","version":"1.0.0","private":true}`)
	var s simpleStruct
	if err := Parse(tok, &s); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Name != "widget" || s.Version != "1.0.0" || !s.Private {
		t.Errorf("got %+v", s)
	}
}

func TestParse_NullTokenIsNoOp(t *testing.T) {
	var s simpleStruct
	if err := Parse(token.Token{Kind: token.Null}, &s); err != nil {
		t.Fatalf("Parse(null): %v", err)
	}
	if s.Name != "" {
		t.Errorf("expected zero-value struct, got %+v", s)
	}
}

func TestParse_RejectsNonPointer(t *testing.T) {
	tok := mustParse(t, `{}`)
	var s simpleStruct
	if err := Parse(tok, s); err == nil {
		t.Fatal("expected error binding to a non-pointer")
	}
}

func TestParse_RejectsNonObjectToken(t *testing.T) {
	tok := mustParse(t, `"not an object"`)
	var s simpleStruct
	if err := Parse(tok, &s); err == nil {
		t.Fatal("expected error binding an array/scalar token to a struct")
	}
}

func TestParse_MissingFieldLeavesZeroValue(t *testing.T) {
	tok := mustParse(t, `{"name":"widget"}`)
	var s simpleStruct
	if err := Parse(tok, &s); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Version != "" {
		t.Errorf("expected Version to stay zero-valued, got %q", s.Version)
	}
}

func TestParse_NestedStructAndSlice(t *testing.T) {
	tok := mustParse(t, `{"id":7,"tags":["a","b","c"],"meta":{"name":"widget","version":"1.0.0"}}`)
	var n nestedStruct
	if err := Parse(tok, &n); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n.ID != 7 {
		t.Errorf("ID = %d, want 7", n.ID)
	}
	if len(n.Tags) != 3 || n.Tags[0] != "a" || n.Tags[2] != "c" {
		t.Errorf("Tags = %v", n.Tags)
	}
	if n.Meta == nil || n.Meta.Name != "widget" {
		t.Errorf("Meta = %+v", n.Meta)
	}
}

func TestParse_ExtensionCollectsLeftoverKeys(t *testing.T) {
	tok := mustParse(t, `{"name":"widget","scripts":{"build":"make"},"license":"MIT"}`)
	var e extensionStruct
	if err := Parse(tok, &e); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.Name != "widget" {
		t.Errorf("Name = %q", e.Name)
	}
	if len(e.Extra) != 2 {
		t.Fatalf("expected 2 leftover keys, got %d: %v", len(e.Extra), e.Extra)
	}
	if _, ok := e.Extra["scripts"]; !ok {
		t.Error("expected scripts in Extra")
	}
	if _, ok := e.Extra["license"]; !ok {
		t.Error("expected license in Extra")
	}
	if _, ok := e.Extra["name"]; ok {
		t.Error("name should have been consumed by the declared field, not left in Extra")
	}
}

func TestTokenify_SimpleStruct(t *testing.T) {
	s := simpleStruct{Name: "widget", Version: "1.0.0"}
	tok, err := Tokenify(s)
	if err != nil {
		t.Fatalf("Tokenify: %v", err)
	}
	name, ok := tok.Get("name")
	if !ok || name.Str != "widget" {
		t.Errorf("Get(name) = %v, %v", name, ok)
	}
	if _, ok := tok.Get("private"); ok {
		t.Error("omitempty field Private should be omitted when zero-valued")
	}
}

func TestTokenify_RoundTrip(t *testing.T) {
	n := nestedStruct{ID: 3, Tags: []string{"x", "y"}, Meta: &simpleStruct{Name: "inner", Version: "2.0.0"}}
	tok, err := Tokenify(n)
	if err != nil {
		t.Fatalf("Tokenify: %v", err)
	}

	var back nestedStruct
	if err := Parse(tok, &back); err != nil {
		t.Fatalf("Parse of Tokenify output: %v", err)
	}
	if back.ID != 3 || len(back.Tags) != 2 || back.Meta == nil || back.Meta.Name != "inner" {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestTokenify_NilPointerProducesNull(t *testing.T) {
	n := nestedStruct{ID: 1}
	tok, err := Tokenify(n)
	if err != nil {
		t.Fatalf("Tokenify: %v", err)
	}
	meta, ok := tok.Get("meta")
	if !ok {
		t.Fatal("expected meta field to be present")
	}
	if meta.Kind != token.Null {
		t.Errorf("expected nil *simpleStruct to tokenify to Null, got %v", meta.Kind)
	}
}

func TestAtoiChecked(t *testing.T) {
	n, err := AtoiChecked("42")
	if err != nil || n != 42 {
		t.Errorf("AtoiChecked(42) = %d, %v", n, err)
	}
	if _, err := AtoiChecked("not-a-number"); err == nil {
		t.Error("expected error parsing a non-numeric string")
	}
}
