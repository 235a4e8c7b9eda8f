package token

import (
	"testing"
)

func TestParse_Scalars(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
	}{
		{"null", Null},
		{"true", Bool},
		{"false", Bool},
		{"42", Number},
		{"3.5", Number},
		{`"hello"`, String},
		{"[]", Array},
		{"{}", Object},
	}
	for _, c := range cases {
		tok, err := ParseString(c.in)
		if err != nil {
			t.Fatalf("ParseString(%q): %v", c.in, err)
		}
		if tok.Kind != c.kind {
			t.Errorf("ParseString(%q).Kind = %v, want %v", c.in, tok.Kind, c.kind)
		}
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := ParseString("{not valid")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParse_ObjectPreservesFieldOrder(t *testing.T) {
	tok, err := ParseString(`{"z": 1, "a": 2, "m": 3}`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	got := tok.Keys()
	want := []string{"z", "a", "m"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGet(t *testing.T) {
	tok, _ := ParseString(`{"name": "widget", "version": "1.0.0"}`)

	v, ok := tok.Get("name")
	if !ok || v.Str != "widget" {
		t.Errorf("Get(name) = %v, %v, want widget, true", v, ok)
	}

	_, ok = tok.Get("missing")
	if ok {
		t.Error("Get(missing) reported ok=true")
	}

	var notObject Token
	notObject.Kind = String
	notObject.Str = "x"
	if _, ok := notObject.Get("x"); ok {
		t.Error("Get on a non-Object token should report ok=false")
	}
}

func TestSet_ReplacesExisting(t *testing.T) {
	tok, _ := ParseString(`{"name": "widget"}`)
	updated := tok.Set("name", Token{Kind: String, Str: "gadget"})

	v, ok := updated.Get("name")
	if !ok || v.Str != "gadget" {
		t.Errorf("after Set, Get(name) = %v, %v, want gadget, true", v, ok)
	}
	if len(updated.Fields) != 1 {
		t.Errorf("Set should not duplicate an existing key, got %d fields", len(updated.Fields))
	}
}

func TestSet_AppendsNew(t *testing.T) {
	tok, _ := ParseString(`{"name": "widget"}`)
	updated := tok.Set("version", Token{Kind: String, Str: "1.0.0"})

	if len(updated.Fields) != 2 {
		t.Fatalf("expected 2 fields after appending, got %d", len(updated.Fields))
	}
	v, ok := updated.Get("version")
	if !ok || v.Str != "1.0.0" {
		t.Errorf("Get(version) = %v, %v, want 1.0.0, true", v, ok)
	}
}

func TestSet_OnNullTreatsAsEmptyObject(t *testing.T) {
	var null Token
	updated := null.Set("key", Token{Kind: String, Str: "value"})
	if updated.Kind != Object {
		t.Fatalf("Set on Null should produce an Object, got %v", updated.Kind)
	}
	v, ok := updated.Get("key")
	if !ok || v.Str != "value" {
		t.Errorf("Get(key) = %v, %v, want value, true", v, ok)
	}
}

func TestIsNull(t *testing.T) {
	var zero Token
	if !zero.IsNull() {
		t.Error("zero-value Token should report IsNull() = true")
	}
	tok, _ := ParseString("42")
	if tok.IsNull() {
		t.Error("a Number token should not report IsNull() = true")
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	src := `{"name":"widget","version":"1.0.0","tags":["a","b"],"private":false,"extra":null}`
	tok, err := ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	out, err := Marshal(tok)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parsing marshaled output: %v", err)
	}

	name, _ := reparsed.Get("name")
	if name.Str != "widget" {
		t.Errorf("round-tripped name = %q, want widget", name.Str)
	}
	tags, _ := reparsed.Get("tags")
	if len(tags.Items) != 2 || tags.Items[0].Str != "a" || tags.Items[1].Str != "b" {
		t.Errorf("round-tripped tags = %+v, want [a b]", tags.Items)
	}
}

func TestMarshal_KeyNeedingEscape(t *testing.T) {
	tok := Token{Kind: Object, Fields: []Field{
		{Key: "a.b", Value: Token{Kind: String, Str: "v"}},
	}}
	out, err := Marshal(tok)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parsing marshaled output with dotted key: %v (raw: %s)", err, out)
	}
	v, ok := reparsed.Get("a.b")
	if !ok || v.Str != "v" {
		t.Errorf("Get(a.b) = %v, %v, want v, true", v, ok)
	}
}

func TestMarshal_ScopedPackageKeyRoundTrips(t *testing.T) {
	tok := Token{Kind: Object, Fields: []Field{
		{Key: "@types/node", Value: Token{Kind: String, Str: "^18.0.0"}},
	}}
	out, err := Marshal(tok)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parsing marshaled output with scoped key: %v (raw: %s)", err, out)
	}
	v, ok := reparsed.Get("@types/node")
	if !ok || v.Str != "^18.0.0" {
		t.Errorf("Get(@types/node) = %v, %v, want ^18.0.0, true", v, ok)
	}
}

func TestMarshalIndent_IsMultiline(t *testing.T) {
	tok, _ := ParseString(`{"a":1,"b":2}`)
	out, err := MarshalIndent(tok)
	if err != nil {
		t.Fatalf("MarshalIndent: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("MarshalIndent returned empty output")
	}
	hasNewline := false
	for _, b := range out {
		if b == '\n' {
			hasNewline = true
			break
		}
	}
	if !hasNewline {
		t.Errorf("expected indented output to contain a newline, got %s", out)
	}
}

func TestFormatNumber_Integral(t *testing.T) {
	tok := Token{Kind: Number, Num: 42}
	out, err := Marshal(tok)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != "42" {
		t.Errorf("Marshal(42.0) = %s, want 42", out)
	}
}

func TestFormatNumber_Fractional(t *testing.T) {
	tok := Token{Kind: Number, Num: 3.5}
	out, err := Marshal(tok)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != "3.5" {
		t.Errorf("Marshal(3.5) = %s, want 3.5", out)
	}
}
