// Package token models the intermediate JSON-shaped document that
// internal/reflectbind binds Go structs against. It exists so that
// reflectbind never touches encoding/json directly: every source
// (registry responses, manifest files, JS bridge values) is normalized
// into a Token tree first, and every sink (manifest writes, JS bridge
// calls) is produced from one.
package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Kind identifies the shape a Token holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// Token is a parsed JSON value. Exactly one of the typed fields is
// meaningful for a given Kind; Array and Object share the same
// recursive shape as encoding/json would produce from
// interface{}-typed unmarshaling, but keep object key order as seen on
// the wire instead of losing it to a map.
type Token struct {
	Kind   Kind
	Bool   bool
	Num    float64
	Str    string
	Items  []Token
	Fields []Field
}

// Field is one key/value pair of an Object token. Object preserves
// insertion order so ExtensionData round-trips deterministically.
type Field struct {
	Key   string
	Value Token
}

// Get looks up a field by key on an Object token. The second return
// value is false if the token is not an Object or has no such key.
func (t Token) Get(key string) (Token, bool) {
	if t.Kind != Object {
		return Token{}, false
	}
	for _, f := range t.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Token{}, false
}

// Set returns a copy of t with key bound to value, replacing any
// existing field with that key or appending a new one. t must be an
// Object or Null token (Null is treated as an empty object).
func (t Token) Set(key string, value Token) Token {
	if t.Kind == Null {
		t = Token{Kind: Object}
	}
	out := Token{Kind: Object, Fields: make([]Field, 0, len(t.Fields)+1)}
	replaced := false
	for _, f := range t.Fields {
		if f.Key == key {
			out.Fields = append(out.Fields, Field{Key: key, Value: value})
			replaced = true
			continue
		}
		out.Fields = append(out.Fields, f)
	}
	if !replaced {
		out.Fields = append(out.Fields, Field{Key: key, Value: value})
	}
	return out
}

// Keys returns the field names of an Object token in wire order.
func (t Token) Keys() []string {
	if t.Kind != Object {
		return nil
	}
	keys := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		keys[i] = f.Key
	}
	return keys
}

// IsNull reports whether t is the JSON null value or the Go zero Token.
func (t Token) IsNull() bool { return t.Kind == Null }

// Parse decodes a JSON byte slice into a Token tree. It is built on
// gjson rather than encoding/json so that Object field order survives
// the round trip undisturbed.
func Parse(data []byte) (Token, error) {
	if !gjson.ValidBytes(data) {
		return Token{}, fmt.Errorf("token: invalid JSON document")
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseString is the string-argument form of Parse.
func ParseString(s string) (Token, error) {
	return Parse([]byte(s))
}

func fromResult(r gjson.Result) Token {
	switch r.Type {
	case gjson.Null:
		return Token{Kind: Null}
	case gjson.True, gjson.False:
		return Token{Kind: Bool, Bool: r.Bool()}
	case gjson.Number:
		return Token{Kind: Number, Num: r.Float()}
	case gjson.String:
		return Token{Kind: String, Str: r.String()}
	case gjson.JSON:
		if r.IsArray() {
			items := make([]Token, 0)
			r.ForEach(func(_, value gjson.Result) bool {
				items = append(items, fromResult(value))
				return true
			})
			return Token{Kind: Array, Items: items}
		}
		fields := make([]Field, 0)
		r.ForEach(func(key, value gjson.Result) bool {
			fields = append(fields, Field{Key: key.String(), Value: fromResult(value)})
			return true
		})
		return Token{Kind: Object, Fields: fields}
	default:
		return Token{Kind: Null}
	}
}

// Marshal renders a Token tree back into compact JSON bytes.
func Marshal(t Token) ([]byte, error) {
	return marshalInto(nil, t)
}

// MarshalIndent renders a Token tree into human-readable indented JSON,
// matching the style the teacher's recipe tooling writes with
// tidwall/pretty.
func MarshalIndent(t Token) ([]byte, error) {
	compact, err := Marshal(t)
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(compact), nil
}

func marshalInto(buf []byte, t Token) ([]byte, error) {
	switch t.Kind {
	case Null:
		return append(buf, "null"...), nil
	case Bool:
		if t.Bool {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case Number:
		return append(buf, []byte(formatNumber(t.Num))...), nil
	case String:
		return appendQuoted(buf, t.Str), nil
	case Array:
		doc := []byte("[]")
		var err error
		for i, item := range t.Items {
			var raw []byte
			raw, err = Marshal(item)
			if err != nil {
				return nil, err
			}
			doc, err = sjson.SetRawBytes(doc, fmt.Sprintf("%d", i), raw)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, doc...), nil
	case Object:
		doc := []byte("{}")
		var err error
		for _, f := range t.Fields {
			var raw []byte
			raw, err = Marshal(f.Value)
			if err != nil {
				return nil, err
			}
			doc, err = sjson.SetRawBytes(doc, sjsonEscape(f.Key), raw)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, doc...), nil
	default:
		return nil, fmt.Errorf("token: unknown kind %d", t.Kind)
	}
}

// sjsonEscape backslash-escapes sjson path metacharacters in an object
// key (".", "*", "?", "|", "#", "@", ":", and "\" itself) so sjson
// treats the key as a literal rather than as path syntax. Without this,
// a key like "@types/node" would be parsed by sjson as the "@types"
// modifier applied to "node".
func sjsonEscape(key string) string {
	if !strings.ContainsAny(key, `.*?|#@:\`) {
		return key
	}
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', ':', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func appendQuoted(buf []byte, s string) []byte {
	// json.Marshal on a string only ever does string-literal quoting/escaping;
	// it is not used anywhere here for document-shaped encoding.
	quoted, _ := json.Marshal(s)
	return append(buf, quoted...)
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
