// Package reflectbind binds Go structs to an internal/token.Token tree
// using struct tags, mirroring the field-attribute reflection contract
// of the original system's serialize/Reflect.hpp: every bound field can
// carry a wire Name distinct from its Go identifier, and at most one
// field per struct can be marked as the catch-all for keys the struct
// doesn't otherwise declare (ExtensionData).
//
// Parsing is two-pass: the first pass binds every declared field, the
// second collects leftover object keys into the extension field, if
// one is declared. A type that wants to intercept parsing itself
// (rather than have every field bound mechanically) implements
// TokenParser.
package reflectbind

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/zepo-dev/zepo/internal/token"
)

// tag is the struct tag key reflectbind reads: `reflectbind:"name,opts"`.
const tag = "reflectbind"

// TokenParser lets a type override the mechanical field-by-field bind
// with custom logic, the way the original's PackagePaths::parse did for
// its array/string/null three-shape field.
type TokenParser interface {
	ParseToken(t token.Token) error
}

// TokenWriter is the Tokenify-side counterpart of TokenParser.
type TokenWriter interface {
	WriteToken() (token.Token, error)
}

// Parse binds the object token t onto the struct pointed to by dst.
func Parse(t token.Token, dst interface{}) error {
	if tp, ok := dst.(TokenParser); ok {
		return tp.ParseToken(t)
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("reflectbind: Parse requires a pointer to struct, got %T", dst)
	}
	if t.Kind == token.Null {
		return nil
	}
	if t.Kind != token.Object {
		return fmt.Errorf("reflectbind: cannot bind %v token to struct %s", t.Kind, rv.Elem().Type())
	}

	consumed := make(map[string]bool, len(t.Fields))
	sv := rv.Elem()
	st := sv.Type()

	extIndex := -1

	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if sf.PkgPath != "" && !sf.Anonymous {
			continue // unexported
		}
		name, opts := parseTag(sf)
		if opts.extension {
			extIndex = i
			continue
		}
		if name == "-" {
			continue
		}
		fv, ok := t.Get(name)
		if !ok {
			continue
		}
		consumed[name] = true
		if err := bindValue(sv.Field(i), fv); err != nil {
			return fmt.Errorf("reflectbind: field %s.%s: %w", st.Name(), sf.Name, err)
		}
	}

	if extIndex >= 0 {
		extra := make(map[string]token.Token)
		for _, f := range t.Fields {
			if !consumed[f.Key] {
				extra[f.Key] = f.Value
			}
		}
		sv.Field(extIndex).Set(reflect.ValueOf(extra))
	}

	return nil
}

// Tokenify produces a Token tree from a struct value, the inverse of Parse.
// Non-struct values (maps, slices, scalars) are tokenified directly.
func Tokenify(src interface{}) (token.Token, error) {
	if tw, ok := src.(TokenWriter); ok {
		return tw.WriteToken()
	}

	rv := reflect.ValueOf(src)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return token.Token{Kind: token.Null}, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return tokenifyValue(rv)
	}

	st := rv.Type()
	out := token.Token{Kind: token.Object}

	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if sf.PkgPath != "" && !sf.Anonymous {
			continue
		}
		name, opts := parseTag(sf)
		fv := rv.Field(i)

		if opts.extension {
			if fv.Kind() != reflect.Map {
				continue
			}
			iter := fv.MapRange()
			for iter.Next() {
				out = out.Set(iter.Key().String(), iter.Value().Interface().(token.Token))
			}
			continue
		}
		if name == "-" {
			continue
		}
		if opts.omitempty && fv.IsZero() {
			continue
		}
		valTok, err := tokenifyValue(fv)
		if err != nil {
			return token.Token{}, fmt.Errorf("reflectbind: field %s.%s: %w", st.Name(), sf.Name, err)
		}
		out = out.Set(name, valTok)
	}

	return out, nil
}

type fieldOpts struct {
	extension bool
	omitempty bool
}

func parseTag(sf reflect.StructField) (string, fieldOpts) {
	raw, ok := sf.Tag.Lookup(tag)
	name := sf.Name
	var opts fieldOpts
	if !ok {
		return lowerFirst(name), opts
	}
	parts := strings.Split(raw, ",")
	if parts[0] != "" {
		name = parts[0]
	} else {
		name = lowerFirst(name)
	}
	for _, p := range parts[1:] {
		switch p {
		case "extension":
			opts.extension = true
		case "omitempty":
			opts.omitempty = true
		}
	}
	return name, opts
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func bindValue(fv reflect.Value, t token.Token) error {
	if fv.Kind() == reflect.Ptr {
		if t.Kind == token.Null {
			return nil
		}
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		return bindValue(fv.Elem(), t)
	}

	if fv.CanAddr() {
		if tp, ok := fv.Addr().Interface().(TokenParser); ok {
			return tp.ParseToken(t)
		}
	}

	switch fv.Kind() {
	case reflect.String:
		if t.Kind != token.String {
			return fmt.Errorf("expected string token, got %v", t.Kind)
		}
		fv.SetString(t.Str)
	case reflect.Bool:
		if t.Kind != token.Bool {
			return fmt.Errorf("expected bool token, got %v", t.Kind)
		}
		fv.SetBool(t.Bool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t.Kind != token.Number {
			return fmt.Errorf("expected number token, got %v", t.Kind)
		}
		fv.SetInt(int64(t.Num))
	case reflect.Float32, reflect.Float64:
		if t.Kind != token.Number {
			return fmt.Errorf("expected number token, got %v", t.Kind)
		}
		fv.SetFloat(t.Num)
	case reflect.Slice:
		if t.Kind == token.Null {
			return nil
		}
		if t.Kind != token.Array {
			return fmt.Errorf("expected array token, got %v", t.Kind)
		}
		sl := reflect.MakeSlice(fv.Type(), len(t.Items), len(t.Items))
		for i, item := range t.Items {
			if err := bindValue(sl.Index(i), item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		fv.Set(sl)
	case reflect.Map:
		if t.Kind == token.Null {
			return nil
		}
		if t.Kind != token.Object {
			return fmt.Errorf("expected object token, got %v", t.Kind)
		}
		m := reflect.MakeMapWithSize(fv.Type(), len(t.Fields))
		for _, f := range t.Fields {
			elem := reflect.New(fv.Type().Elem()).Elem()
			if err := bindValue(elem, f.Value); err != nil {
				return fmt.Errorf("[%q]: %w", f.Key, err)
			}
			m.SetMapIndex(reflect.ValueOf(f.Key), elem)
		}
		fv.Set(m)
	case reflect.Struct:
		sub := reflect.New(fv.Type())
		if err := Parse(t, sub.Interface()); err != nil {
			return err
		}
		fv.Set(sub.Elem())
	case reflect.Interface:
		fv.Set(reflect.ValueOf(t))
	default:
		return fmt.Errorf("unsupported field kind %v", fv.Kind())
	}
	return nil
}

func tokenifyValue(fv reflect.Value) (token.Token, error) {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return token.Token{Kind: token.Null}, nil
		}
		return tokenifyValue(fv.Elem())
	}
	if fv.CanAddr() {
		if tw, ok := fv.Addr().Interface().(TokenWriter); ok {
			return tw.WriteToken()
		}
	}
	switch fv.Kind() {
	case reflect.Struct:
		return Tokenify(fv.Interface())
	case reflect.Slice:
		items := make([]token.Token, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			it, err := tokenifyValue(fv.Index(i))
			if err != nil {
				return token.Token{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = it
		}
		return token.Token{Kind: token.Array, Items: items}, nil
	case reflect.Map:
		out := token.Token{Kind: token.Object}
		iter := fv.MapRange()
		for iter.Next() {
			v, err := tokenifyValue(iter.Value())
			if err != nil {
				return token.Token{}, err
			}
			out = out.Set(fmt.Sprint(iter.Key().Interface()), v)
		}
		return out, nil
	default:
		return tokenifyScalar(fv)
	}
}

func tokenifyScalar(fv reflect.Value) (token.Token, error) {
	switch fv.Kind() {
	case reflect.String:
		return token.Token{Kind: token.String, Str: fv.String()}, nil
	case reflect.Bool:
		return token.Token{Kind: token.Bool, Bool: fv.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return token.Token{Kind: token.Number, Num: float64(fv.Int())}, nil
	case reflect.Float32, reflect.Float64:
		return token.Token{Kind: token.Number, Num: fv.Float()}, nil
	case reflect.Invalid:
		return token.Token{Kind: token.Null}, nil
	default:
		return token.Token{}, fmt.Errorf("reflectbind: cannot tokenify kind %v", fv.Kind())
	}
}

// AtoiChecked parses s as a decimal int, for TokenParser
// implementations that need to validate a sub-token manually.
func AtoiChecked(s string) (int, error) {
	return strconv.Atoi(s)
}
