// Package security holds client-side guardrails: log redaction, rate limiting,
// HTML and SQL heuristics, and anomaly counting over recent security events.
//
// None of it replaces server-side authorization. Detectors flag input for
// logging and never rewrite it.
package security

import (
	"fmt"
	"reflect"
	"strings"
)

// RedactionMarker replaces the value of every sensitive key
const RedactionMarker = "[REDACTED]"

// sensitiveFragments are matched as lowercase substrings of key names
var sensitiveFragments = []string{"password", "token", "key", "secret", "auth", "credential"}

// IsSensitiveKey reports whether a key name looks like it holds a secret.
// Only the name is inspected.
func IsSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// CycleMarker replaces a reference back to a container that is already
// being sanitized
const CycleMarker = "[CIRCULAR]"

// Sanitize returns a copy of data with the value of every sensitive key
// replaced by RedactionMarker, at any depth. The input is never modified.
//
// Maps keyed by strings and structs become map[string]any when they are not
// one of the common map shapes, slices and arrays become []any. Scalars,
// errors and fmt.Stringer values are returned unchanged. Self-referencing
// maps, slices and pointers are cut at the repeat with CycleMarker. Value
// content is not inspected: a token stored under an innocuous key name
// passes through.
func Sanitize(data any) any {
	s := sanitizer{active: make(map[visit]struct{})}
	return s.sanitize(data)
}

// visit identifies a container on the current path
type visit struct {
	ptr uintptr
	typ reflect.Type
}

type sanitizer struct {
	active map[visit]struct{}
}

// enter marks v as on the current path; false means v is already on it
func (s *sanitizer) enter(v reflect.Value) (visit, bool) {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if key.ptr == 0 {
		return key, true
	}
	if _, ok := s.active[key]; ok {
		return key, false
	}
	s.active[key] = struct{}{}
	return key, true
}

func (s *sanitizer) leave(key visit) {
	delete(s.active, key)
}

func (s *sanitizer) sanitize(data any) any {
	switch v := data.(type) {
	case nil:
		return nil
	case string, bool, int, int64, float64:
		return v
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if IsSensitiveKey(k) {
				out[k] = RedactionMarker
				continue
			}
			out[k] = val
		}
		return out
	}
	if _, ok := data.(error); ok {
		return data
	}
	if _, ok := data.(fmt.Stringer); ok {
		return data
	}
	return s.sanitizeReflect(reflect.ValueOf(data))
}

func (s *sanitizer) sanitizeReflect(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v.Interface()
		}
		key, ok := s.enter(v)
		if !ok {
			return CycleMarker
		}
		defer s.leave(key)
		return s.sanitize(v.Elem().Interface())

	case reflect.Interface:
		if v.IsNil() {
			return v.Interface()
		}
		return s.sanitize(v.Elem().Interface())

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface()
		}
		key, ok := s.enter(v)
		if !ok {
			return CycleMarker
		}
		defer s.leave(key)

		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if IsSensitiveKey(k) {
				out[k] = RedactionMarker
				continue
			}
			out[k] = s.sanitize(iter.Value().Interface())
		}
		return out

	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		if v.Kind() == reflect.Slice {
			if v.IsNil() {
				return v.Interface()
			}
			key, ok := s.enter(v)
			if !ok {
				return CycleMarker
			}
			defer s.leave(key)
		}
		if v.Type() == reflect.TypeOf([]map[string]any(nil)) {
			out := make([]map[string]any, v.Len())
			for i := 0; i < v.Len(); i++ {
				out[i], _ = s.sanitize(v.Index(i).Interface()).(map[string]any)
			}
			return out
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = s.sanitize(v.Index(i).Interface())
		}
		return out

	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := fieldName(field)
			if name == "-" {
				continue
			}
			if IsSensitiveKey(name) || IsSensitiveKey(field.Name) {
				out[name] = RedactionMarker
				continue
			}
			out[name] = s.sanitize(v.Field(i).Interface())
		}
		return out
	}

	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

// fieldName prefers the json tag so sanitized structs log like their JSON form
func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

// SanitizeKV applies Sanitize to logger key/value pairs: values under
// sensitive keys become RedactionMarker and other values are sanitized
// recursively. It has the logging.KVRedactor signature.
func SanitizeKV(keyValues ...interface{}) []interface{} {
	out := make([]interface{}, len(keyValues))
	copy(out, keyValues)
	for i := 0; i+1 < len(out); i += 2 {
		if name, ok := out[i].(string); ok && IsSensitiveKey(name) {
			out[i+1] = RedactionMarker
			continue
		}
		out[i+1] = Sanitize(out[i+1])
	}
	return out
}
