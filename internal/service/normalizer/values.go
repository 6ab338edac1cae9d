package normalizer

import (
	"strings"

	"github.com/tidwall/gjson"
)

// present applies JavaScript truthiness: missing, null, "", false and 0 are
// absent; any array or object counts, even when empty.
func present(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	default:
		return true
	}
}

// first returns the first present candidate, or an empty result.
func first(candidates ...gjson.Result) gjson.Result {
	for _, c := range candidates {
		if present(c) {
			return c
		}
	}
	return gjson.Result{}
}

// text renders a value as display text. Numbers keep their source spelling.
// Objects yield their text/content/message member, otherwise their raw JSON.
func text(r gjson.Result) string {
	if !present(r) {
		return ""
	}
	switch {
	case r.Type == gjson.String:
		return r.Str
	case r.Type == gjson.Number:
		return r.Raw
	case r.Type == gjson.True:
		return "true"
	case r.IsObject():
		if inner := first(r.Get("text"), r.Get("content"), r.Get("message")); inner.Exists() {
			return text(inner)
		}
		return r.Raw
	default:
		return r.Raw
	}
}

func textOr(r gjson.Result, def string) string {
	if s := text(r); s != "" {
		return s
	}
	return def
}

// array returns the elements when r is a JSON array, otherwise nil.
func array(r gjson.Result) []gjson.Result {
	if !r.IsArray() {
		return nil
	}
	return r.Array()
}

// firstArray picks the first candidate that is a JSON array.
func firstArray(candidates ...gjson.Result) []gjson.Result {
	for _, c := range candidates {
		if c.IsArray() {
			return c.Array()
		}
	}
	return nil
}

func int64Of(r gjson.Result) int64 {
	if r.Type == gjson.Number || r.Type == gjson.String {
		return r.Int()
	}
	return 0
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
