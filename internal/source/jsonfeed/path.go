package jsonfeed

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Resolve walks a dot separated path through nested objects. Traversal
// stops with ok=false as soon as an intermediate value is not an object or
// a key is missing. Keys are matched literally, so gjson wildcard and
// modifier characters in feed data carry no special meaning.
func Resolve(obj gjson.Result, path string) (gjson.Result, bool) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." || path == "$" {
		return obj, obj.Exists()
	}

	cur := obj
	for _, key := range strings.Split(path, ".") {
		if !cur.IsObject() {
			return gjson.Result{}, false
		}
		var next gjson.Result
		found := false
		cur.ForEach(func(k, v gjson.Result) bool {
			if k.String() == key {
				next, found = v, true
				return false
			}
			return true
		})
		if !found {
			return gjson.Result{}, false
		}
		cur = next
	}
	return cur, true
}

// String resolves path and returns its string form for scalar values
func String(obj gjson.Result, path string) string {
	v, ok := Resolve(obj, path)
	if !ok {
		return ""
	}
	switch v.Type {
	case gjson.String, gjson.Number:
		return strings.TrimSpace(v.String())
	}
	return ""
}
