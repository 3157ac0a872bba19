// Package resolver turns a workflow result and an output column path into
// the text shown in a cell.
package resolver

import (
	"bytes"

	"github.com/deploymenttheory/go-batch-runner/internal/common/jsonutil"
	"github.com/tidwall/gjson"
)

// FallbackKeys are tried in order at the top level of a result when the
// declared path yields nothing
var FallbackKeys = []string{"output", "result", "content", "answer", "data"}

// Resolve looks up path in the JSON object result and renders it as a
// string. An empty path addresses the whole result. When the path misses it
// tries FallbackKeys, and when those miss too it returns the whole result as
// compact JSON in its original key order, so a resolved cell is never blank.
func Resolve(result []byte, path string) string {
	if len(bytes.TrimSpace(result)) == 0 || !gjson.ValidBytes(result) {
		result = []byte("{}")
	}

	if value, ok := jsonutil.GetValue(result, path); ok {
		if s, ok := render(value); ok {
			return s
		}
	}

	root := gjson.ParseBytes(result)
	for _, key := range FallbackKeys {
		if s, ok := render(root.Get(key)); ok {
			return s
		}
	}

	return jsonutil.Compact(string(result))
}

// render stringifies a JSON value. It reports false for values that count
// as empty: missing, null and the empty string. Numbers keep the form the
// upstream wrote them in.
func render(value gjson.Result) (string, bool) {
	switch value.Type {
	case gjson.Null:
		return "", false
	case gjson.String:
		return value.Str, value.Str != ""
	case gjson.Number, gjson.True, gjson.False:
		return value.Raw, true
	default:
		return jsonutil.Compact(value.Raw), true
	}
}
