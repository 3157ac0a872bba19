package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/urlutil"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/google/shlex"
	"github.com/tidwall/gjson"
)

// RequestMetadata is what a request sample reveals besides its parameters
type RequestMetadata struct {
	WorkflowID string `json:"workflowId,omitempty"`
	APIToken   string `json:"apiToken,omitempty"`
}

var (
	bearerRegex = regexp.MustCompile(`(?i)Authorization:\s*Bearer\s+([a-zA-Z0-9_\-\.]+)`)

	// used when the shell lexer rejects the command, e.g. unbalanced quotes
	dataArgRegex = regexp.MustCompile(`(?:-d|--data(?:-raw|-binary|-ascii)?)\s+(?:'([^']*)'|"((?:[^"\\]|\\.)*)")`)

	dataFlags = map[string]bool{
		"-d":            true,
		"--data":        true,
		"--data-raw":    true,
		"--data-binary": true,
		"--data-ascii":  true,
	}
)

// fallbackDataKeys are the envelope keys a response payload may sit under,
// in lookup order
var fallbackDataKeys = []string{"data", "content"}

// ParseRequestMetadata extracts the workflow id from the request body and a
// bearer token from the headers. Either may be missing; it never fails.
func ParseRequestMetadata(sample string) RequestMetadata {
	var meta RequestMetadata

	if payload, err := extractPayload(sample); err == nil && gjson.Valid(payload) {
		root := gjson.Parse(payload)
		wf := root.Get("workflow_id")
		if !wf.Exists() || wf.Type == gjson.Null {
			wf = root.Get("workflowId")
		}
		if wf.Type == gjson.String && strings.TrimSpace(wf.Str) != "" {
			meta.WorkflowID = strings.TrimSpace(wf.Str)
		}
	}

	if match := bearerRegex.FindStringSubmatch(sample); match != nil {
		meta.APIToken = match[1]
	}

	return meta
}

// ParseInputColumns derives input columns from the parameters object of the
// request body, in document order. Without a parameters object every
// top-level body key becomes a text column. Returns nil when the sample
// cannot be parsed.
func ParseInputColumns(sample string) []InputColumn {
	payload, err := extractPayload(sample)
	if err != nil {
		logger.LogWarn("Could not infer input columns", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if !gjson.Valid(payload) {
		logger.LogWarn("Could not infer input columns", map[string]interface{}{
			"error": fmt.Sprintf("%s: request body is not valid JSON", errors.ErrInferenceFailed),
		})
		return nil
	}

	root := gjson.Parse(payload)
	if !root.IsObject() {
		logger.LogWarn("Could not infer input columns", map[string]interface{}{
			"error": fmt.Sprintf("%s: request body is not a JSON object", errors.ErrInferenceFailed),
		})
		return nil
	}

	params := root.Get("parameters")
	if !params.IsObject() {
		var cols []InputColumn
		forEachKey(root, func(key string, _ gjson.Result) {
			cols = append(cols, InputColumn{Key: key, Label: key, Type: TypeText})
		})
		return cols
	}

	var cols []InputColumn
	forEachKey(params, func(key string, value gjson.Result) {
		colType := TypeText
		if value.Type == gjson.String && urlutil.IsFileURL(value.Str) {
			colType = TypeFile
		}
		cols = append(cols, InputColumn{Key: key, Label: key, Type: colType})
	})
	return cols
}

// ParseOutputColumns derives output columns from a sample response. The
// payload is taken from data, then content, then the whole document; a
// payload that is itself JSON encoded as a string is decoded once more.
// Returns nil when the sample cannot be parsed.
func ParseOutputColumns(sample string) []OutputColumn {
	if !gjson.Valid(sample) {
		logger.LogWarn("Could not infer output columns", map[string]interface{}{
			"error": fmt.Sprintf("%s: response is not valid JSON", errors.ErrInferenceFailed),
		})
		return nil
	}

	root := gjson.Parse(sample)
	payload := root
	if root.IsObject() {
		for _, key := range fallbackDataKeys {
			if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
				payload = v
				break
			}
		}
	}

	var cols []OutputColumn
	seen := make(map[string]bool)
	for _, leaf := range flattenPayload(payload) {
		key := KeyForPath(leaf.path)
		if seen[key] {
			continue
		}
		seen[key] = true
		cols = append(cols, OutputColumn{
			Key:   key,
			Path:  leaf.path,
			Label: leaf.path,
			Type:  classifyLeaf(leaf.value),
		})
	}
	return cols
}

type leaf struct {
	path  string
	value gjson.Result
}

// flattenPayload normalizes the payload into an object and flattens it. A
// payload that is not an object, or a string that does not decode to one,
// is reported as a single leaf named data.
func flattenPayload(payload gjson.Result) []leaf {
	switch {
	case payload.Type == gjson.Null:
		return nil
	case payload.IsObject():
		return flatten(payload, "")
	case payload.Type == gjson.String:
		trimmed := strings.TrimSpace(payload.Str)
		if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && gjson.Valid(payload.Str) {
			decoded := gjson.Parse(payload.Str)
			if decoded.IsObject() {
				return flatten(decoded, "")
			}
			return []leaf{{path: "data", value: decoded}}
		}
		return []leaf{{path: "data", value: payload}}
	default:
		return []leaf{{path: "data", value: payload}}
	}
}

// flatten expands nested objects into dotted paths. Arrays and scalars end
// the descent. Objects under data or content are descended into without
// adding a segment.
func flatten(obj gjson.Result, prefix string) []leaf {
	var out []leaf
	forEachKey(obj, func(key string, value gjson.Result) {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if value.IsObject() {
			if key == "data" || key == "content" {
				out = append(out, flatten(value, prefix)...)
			} else {
				out = append(out, flatten(value, path)...)
			}
			return
		}
		out = append(out, leaf{path: path, value: value})
	})
	return out
}

func classifyLeaf(value gjson.Result) ColumnType {
	if value.Type != gjson.String || strings.TrimSpace(value.Str) == "" {
		return TypeText
	}
	if urlutil.IsFileURL(value.Str) {
		return TypeFile
	}
	if urlutil.IsHTTPURL(value.Str) {
		return TypeLink
	}
	return TypeText
}

// forEachKey visits object members in document order, skipping repeated keys
func forEachKey(obj gjson.Result, fn func(key string, value gjson.Result)) {
	seen := make(map[string]bool)
	obj.ForEach(func(key, value gjson.Result) bool {
		if !seen[key.Str] {
			seen[key.Str] = true
			fn(key.Str, value)
		}
		return true
	})
}

// extractPayload returns the body of the -d/--data argument of a curl
// command with escaped newlines removed
func extractPayload(sample string) (string, error) {
	body, ok := dataArgFromTokens(sample)
	if !ok {
		body, ok = dataArgFromRegex(sample)
	}
	if !ok || strings.TrimSpace(body) == "" {
		return "", errors.ErrNoPayload
	}
	return strings.ReplaceAll(body, `\n`, ""), nil
}

func dataArgFromTokens(sample string) (string, bool) {
	tokens, err := shlex.Split(sample)
	if err != nil {
		return "", false
	}
	for i, tok := range tokens {
		if dataFlags[tok] && i+1 < len(tokens) {
			return tokens[i+1], true
		}
		if eq := strings.IndexByte(tok, '='); eq > 0 && dataFlags[tok[:eq]] && strings.HasPrefix(tok, "--") {
			return tok[eq+1:], true
		}
	}
	return "", false
}

func dataArgFromRegex(sample string) (string, bool) {
	match := dataArgRegex.FindStringSubmatch(sample)
	if match == nil {
		return "", false
	}
	if match[1] != "" {
		return match[1], true
	}
	return strings.ReplaceAll(match[2], `\"`, `"`), true
}
