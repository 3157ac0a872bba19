package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/tidwall/gjson"
)

// ReadJSONFile reads a JSON file and unmarshals its contents into v
func ReadJSONFile(path string, v interface{}) error {
	if !fsutil.FileExists(path) {
		return fmt.Errorf("%w: %s", errors.ErrFileNotFound, path)
	}

	data, err := fsutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrUnsupportedFile, err.Error())
	}
	return nil
}

// WriteJSONFile writes v to a JSON file with indentation
func WriteJSONFile(path string, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}

	return fsutil.WriteFile(path, jsonData, 0644)
}

// Decode unmarshals a single JSON value keeping numbers as json.Number so
// that integers survive a decode/encode round trip without float formatting.
// Anything but whitespace after the value is an error.
func Decode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// Encode marshals v without HTML escaping, trimming the trailing newline
func Encode(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// GetValue looks up a dot-notation path in a JSON document. Empty segments
// are ignored, so an empty path addresses the document itself. Segments are
// literal keys, or indexes when the value is an array.
func GetValue(doc []byte, path string) (gjson.Result, bool) {
	var keys []string
	for _, key := range strings.Split(path, ".") {
		if key != "" {
			keys = append(keys, escapeKey(key))
		}
	}
	if len(keys) == 0 {
		root := gjson.ParseBytes(doc)
		return root, root.Exists()
	}

	value := gjson.GetBytes(doc, strings.Join(keys, "."))
	return value, value.Exists()
}

// escapeKey makes gjson read every ASCII symbol of key literally
func escapeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < utf8.RuneSelf && !isWordByte(c) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Compact strips insignificant whitespace from a JSON document. Key order
// and non-ASCII text are left as they are.
func Compact(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return strings.TrimSpace(raw)
	}
	return buf.String()
}
