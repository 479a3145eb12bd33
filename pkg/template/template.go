// Package template provides placeholder interpolation for message bodies
// and webhook payloads.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Interpolate replaces every {{dotted.path}} occurrence in the template
// with the string form of the value found by walking the dotted path
// through ctx. A path that does not resolve leaves the placeholder text
// unchanged, so partially-resolvable templates stay visibly incomplete.
// Single pass, no escaping, no nested interpolation.
func Interpolate(tmpl string, ctx map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])

		value, ok := Lookup(ctx, path)
		if !ok {
			return match
		}

		return Stringify(value)
	})
}

// Lookup walks a dotted path through nested map[string]any values.
// The second return is false when any path segment is missing or the
// intermediate value is not a map.
func Lookup(ctx map[string]any, path string) (any, bool) {
	var current any = ctx

	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Stringify renders a context value the way it should appear inside a
// message body: integral floats without a trailing ".0" (JSON numbers
// decode as float64), everything else via fmt.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}

		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
