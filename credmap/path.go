// Package credmap implements the pure, side-effect-free credential mapping
// pipeline used to turn a secret-service JSON response into a Credentials
// record: a path resolver, a transformation pipeline, and the declarative
// template engine that builds C2's outbound request bodies.
package credmap

import (
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/busmesh/testorch/infrastructure/errors"
)

// segment is one dotted component of a parsed path expression.
type segment struct {
	field    string
	optional bool
	index    int  // -1 when the segment carries no bracket index
	wildcard bool // "[*]"
	length   bool // "length()" pseudo-segment
}

func parsePath(path string) ([]segment, error) {
	if !strings.HasPrefix(path, "$.") {
		return nil, errors.PathNotResolved(path)
	}
	raw := strings.Split(strings.TrimPrefix(path, "$."), ".")
	segs := make([]segment, 0, len(raw))
	for _, part := range raw {
		if part == "length()" {
			segs = append(segs, segment{length: true, index: -1})
			continue
		}
		s := segment{index: -1}
		if strings.HasSuffix(part, "?") {
			s.optional = true
			part = strings.TrimSuffix(part, "?")
		}
		if open := strings.IndexByte(part, '['); open >= 0 {
			close := strings.IndexByte(part, ']')
			if close < open {
				return nil, errors.PathNotResolved(path)
			}
			s.field = part[:open]
			inner := part[open+1 : close]
			if inner == "*" {
				s.wildcard = true
			} else {
				idx, err := strconv.Atoi(inner)
				if err != nil {
					return nil, errors.PathNotResolved(path)
				}
				s.index = idx
			}
		} else {
			s.field = part
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// Resolve evaluates path against doc. ok is false only when an optional
// segment missed; err is non-nil for any other resolution failure.
func Resolve(doc interface{}, path string) (value interface{}, ok bool, err error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, false, err
	}
	current := doc
	for i, s := range segs {
		if s.length {
			arr, isArr := current.([]interface{})
			if !isArr {
				return nil, false, errors.PathNotResolved(path)
			}
			current = float64(len(arr))
			continue
		}
		if s.field != "" {
			m, isMap := current.(map[string]interface{})
			if !isMap {
				return nil, false, errors.PathNotResolved(path)
			}
			next, present := m[s.field]
			if !present {
				if s.optional {
					return nil, false, nil
				}
				return nil, false, errors.PathNotResolved(path)
			}
			current = next
		}
		if s.wildcard {
			arr, isArr := current.([]interface{})
			if !isArr {
				return nil, false, errors.PathNotResolved(path)
			}
			expr := "$[*]" + remainderAsJSONPath(segs[i+1:])
			result, jerr := jsonpath.Get(expr, arr)
			if jerr != nil {
				return nil, false, errors.PathNotResolved(path)
			}
			return result, true, nil
		}
		if s.index >= 0 {
			arr, isArr := current.([]interface{})
			if !isArr || s.index >= len(arr) {
				if s.optional {
					return nil, false, nil
				}
				return nil, false, errors.PathNotResolved(path)
			}
			current = arr[s.index]
		}
	}
	return current, true, nil
}

// remainderAsJSONPath rebuilds the segments following a wildcard as a
// PaesslerAG/jsonpath dotted continuation, e.g. ".name" for a trailing
// {field:"name"} segment. Empty when the wildcard was the last segment.
func remainderAsJSONPath(rest []segment) string {
	var b strings.Builder
	for _, s := range rest {
		if s.field != "" {
			b.WriteByte('.')
			b.WriteString(s.field)
		}
	}
	return b.String()
}
