package credmap

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/busmesh/testorch/infrastructure/errors"
)

// Transform is one step of a transformation pipeline: an operation name
// plus its arguments, applied left to right.
type Transform struct {
	Op   string
	Args []string
}

// FieldMapping resolves one or more source paths out of a JSON document,
// feeds them through an ordered Transform pipeline, and yields a single
// string value for a Credentials field.
type FieldMapping struct {
	SourcePaths []string
	Transforms  []Transform
}

// Apply resolves m.SourcePaths against doc and runs the transform pipeline,
// returning the first failure encountered.
func (m FieldMapping) Apply(doc interface{}) (string, error) {
	values := make([]interface{}, len(m.SourcePaths))
	missing := make([]bool, len(m.SourcePaths))
	for i, p := range m.SourcePaths {
		v, ok, err := Resolve(doc, p)
		if err != nil {
			return "", err
		}
		values[i] = v
		missing[i] = !ok
	}
	return applyTransforms(values, missing, m.Transforms)
}

func applyTransforms(values []interface{}, missing []bool, transforms []Transform) (string, error) {
	var current interface{}
	seeded := false

	seed := func() error {
		if seeded {
			return nil
		}
		if len(values) == 0 || missing[0] {
			return errors.PathNotResolved("source path missing")
		}
		current = values[0]
		seeded = true
		return nil
	}

	for i, t := range transforms {
		switch t.Op {
		case "default":
			if i != 0 {
				return "", errors.TransformFailed(t.Op, "default must be the first transformation")
			}
			if len(t.Args) != 1 {
				return "", errors.TransformFailed(t.Op, "default requires exactly one argument")
			}
			if len(values) == 0 || missing[0] {
				current = t.Args[0]
			} else {
				current = values[0]
			}
			seeded = true

		case "concat":
			if len(t.Args) != 1 {
				return "", errors.TransformFailed(t.Op, "concat requires a separator argument")
			}
			parts := make([]string, 0, len(values))
			for idx, v := range values {
				if missing[idx] {
					continue
				}
				parts = append(parts, toString(v))
			}
			current = strings.Join(parts, t.Args[0])
			seeded = true

		case "base64encode":
			if err := seed(); err != nil {
				return "", err
			}
			current = base64.StdEncoding.EncodeToString([]byte(toString(current)))

		case "base64decode":
			if err := seed(); err != nil {
				return "", err
			}
			decoded, err := base64.StdEncoding.DecodeString(toString(current))
			if err != nil {
				return "", errors.TransformFailed(t.Op, err.Error())
			}
			current = string(decoded)

		case "to-upper":
			if err := seed(); err != nil {
				return "", err
			}
			current = strings.ToUpper(toString(current))

		case "to-lower":
			if err := seed(); err != nil {
				return "", err
			}
			current = strings.ToLower(toString(current))

		case "prefix":
			if len(t.Args) != 1 {
				return "", errors.TransformFailed(t.Op, "prefix requires one argument")
			}
			if err := seed(); err != nil {
				return "", err
			}
			current = t.Args[0] + toString(current)

		case "suffix":
			if len(t.Args) != 1 {
				return "", errors.TransformFailed(t.Op, "suffix requires one argument")
			}
			if err := seed(); err != nil {
				return "", err
			}
			current = toString(current) + t.Args[0]

		default:
			return "", errors.TransformFailed(t.Op, "unknown transformation")
		}
	}

	if !seeded {
		if err := seed(); err != nil {
			return "", err
		}
	}
	return toString(current), nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
