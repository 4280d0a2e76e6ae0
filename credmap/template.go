package credmap

import (
	"regexp"
	"strings"

	"github.com/busmesh/testorch/infrastructure/errors"
)

// TemplateContext supplies the three placeholder sources the template
// engine is allowed to read from: process-level request-params (already
// namespace-stripped by infrastructure/config.RequestParams), the topic
// directive's metadata, and the directive's own fields.
type TemplateContext struct {
	RequestParams   map[string]string
	Metadata        map[string]string
	Topic           string
	Role            string
	ClientPrincipal string
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

const requestParamsTag = "$^request-params."

// RenderTemplate walks tmpl (a JSON-shaped map/slice/string/number/bool tree
// decoded from a C2 request-body template) substituting every
// "{{...}}" placeholder found in string values. All failures from a single
// walk are collected and returned together.
func RenderTemplate(tmpl interface{}, ctx TemplateContext) (interface{}, error) {
	var failures []string
	out := walk(tmpl, ctx, &failures)
	if len(failures) > 0 {
		return nil, errors.MappingFailed(strings.Join(failures, "; "))
	}
	return out, nil
}

func walk(node interface{}, ctx TemplateContext, failures *[]string) interface{} {
	switch t := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[k] = walk(v, ctx, failures)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = walk(v, ctx, failures)
		}
		return out
	case string:
		return renderString(t, ctx, failures)
	default:
		return t
	}
}

func renderString(s string, ctx TemplateContext, failures *[]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		inner := strings.TrimSpace(groups[1])

		switch {
		case strings.HasPrefix(inner, requestParamsTag):
			key := strings.TrimPrefix(inner, requestParamsTag)
			value, ok := ctx.RequestParams[key]
			if !ok {
				*failures = append(*failures, "request-params."+key+" not found")
				return match
			}
			return value

		case strings.HasPrefix(inner, "$^"):
			*failures = append(*failures, inner+": only the request-params namespace is readable")
			return match

		case strings.HasPrefix(inner, "'") && strings.HasSuffix(inner, "'") && len(inner) >= 2:
			key := inner[1 : len(inner)-1]
			value, ok := ctx.Metadata[key]
			if !ok {
				*failures = append(*failures, "metadata key '"+key+"' not found")
				return match
			}
			return value

		case inner == "topic":
			return ctx.Topic
		case inner == "role":
			return ctx.Role
		case inner == "clientPrincipal":
			return ctx.ClientPrincipal

		default:
			*failures = append(*failures, "unknown template field "+inner)
			return match
		}
	})
}
