package skills

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"forge/internal/types"
)

// Normalize turns whatever a handler returned into a complete SkillOutput.
// It is total: every input, including nil and unexpected types, yields an
// output with non-nil maps and slices.
//
// Legacy maps may carry any subset of success, updated_artifacts, new_issues,
// requires_replan, message and error (snake or camel case). A missing success
// defaults to true. A non-nil err always marks the output failed.
func Normalize(result any, err error) types.SkillOutput {
	var out types.SkillOutput

	switch v := result.(type) {
	case types.SkillOutput:
		out = v
	case *types.SkillOutput:
		if v != nil {
			out = *v
		} else {
			out = types.SkillOutput{Success: true}
		}
	case map[string]any:
		out = fromLegacy(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		out = fromLegacy(m)
	case string:
		out = types.SkillOutput{Success: true, Message: v}
	case nil:
		out = types.SkillOutput{Success: err == nil}
	default:
		out = types.SkillOutput{Success: false, Error: fmt.Sprintf("unsupported skill result type %T", result)}
	}

	if out.UpdatedArtifacts == nil {
		out.UpdatedArtifacts = map[string]string{}
	}
	if out.NewIssues == nil {
		out.NewIssues = []string{}
	}
	if err != nil {
		out.Success = false
		if out.Error == "" {
			out.Error = err.Error()
		} else {
			out.Error = err.Error() + ": " + out.Error
		}
	}
	if !out.Success && out.Error == "" {
		out.Error = "skill reported failure"
	}
	return out
}

func pick(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func fromLegacy(m map[string]any) types.SkillOutput {
	out := types.SkillOutput{Success: true}
	if v, ok := pick(m, "success", "Success"); ok {
		out.Success = asBool(v, true)
	}
	if v, ok := pick(m, "requires_replan", "requiresReplan", "RequiresReplan"); ok {
		out.RequiresReplan = asBool(v, false)
	}
	if v, ok := pick(m, "message", "Message"); ok {
		out.Message = asString(v)
	}
	if v, ok := pick(m, "error", "Error"); ok {
		out.Error = asString(v)
	}
	if v, ok := pick(m, "updated_artifacts", "updatedArtifacts", "UpdatedArtifacts"); ok {
		out.UpdatedArtifacts = asArtifacts(v)
	}
	if v, ok := pick(m, "new_issues", "newIssues", "NewIssues"); ok {
		out.NewIssues = asStrings(v)
	}
	return out
}

func asBool(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	case nil:
		return def
	}
	return def
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

func asArtifacts(v any) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		for k, s := range m {
			out[k] = s
		}
	case map[string]any:
		for k, s := range m {
			if str, ok := s.(string); ok {
				out[k] = str
			}
		}
	}
	return out
}

func asStrings(v any) []string {
	switch l := v.(type) {
	case []string:
		return append([]string{}, l...)
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if l == "" {
			return []string{}
		}
		return []string{l}
	case map[string]any:
		keys := make([]string, 0, len(l))
		for k := range l {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, k+": "+asString(l[k]))
		}
		return out
	}
	return []string{}
}
