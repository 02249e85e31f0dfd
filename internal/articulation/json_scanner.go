package articulation

import "encoding/json"

// jsonObjects returns every balanced top-level {...} span in s. Braces inside
// string literals are skipped, so prose around the objects is tolerated.
// Byte iteration is safe because UTF-8 never reuses ASCII bytes inside
// multi-byte sequences.
func jsonObjects(s string) []string {
	var (
		out      []string
		depth    int
		start    = -1
		quoted   bool
		escaping bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaping:
			escaping = false
		case quoted:
			if c == '\\' {
				escaping = true
			} else if c == '"' {
				quoted = false
			}
		case c == '"':
			quoted = true
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}' && depth > 0:
			depth--
			if depth == 0 && start >= 0 {
				out = append(out, s[start:i+1])
				start = -1
			}
		}
	}
	return out
}

// DecodeLegacyReply looks for a JSON object in a marker-free reply, as older
// generator prompts asked for {"updated_artifacts": {...}, ...}. The last
// object that decodes and carries at least one known result key wins.
func DecodeLegacyReply(text string) (map[string]any, bool) {
	candidates := jsonObjects(text)
	for i := len(candidates) - 1; i >= 0; i-- {
		var m map[string]any
		if err := json.Unmarshal([]byte(candidates[i]), &m); err != nil {
			continue
		}
		for _, key := range legacyKeys {
			if _, ok := m[key]; ok {
				return m, true
			}
		}
	}
	return nil, false
}

var legacyKeys = []string{
	"updated_artifacts", "updatedArtifacts",
	"new_issues", "newIssues",
	"success", "message", "error",
}
