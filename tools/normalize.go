package tools

import (
	"sort"
	"strings"

	"github.com/m4xw311/hybrid/config"
)

// DefaultArgumentRule recovers the city for the weather lookup tool.
var DefaultArgumentRule = config.ArgumentRule{
	Tool:  "fetch-weather",
	Field: "city",
	Keys:  []string{"city", "location", "place", "town", "query"},
	Cues:  []string{"city=", "city:", " in ", " for "},
}

// Normalizer rewrites loose tool arguments into the single field a known
// tool expects. Tools without a rule pass through untouched.
type Normalizer struct {
	rules []config.ArgumentRule
}

// NewNormalizer returns a normalizer with the configured rules. The default
// weather rule is included unless a rule for the same tool replaces it.
func NewNormalizer(rules []config.ArgumentRule) *Normalizer {
	n := &Normalizer{rules: append([]config.ArgumentRule(nil), rules...)}
	if n.rule(DefaultArgumentRule.Tool) == nil {
		n.rules = append(n.rules, DefaultArgumentRule)
	}
	return n
}

// rule finds the rule for tool. A nil Normalizer knows only the default.
func (n *Normalizer) rule(tool string) *config.ArgumentRule {
	rules := []config.ArgumentRule{DefaultArgumentRule}
	if n != nil {
		rules = n.rules
	}
	for i := range rules {
		if strings.EqualFold(rules[i].Tool, tool) {
			return &rules[i]
		}
	}
	return nil
}

// Normalize returns the arguments to send for tool. latestUser is the most
// recent user utterance, used as a last resort. When nothing is found args is
// returned as is.
func (n *Normalizer) Normalize(tool string, args any, latestUser string) any {
	r := n.rule(tool)
	if r == nil {
		return args
	}

	value, ok := fromArgs(r, args)
	if !ok {
		value, ok = fromText(r, latestUser)
	}
	if !ok {
		return args
	}
	return map[string]any{r.Field: value}
}

func fromArgs(r *config.ArgumentRule, args any) (string, bool) {
	switch v := args.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s, true
		}
		return "", false
	case map[string]any:
		for _, key := range r.Keys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		field := asciiLower(r.Field)
		for _, k := range keys {
			if !strings.Contains(asciiLower(k), field) {
				continue
			}
			if s, ok := v[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}

func fromText(r *config.ArgumentRule, text string) (string, bool) {
	if text == "" {
		return "", false
	}
	hay := asciiLower(text)
	for _, cue := range r.Cues {
		idx := strings.Index(hay, asciiLower(cue))
		if idx < 0 {
			continue
		}
		if s := cleanCandidate(text[idx+len(cue):]); s != "" {
			return s, true
		}
	}
	return "", false
}

// cleanCandidate cuts at the first comma, semicolon or newline and strips
// whitespace and quotes.
func cleanCandidate(raw string) string {
	s := trimQuotes(raw)
	if i := strings.IndexAny(s, ",;\n"); i >= 0 {
		s = s[:i]
	}
	return trimQuotes(s)
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.Trim(s, "'")
}

// asciiLower lowercases A-Z only, so byte offsets stay valid for the original.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
