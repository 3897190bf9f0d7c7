package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Actions a controller directive can name.
const (
	ActionRetrieve = "retrieve"
	ActionTool     = "tool"
	ActionPrompt   = "prompt"
	ActionResource = "resource"
	ActionFinal    = "final"
)

// Directive is the single action the model asks for in one step. The set of
// implementations is closed: Retrieve, ToolCall, PromptCall, ResourceRead
// and FinalAnswer.
type Directive interface {
	Action() string
	directive()
}

type Retrieve struct {
	Query string
}

// ToolCall names a capability tool. Arguments is the decoded JSON value and
// is never nil.
type ToolCall struct {
	Name      string
	Arguments any
}

type PromptCall struct {
	Name      string
	Arguments any
}

type ResourceRead struct {
	URI string
}

type FinalAnswer struct {
	Text string
}

func (Retrieve) Action() string     { return ActionRetrieve }
func (ToolCall) Action() string     { return ActionTool }
func (PromptCall) Action() string   { return ActionPrompt }
func (ResourceRead) Action() string { return ActionResource }
func (FinalAnswer) Action() string  { return ActionFinal }

func (Retrieve) directive()     {}
func (ToolCall) directive()     {}
func (PromptCall) directive()   {}
func (ResourceRead) directive() {}
func (FinalAnswer) directive()  {}

// ParseError describes why model output is not a usable directive. Its text
// is shown to the model verbatim.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

func parseErrorf(format string, a ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, a...)}
}

// envelopeSchema checks the shape shared by every action before fields are
// resolved.
var envelopeSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["action"],
	"properties": {
		"action": {"type": "string"},
		"name":   {"type": ["string", "null"]},
		"uri":    {"type": ["string", "null"]},
		"answer": {"type": ["string", "null"]}
	}
}`)

// finalAnswerKeys are tried inside arguments, in order, for a final answer.
var finalAnswerKeys = []string{"answer", "final", "text", "response"}

// ParseDirective turns raw model output into a Directive. JSON wrapped in
// prose is accepted; the object spans the first '{' to the last '}'.
func ParseDirective(raw string) (Directive, error) {
	doc, err := extractObject(raw)
	if err != nil {
		return nil, err
	}
	if err := validateEnvelope(doc); err != nil {
		return nil, err
	}

	obj := gjson.Parse(doc)
	action := strings.ToLower(strings.TrimSpace(obj.Get("action").String()))
	args := obj.Get("arguments")

	switch action {
	case ActionRetrieve:
		query := args.Get("query")
		if !args.IsObject() || query.Type != gjson.String {
			return nil, parseErrorf("retrieve action requires arguments.query")
		}
		return Retrieve{Query: query.String()}, nil

	case ActionTool, ActionPrompt:
		// The name is passed on as written; only a blank one is rejected.
		name := obj.Get("name").String()
		if strings.TrimSpace(name) == "" {
			return nil, parseErrorf("%s action requires name", action)
		}
		if action == ActionTool {
			return ToolCall{Name: name, Arguments: argumentValue(args)}, nil
		}
		return PromptCall{Name: name, Arguments: argumentValue(args)}, nil

	case ActionResource:
		var candidates []gjson.Result
		candidates = append(candidates, obj.Get("uri"))
		if args.IsObject() {
			candidates = append(candidates, args.Get("uri"))
		}
		candidates = append(candidates, obj.Get("name"))
		if uri, ok := firstText(candidates...); ok {
			return ResourceRead{URI: uri}, nil
		}
		return nil, parseErrorf("resource action requires uri")

	case ActionFinal:
		candidates := []gjson.Result{obj.Get("answer")}
		if args.Type == gjson.String {
			candidates = append(candidates, args)
		}
		if args.IsObject() {
			for _, key := range finalAnswerKeys {
				candidates = append(candidates, args.Get(key))
			}
		}
		candidates = append(candidates, obj.Get("name"))
		if answer, ok := firstText(candidates...); ok {
			return FinalAnswer{Text: answer}, nil
		}
		return nil, parseErrorf("final action requires answer")

	default:
		return nil, parseErrorf("unknown action: %s", action)
	}
}

func extractObject(raw string) (string, error) {
	if gjson.Valid(raw) && gjson.Parse(raw).IsObject() {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", parseErrorf("no JSON object found in model output")
	}
	candidate := raw[start : end+1]
	if !gjson.Valid(candidate) {
		var v any
		err := json.Unmarshal([]byte(candidate), &v)
		return "", parseErrorf("failed to parse JSON decision: %v", err)
	}
	return candidate, nil
}

func validateEnvelope(doc string) error {
	result, err := gojsonschema.Validate(envelopeSchema, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return parseErrorf("failed to parse JSON decision: %v", err)
	}
	if result.Valid() {
		return nil
	}
	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return parseErrorf("invalid directive: %s", strings.Join(reasons, "; "))
}

// argumentValue decodes arguments, defaulting to an empty object when absent
// or null. Numbers stay json.Number so large integers reach the server exactly.
func argumentValue(args gjson.Result) any {
	if !args.Exists() || args.Type == gjson.Null {
		return map[string]any{}
	}
	dec := json.NewDecoder(strings.NewReader(args.Raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return args.Value()
	}
	return v
}

// firstText returns the first string candidate that is not blank.
func firstText(candidates ...gjson.Result) (string, bool) {
	for _, c := range candidates {
		if c.Type == gjson.String && strings.TrimSpace(c.String()) != "" {
			return c.String(), true
		}
	}
	return "", false
}
