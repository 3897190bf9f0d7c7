package mcp

import (
	"encoding/json"

	"github.com/m4xw311/hybrid/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type textItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Blob []byte `json:"blob,omitempty"`
}

// renderContent keeps text as {"type":"text","text":...}; any other content
// kind is emitted in its wire form.
func renderContent(content []mcpsdk.Content) []any {
	out := make([]any, 0, len(content))
	for _, c := range content {
		if t, ok := c.(*mcpsdk.TextContent); ok {
			out = append(out, textItem{Type: "text", Text: t.Text})
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			continue
		}
		out = append(out, json.RawMessage(raw))
	}
	return out
}

func renderToolResult(res *mcpsdk.CallToolResult) (string, error) {
	var content []mcpsdk.Content
	isError := false
	if res != nil {
		content, isError = res.Content, res.IsError
	}
	return marshal(struct {
		Content []any `json:"content"`
		IsError bool  `json:"isError"`
	}{renderContent(content), isError})
}

func renderPromptResult(res *mcpsdk.GetPromptResult) (string, error) {
	type message struct {
		Role    string `json:"role"`
		Content []any  `json:"content"`
	}
	messages := []message{}
	if res != nil {
		for _, m := range res.Messages {
			if m == nil {
				continue
			}
			var content []mcpsdk.Content
			if m.Content != nil {
				content = []mcpsdk.Content{m.Content}
			}
			messages = append(messages, message{Role: string(m.Role), Content: renderContent(content)})
		}
	}
	return marshal(struct {
		Messages []message `json:"messages"`
	}{messages})
}

func renderResourceResult(res *mcpsdk.ReadResourceResult) (string, error) {
	contents := []textItem{}
	if res != nil {
		for _, c := range res.Contents {
			if c == nil {
				continue
			}
			if c.Blob != nil {
				contents = append(contents, textItem{Type: "blob", Blob: c.Blob})
				continue
			}
			contents = append(contents, textItem{Type: "text", Text: c.Text})
		}
	}
	return marshal(struct {
		Contents []textItem `json:"contents"`
	}{contents})
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrapf(err, "failed to render MCP result")
	}
	return string(data), nil
}

// argumentObject turns decoded directive arguments into the object a tool
// call carries. nil becomes an empty object.
func argumentObject(args any) (map[string]any, error) {
	switch v := args.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.New("tool arguments must be a JSON object, got %s", string(data))
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// promptArguments flattens an argument object to strings; non-string values
// are JSON-encoded. Anything but an object yields no arguments.
func promptArguments(args any) map[string]string {
	obj, ok := args.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = string(data)
	}
	return out
}
