package chat

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Reply is the assistant's answer to one message.
type Reply struct {
	Text            string  `json:"text"`
	StepURL         string  `json:"step_url,omitempty"`
	STLURL          string  `json:"stl_url,omitempty"`
	ModelURL        string  `json:"model_url,omitempty"`
	ModelID         string  `json:"model_id,omitempty"`
	ModelType       string  `json:"model_type,omitempty"`
	SimilarityScore float64 `json:"similarity_score,omitempty"`
	Intent          string  `json:"intent,omitempty"`
	Agent           string  `json:"agent,omitempty"`
	Prompt          string  `json:"prompt,omitempty"`
}

// ModelRef points at a model file the backend generated.
type ModelRef struct {
	URL    string `json:"url"`
	Format string `json:"format"` // "step" or "stl"
}

// Model returns the model linked from the reply, preferring STEP over STL.
func (r *Reply) Model() (ModelRef, bool) {
	switch {
	case r.StepURL != "":
		return ModelRef{URL: r.StepURL, Format: "step"}, true
	case r.STLURL != "":
		return ModelRef{URL: r.STLURL, Format: "stl"}, true
	case r.ModelURL != "":
		format := strings.ToLower(r.ModelType)
		if format != "step" && format != "stl" {
			format = formatFromExt(r.ModelURL)
		}
		return ModelRef{URL: r.ModelURL, Format: format}, true
	}
	return ModelRef{}, false
}

func formatFromExt(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if strings.EqualFold(path.Ext(u), ".stl") {
		return "stl"
	}
	return "step"
}

// envelope is the /graph_chat response.
type envelope struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
	Intent   string          `json:"intent"`
	Agent    string          `json:"agent"`
}

// replyBody tolerates backends that send model ids as numbers.
type replyBody struct {
	Reply
	Error   string          `json:"error"`
	ModelID json.RawMessage `json:"model_id"`
}

// decodeReply decodes a /graph_chat response. The response field may be an
// object, a string holding JSON, or plain text.
func decodeReply(body []byte) (*Reply, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrBackend, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", ErrBackend, msg)
	}

	raw := env.Response
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		trimmed := strings.TrimSpace(s)
		if !strings.HasPrefix(trimmed, "{") || !json.Valid([]byte(trimmed)) {
			return &Reply{Text: s, Intent: env.Intent, Agent: env.Agent}, nil
		}
		raw = json.RawMessage(trimmed)
	}

	var rb replyBody
	if len(raw) == 0 || string(raw) == "null" {
		return &Reply{Text: "No response", Intent: env.Intent, Agent: env.Agent}, nil
	}
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", ErrBackend, err)
	}
	r := rb.Reply
	r.ModelID = rawString(rb.ModelID)
	if r.Text == "" {
		r.Text = rb.Error
	}
	if r.Text == "" {
		r.Text = "No response"
	}
	r.Intent, r.Agent = env.Intent, env.Agent
	return &r, nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
