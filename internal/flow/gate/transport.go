package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	commonhttp "certflow/internal/common/http"
	"certflow/internal/common/validation"
)

// responseSchema is the minimum shape the endpoint must answer with.
const responseSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "message": {"type": "string"},
    "id":      {"type": ["string", "number"]}
  }
}`

var responseValidator = validation.MustDocumentValidator(responseSchema)

// HTTPTransport posts the payload as JSON to a fixed endpoint.
type HTTPTransport struct {
	endpoint string
	client   *commonhttp.Client
}

func NewHTTPTransport(endpoint string, client *commonhttp.Client) *HTTPTransport {
	if client == nil {
		// deadlines come from the gate's context
		client = commonhttp.NewClient(0)
	}
	return &HTTPTransport{endpoint: endpoint, client: client}
}

// Send treats a non-2xx status or a body that does not match responseSchema as
// ErrSubmissionFailed. A well-formed body is returned as is, including
// success=false; the gate decides what that means.
func (t *HTTPTransport) Send(ctx context.Context, payload map[string]interface{}) (*Response, error) {
	resp, err := t.client.PostJSON(ctx, t.endpoint, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrSubmissionFailed, resp.StatusCode)
	}

	problems, err := responseValidator.Validate(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrSubmissionFailed, err)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: unexpected response shape: %s", ErrSubmissionFailed, strings.Join(problems, "; "))
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrSubmissionFailed, err)
	}

	out := &Response{Data: raw}
	out.Success, _ = raw["success"].(bool)
	out.Message, _ = raw["message"].(string)
	switch id := raw["id"].(type) {
	case string:
		out.ID = id
	case float64:
		out.ID = fmt.Sprintf("%.0f", id)
	}
	return out, nil
}
