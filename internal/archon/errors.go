package archon

import "fmt"

// NotFoundError reports that the Archon API has no agent with the given id.
// During a test run this error is fatal: there is no point invoking a
// nonexistent agent case after case.
type NotFoundError struct {
	AgentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent %q not found", e.AgentID)
}

// APIError reports a failed Archon API call: a non-2xx response or a
// transport failure. StatusCode is zero when no response was received. The
// message carries the operation and response body but never credentials.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("archon api: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("archon api: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("archon api: %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
