package minimax

import (
	"fmt"
	"strings"
)

// APIError reports a request the service answered but did not accept, either
// through a non-2xx HTTP status or a non-zero base_resp status code.
type APIError struct {
	Op         string
	HTTPStatus int
	StatusCode int
	StatusMsg  string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: api status %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.StatusMsg))
	case e.Body != "":
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.HTTPStatus, e.Body)
	default:
		return fmt.Sprintf("%s: http %d", e.Op, e.HTTPStatus)
	}
}

func checkBase(op string, httpStatus int, base BaseResp) error {
	if base.StatusCode == 0 {
		return nil
	}
	return &APIError{Op: op, HTTPStatus: httpStatus, StatusCode: base.StatusCode, StatusMsg: base.StatusMsg}
}

func summarizeBody(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
