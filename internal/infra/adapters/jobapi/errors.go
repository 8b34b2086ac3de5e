package jobapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"genmedia-studio/internal/domain"
)

// Error codes the remote marks as "retry later".
var transientCodes = map[string]string{
	"1000": "unknown server error, retry later",
	"1011": "system busy, retry in a few minutes",
}

type errorBody struct {
	Code         flexString `json:"code"`
	Msg          string     `json:"msg"`
	Message      string     `json:"message"`
	ErrorCode    flexString `json:"errorCode"`
	ErrorMessage string     `json:"errorMessage"`
}

// statusError maps a non-2xx answer onto the error taxonomy.
func statusError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := firstNonEmpty(eb.Msg, eb.Message, eb.ErrorMessage, truncate(strings.TrimSpace(string(body)), 100))
	code := firstNonEmpty(string(eb.ErrorCode), string(eb.Code))

	kind := domain.ErrValidation
	switch {
	case status == http.StatusUnauthorized:
		kind, msg = domain.ErrAuth, "api key invalid or expired"
	case status == http.StatusForbidden:
		kind, msg = domain.ErrAuth, "api key lacks permission"
	case string(eb.Code) == "412" && eb.Msg == "TOKEN_INVALID":
		kind, msg = domain.ErrAuth, "api key invalid"
	case status == http.StatusNotFound || eb.Msg == "TASK_NOT_FOUND":
		kind = domain.ErrUnknownJobID
	case status == http.StatusTooManyRequests || status >= 500:
		kind = domain.ErrTransientServer
	}
	return &domain.APIError{Kind: kind, Status: status, Code: code, Message: msg}
}

// codeError maps a structured errorCode from a 2xx body.
func codeError(code, msg string) error {
	if hint, ok := transientCodes[code]; ok {
		return &domain.APIError{Kind: domain.ErrTransientServer, Code: code, Message: firstNonEmpty(msg, hint)}
	}
	if code == "412" || msg == "TOKEN_INVALID" {
		return &domain.APIError{Kind: domain.ErrAuth, Code: code, Message: "api key invalid"}
	}
	if msg == "TASK_NOT_FOUND" {
		return &domain.APIError{Kind: domain.ErrUnknownJobID, Code: code, Message: msg}
	}
	return &domain.APIError{Kind: domain.ErrValidation, Code: code, Message: firstNonEmpty(msg, "unknown error")}
}

// flexString decodes JSON strings and numbers alike.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return err
	}
	*f = flexString(s)
	return nil
}
