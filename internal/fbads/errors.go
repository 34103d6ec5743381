package fbads

import "fmt"

// API throttling error code.
// https://developers.facebook.com/docs/marketing-api/api-rate-limiting
const codeRateLimit = 17

// RequestError is the decoded Graph API error envelope.
type RequestError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	HTTPStatus int    `json:"-"`
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("graph api: %s (code %d, subcode %d, http %d)",
		e.Message, e.Code, e.Subcode, e.HTTPStatus)
}

// IsRateLimit reports whether the API signaled request throttling.
func (e *RequestError) IsRateLimit() bool { return e.Code == codeRateLimit }

// Temporary reports whether the failure looks server-side and worth retrying.
func (e *RequestError) Temporary() bool { return e.HTTPStatus >= 500 }
