package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nhle/timegrave/internal/convert"
)

// Response is an unwrapped success envelope.
type Response struct {
	// Data is the envelope's data.result, or the whole body when the body
	// was not an envelope. Nil for empty bodies.
	Data json.RawMessage

	// Status is the envelope status, or the HTTP status when absent.
	Status int

	// Message is data.response or data.message, when present.
	Message string
}

// Decode unmarshals Data into v. Empty or null data leaves v untouched.
func (r *Response) Decode(v any) error {
	if isEmptyJSON(r.Data) {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return r.formatError(err)
	}
	return nil
}

// DecodeCamel rewrites Data's keys to camelCase and then unmarshals it.
func (r *Response) DecodeCamel(v any) error {
	if isEmptyJSON(r.Data) {
		return nil
	}
	camel, err := convert.CamelizeJSON(r.Data)
	if err != nil {
		return r.formatError(err)
	}
	if err := json.Unmarshal(camel, v); err != nil {
		return r.formatError(err)
	}
	return nil
}

func (r *Response) formatError(err error) *Error {
	return &Error{
		Kind:    KindUnknown,
		Message: "Unexpected response format from server.",
		Status:  r.Status,
		Err:     fmt.Errorf("decoding response data: %w", err),
	}
}

// DecodeAs is Decode for a freshly allocated T.
func DecodeAs[T any](r *Response) (T, error) {
	var v T
	err := r.Decode(&v)
	return v, err
}

// CamelAs is DecodeCamel for a freshly allocated T.
func CamelAs[T any](r *Response) (T, error) {
	var v T
	err := r.DecodeCamel(&v)
	return v, err
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// unwrapSuccess applies the {status, data: {result, response|message}}
// envelope. Bodies of any other shape are passed through whole.
func unwrapSuccess(httpStatus int, body []byte) *Response {
	resp := &Response{Status: httpStatus}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return resp
	}
	resp.Data = json.RawMessage(trimmed)

	var top map[string]json.RawMessage
	if json.Unmarshal(trimmed, &top) != nil {
		return resp
	}
	var data map[string]json.RawMessage
	if json.Unmarshal(top["data"], &data) != nil {
		return resp
	}
	result, ok := data["result"]
	if !ok {
		return resp
	}

	resp.Data = result
	var status int
	if json.Unmarshal(top["status"], &status) == nil && status != 0 {
		resp.Status = status
	}
	for _, key := range []string{"response", "message"} {
		var msg string
		if json.Unmarshal(data[key], &msg) == nil && msg != "" {
			resp.Message = msg
			break
		}
	}
	return resp
}

// errorBody is the backend's error envelope payload.
type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// classifyError maps a non-2xx response to an *Error.
func classifyError(httpStatus int, body []byte) *Error {
	kind := KindForStatus(httpStatus)
	apiErr := &Error{
		Kind:    kind,
		Message: DefaultMessage(kind),
		Status:  httpStatus,
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return apiErr
	}

	var top map[string]json.RawMessage
	if json.Unmarshal(trimmed, &top) != nil {
		apiErr.Details = string(trimmed)
		return apiErr
	}

	rawErr, ok := top["error"]
	if !ok {
		var msg string
		if json.Unmarshal(top["message"], &msg) == nil && msg != "" {
			apiErr.Message = msg
		}
		apiErr.Details = decodeAny(trimmed)
		return apiErr
	}

	// Some handlers send a bare string as the error.
	var errString string
	if json.Unmarshal(rawErr, &errString) == nil {
		if errString != "" {
			apiErr.Message = errString
		}
		return apiErr
	}

	var eb errorBody
	if json.Unmarshal(rawErr, &eb) != nil {
		apiErr.Details = decodeAny(rawErr)
		return apiErr
	}
	if eb.Message != "" {
		apiErr.Message = eb.Message
	}
	apiErr.Code = eb.Code
	if !isEmptyJSON(eb.Details) {
		apiErr.Details = decodeAny(eb.Details)
	} else {
		apiErr.Details = decodeAny(rawErr)
	}
	return apiErr
}

func decodeAny(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
