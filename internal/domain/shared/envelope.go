package shared

import "encoding/json"

// SuccessCode is the envelope code of a successful call
const SuccessCode = 200

// Envelope is the uniform response wrapper of the remote API:
// {"code": 200, "message": "...", "data": ...}
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// RawEnvelope defers decoding of data until the code has been checked.
// Code is a pointer so that a missing code can be told apart from 0.
type RawEnvelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// OK wraps data in a success envelope
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Code: SuccessCode, Message: "操作成功", Data: data}
}

// Fail builds an error envelope with no data
func Fail(code int, message string) Envelope[any] {
	return Envelope[any]{Code: code, Message: message}
}
