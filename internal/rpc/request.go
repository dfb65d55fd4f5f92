// Package rpc implements the RPC Dispatcher (C7): decoding a single
// Transmission-style `{method, arguments, tag}` envelope, normalizing its
// arguments, routing to a handler, and shaping the `{result, arguments, tag}`
// response envelope. No transport concern (HTTP, WS, auth) lives here; the
// HTTP/WS Server owns that.
package rpc

import (
	"encoding/json"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
)

// Request is the decoded wire envelope of a single RPC call.
type Request struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
	Tag       *int            `json:"tag,omitempty"`
}

// Response is the wire envelope returned for one call.
type Response struct {
	Result    string      `json:"result"`
	Arguments interface{} `json:"arguments,omitempty"`
	Tag       *int        `json:"tag,omitempty"`
}

// resultSuccess and resultError mirror Transmission's own two-value result
// field; clients key off this string rather than an HTTP status for
// method-level failure.
const (
	resultSuccess = "success"
	resultError   = "error"
)

// success builds a Response carrying tag and args unchanged.
func success(tag *int, args interface{}) Response {
	return Response{Result: resultSuccess, Arguments: args, Tag: tag}
}

// errorArguments is the Arguments payload of every error Response: a
// human-readable message plus the extended numeric code (omitted when the
// kind has none), so clients can key off either.
type errorArguments struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// failure builds a Response with Result:"error" and the Kind's message/code
// carried in Arguments, per the Transmission-style error envelope.
func failure(tag *int, appErr *apperror.Error) Response {
	return Response{
		Result:    resultError,
		Arguments: errorArguments{Message: appErr.Message, Code: appErr.Code},
		Tag:       tag,
	}
}

// Decode parses body into a Request. A request with no "arguments" key is
// valid — not every method takes arguments — but malformed JSON is not.
func Decode(body []byte) (Request, *apperror.Error) {
	if len(body) == 0 {
		return Request{}, apperror.New(apperror.KindEmptyPayload, "request body is empty")
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, apperror.New(apperror.KindInvalidJSON, err.Error())
	}
	if req.Method == "" {
		return Request{}, apperror.New(apperror.KindInvalidArgument, "method is required")
	}
	return req, nil
}
