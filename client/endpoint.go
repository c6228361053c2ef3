package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/c360/topstack/envelope"
)

// Caller is the call primitive endpoints run on. *Client implements it.
type Caller interface {
	Call(ctx context.Context, method, path string, query url.Values, body any) (*envelope.Envelope, error)
}

// Validator is implemented by request types that check themselves before a call.
type Validator interface {
	Validate() error
}

// Empty is the request or response type of endpoints that carry nothing.
type Empty struct{}

// Endpoint declares one platform operation: where it lives and the shapes it
// exchanges. Endpoints are plain values, typically package-level variables.
type Endpoint[Req, Resp any] struct {
	// Name identifies the endpoint in logs and errors
	Name string
	// Method is the HTTP method, GET when empty
	Method string
	// Path is the full API path, module prefix included
	Path string
	// Schema optionally validates the response data before decoding
	Schema *envelope.Schema
}

// Do validates req, issues the call and decodes the response data as Resp.
func (e Endpoint[Req, Resp]) Do(ctx context.Context, c Caller, req Req) (Resp, error) {
	var zero Resp

	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	}

	method := e.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		env *envelope.Envelope
		err error
	)
	if method == http.MethodGet || method == http.MethodDelete {
		query, qerr := QueryFrom(req)
		if qerr != nil {
			return zero, qerr
		}
		env, err = c.Call(ctx, method, e.Path, query, nil)
	} else {
		var body any = req
		if _, empty := any(req).(Empty); empty {
			body = struct{}{}
		}
		env, err = c.Call(ctx, method, e.Path, nil, body)
	}
	if err != nil {
		return zero, err
	}
	return envelope.UnwrapValidated[Resp](env, e.Schema)
}
