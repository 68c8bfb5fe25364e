package gateway

import (
	"context"
	"encoding/json"
	"flavorai-client/core"
	"reflect"
)

// Response is a successful (2xx) answer.
type Response struct {
	Status int

	// Body is the raw response body.
	Body []byte

	value  any
	parsed bool
}

func newResponse(status int, body []byte) Response {
	r := Response{Status: status, Body: body}
	if len(body) == 0 {
		return r
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		r.value = v
		r.parsed = true
	} else {
		r.value = string(body)
	}
	return r
}

// Empty reports whether the server sent no body.
func (r Response) Empty() bool {
	return len(r.Body) == 0
}

// IsJSON reports whether the body decoded as JSON.
func (r Response) IsJSON() bool {
	return r.parsed
}

// Value returns the parsed body: an empty map for an empty body, the decoded
// JSON value, or the raw text when the body is not JSON.
func (r Response) Value() any {
	if r.Empty() {
		return map[string]any{}
	}
	return r.value
}

// Text returns the body as a string.
func (r Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals a JSON body into v. An empty body leaves v untouched.
func (r Response) Decode(v any) error {
	if r.Empty() {
		return nil
	}
	if !r.parsed {
		return &core.Error{Kind: core.KindAPI, Status: r.Status, Message: "Unexpected response from server"}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &core.Error{Kind: core.KindAPI, Status: r.Status, Message: "Unexpected response from server", Err: err}
	}
	return nil
}

// Fetch performs a request and decodes the body into a T. An empty body
// yields the zero T; a non-JSON body is accepted only when T is a string.
func Fetch[T any](ctx context.Context, g *Gateway, path string, opts Options) (T, error) {
	var out T
	resp, err := g.Request(ctx, path, opts)
	if err != nil {
		return out, err
	}
	if !resp.Empty() && !resp.IsJSON() {
		if rv := reflect.ValueOf(&out).Elem(); rv.Kind() == reflect.String {
			rv.SetString(resp.Text())
			return out, nil
		}
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
