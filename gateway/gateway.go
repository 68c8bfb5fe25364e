// Package gateway is the single chokepoint for calls to the remote recipe API.
// It attaches the bearer token, negotiates the body encoding and turns every
// non-2xx answer into a *core.Error with a display-ready message.
//
// Calls are attempted exactly once; there is no retry.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"flavorai-client/core"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// RequestIDHeader carries a per-request ULID for correlating logs.
const RequestIDHeader = "X-Request-Id"

// TokenReader is the read side of the token store.
type TokenReader interface {
	Get(ctx context.Context) (token string, ok bool, err error)
}

// Options describe one request. JSON and Multipart are mutually exclusive.
type Options struct {
	// Method defaults to GET.
	Method string

	// Query is appended to the path.
	Query url.Values

	// JSON is marshaled as the request body.
	JSON any

	// Multipart is sent as multipart/form-data.
	Multipart *Multipart

	// Header values override the defaults set by the gateway.
	Header http.Header
}

// Gateway issues requests against one API base URL.
type Gateway struct {
	baseURL string
	client  *http.Client
	tokens  TokenReader
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithTimeout sets a per-request timeout on the gateway's client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		c := *g.client
		c.Timeout = d
		g.client = &c
	}
}

// New returns a gateway for baseURL that reads credentials from tokens.
// tokens may be nil for a purely anonymous gateway.
func New(baseURL string, tokens TokenReader, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BaseURL returns the API root the gateway talks to.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Request performs one call. On 2xx it returns the response; any other
// outcome is returned as a *core.Error.
func (g *Gateway) Request(ctx context.Context, path string, opts Options) (Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if opts.JSON != nil && opts.Multipart != nil {
		return Response{}, core.NewValidation("a request cannot carry both a JSON and a multipart body")
	}

	requestID := ulid.Make().String()
	log := logrus.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	body, contentType, err := encodeBody(opts)
	if err != nil {
		log.WithError(err).Error("Failed to encode request body")
		return Response{}, core.NewValidation("could not encode the request body")
	}

	target := g.baseURL + path
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		log.WithError(err).Error("Failed to build request")
		return Response{}, core.NewNetwork(err)
	}

	g.attachToken(ctx, req, log)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	for key, values := range opts.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if opts.Multipart != nil {
		// The boundary is only known to the encoder; an override would
		// make the body unreadable.
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("Request did not complete")
		return Response{}, core.NewNetwork(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Warn("Failed to read response body")
		return Response{}, core.NewNetwork(err)
	}

	log = log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromResponse(resp.StatusCode, raw)
		log.WithField("message", apiErr.Message).Info("Request failed")
		return Response{}, apiErr
	}

	log.Debug("Request succeeded")
	return newResponse(resp.StatusCode, raw), nil
}

func (g *Gateway) attachToken(ctx context.Context, req *http.Request, log *logrus.Entry) {
	if g.tokens == nil {
		return
	}
	token, ok, err := g.tokens.Get(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read token; sending request anonymously")
		return
	}
	if !ok || token == "" {
		return
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
}

func encodeBody(opts Options) (io.Reader, string, error) {
	switch {
	case opts.Multipart != nil:
		buf, contentType, err := opts.Multipart.encode()
		if err != nil {
			return nil, "", err
		}
		return buf, contentType, nil
	case opts.JSON != nil:
		data, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	default:
		return nil, "application/json", nil
	}
}

// errorFromResponse builds the error for a non-2xx answer. The message comes
// from the body's "message" field (a string or a list of strings) when present.
func errorFromResponse(status int, raw []byte) *core.Error {
	message := fmt.Sprintf("Request failed with status %d", status)

	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Message) > 0 {
		if m := decodeMessage(payload.Message); m != "" {
			message = m
		}
	}

	if status == http.StatusNotFound {
		return core.NewNotFound(status, message)
	}
	return core.NewAPI(status, message)
}

func decodeMessage(raw json.RawMessage) string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, ", ")
	}
	return ""
}
