// Package client provides protocol action helpers so a chain can drive real
// targets: HTTP endpoints and Postgres databases. Each helper returns a
// surge.Action; the only failure contract is a non-nil error.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/surgekit/surge"
)

// HTTPOption configures an HTTP action.
type HTTPOption func(*httpAction)

// WithClient substitutes the http.Client used by the action. The default
// client has a 15-second timeout.
func WithClient(c *http.Client) HTTPOption {
	return func(a *httpAction) { a.client = c }
}

// WithHeader adds a request header.
func WithHeader(key, value string) HTTPOption {
	return func(a *httpAction) { a.headers = append(a.headers, [2]string{key, value}) }
}

// WithBody sets a request body built per call from the session, so feeder
// attributes can parameterize the payload.
func WithBody(contentType string, build func(sess *surge.Session) string) HTTPOption {
	return func(a *httpAction) {
		a.contentType = contentType
		a.body = build
	}
}

// WithExpectStatus overrides the accepted status range. By default any
// status below 400 is a success.
func WithExpectStatus(codes ...int) HTTPOption {
	return func(a *httpAction) { a.expect = codes }
}

// WithCapture stores a value derived from the response into the session
// under the given key, making it available to later steps.
func WithCapture(key string, extract func(status int, body []byte) any) HTTPOption {
	return func(a *httpAction) {
		a.captures = append(a.captures, capture{key: key, extract: extract})
	}
}

type capture struct {
	key     string
	extract func(status int, body []byte) any
}

type httpAction struct {
	method      string
	url         string
	client      *http.Client
	headers     [][2]string
	contentType string
	body        func(sess *surge.Session) string
	expect      []int
	captures    []capture
}

// HTTP returns an action that issues one request per execution. The URL may
// reference session attributes as {{key}} placeholders, resolved per call.
func HTTP(method, url string, opts ...HTTPOption) surge.Action {
	a := &httpAction{
		method: method,
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a.run
}

func (a *httpAction) run(ctx context.Context, sess *surge.Session) error {
	url := resolve(a.url, sess)

	var bodyReader io.Reader
	if a.body != nil {
		bodyReader = strings.NewReader(a.body(sess))
	}
	req, err := http.NewRequestWithContext(ctx, a.method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if a.contentType != "" {
		req.Header.Set("Content-Type", a.contentType)
	}
	for _, h := range a.headers {
		req.Header.Set(h[0], resolve(h[1], sess))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", a.method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if !a.accepted(resp.StatusCode) {
		return fmt.Errorf("client: %s %s: unexpected status %d", a.method, url, resp.StatusCode)
	}
	for _, c := range a.captures {
		sess.Set(c.key, c.extract(resp.StatusCode, body))
	}
	return nil
}

func (a *httpAction) accepted(status int) bool {
	if len(a.expect) == 0 {
		return status < 400
	}
	for _, code := range a.expect {
		if status == code {
			return true
		}
	}
	return false
}

// resolve replaces {{key}} placeholders with session attribute values.
// Unknown keys resolve to empty strings. Templates with no placeholders are
// returned as-is.
func resolve(template string, sess *surge.Session) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	var b strings.Builder
	s := template
	for {
		start := strings.Index(s, "{{")
		if start == -1 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}}")
		if end == -1 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		key := strings.TrimSpace(s[start+2 : start+end])
		b.WriteString(sess.GetString(key))
		s = s[start+end+2:]
	}
	return b.String()
}
