// Package imagecheck is a client for the image check API (v4): it signs a
// form-encoded request, posts it once and decodes the JSON reply.
package imagecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"image-check/api/internal/sign"
)

const (
	APIURL         = "http://as.dun.163.com/v4/image/check"
	Version        = "v4"
	DefaultTimeout = 10 * time.Second
	NonceLimit     = 100_000_000
)

// Client holds no per-call state and is safe for concurrent use.
type Client struct {
	creds    Credentials
	method   sign.Method
	endpoint string
	timeout  time.Duration
	httpc    *http.Client
	now      func() time.Time
	nonce    func() int64
}

type Option func(*Client)

func WithSignatureMethod(m sign.Method) Option {
	return func(c *Client) { c.method = m }
}

// WithEndpoint points the client at another URL (private deployment, tests).
func WithEndpoint(u string) Option {
	return func(c *Client) { c.endpoint = u }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithNonce(f func() int64) Option {
	return func(c *Client) { c.nonce = f }
}

func New(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		creds:    creds,
		method:   sign.MD5,
		endpoint: APIURL,
		timeout:  DefaultTimeout,
		now:      time.Now,
		nonce:    func() int64 { return rand.Int63n(NonceLimit) },
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: c.timeout}
	}
	if c.method != sign.MD5 && c.method != sign.SM3 {
		return nil, &ConfigError{Field: "signatureMethod", Reason: fmt.Sprintf("unsupported %q", c.method)}
	}
	if _, err := url.ParseRequestURI(c.endpoint); err != nil {
		return nil, &ConfigError{Field: "endpoint", Reason: err.Error()}
	}
	return c, nil
}

func (c *Client) Method() sign.Method { return c.method }
func (c *Client) Endpoint() string    { return c.endpoint }

// Prepare returns the full signed parameter set for params: caller fields plus
// identity, version, timestamp, nonce and signature. params itself is not modified.
func (c *Client) Prepare(params Params) Params {
	p := params.clone()
	delete(p, sign.FieldSignature)
	p[FieldSecretID] = c.creds.SecretID
	p[FieldBusinessID] = c.creds.BusinessID
	p[FieldVersion] = Version
	p[FieldTimestamp] = strconv.FormatInt(c.now().UnixMilli(), 10)
	p[FieldNonce] = strconv.FormatInt(c.nonce(), 10)
	if c.method == sign.SM3 {
		p[sign.FieldSignatureMethod] = string(sign.SM3)
	}
	// must be the last field set; the digest follows signatureMethod like the server does
	p[sign.FieldSignature] = sign.Sign(p, c.creds.SecretKey, sign.MethodFromParams(p))
	return p
}

// CheckImages validates and encodes req, then calls Check.
func (c *Client) CheckImages(ctx context.Context, req Request) (*CheckResponse, error) {
	p, err := req.Params()
	if err != nil {
		return nil, err
	}
	return c.Check(ctx, p)
}

// Check performs one signed POST. It fails with *TransportError or
// *ProtocolError; an API-level failure (Code != 200) is returned as data.
func (c *Client) Check(ctx context.Context, params Params) (*CheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	for k, v := range c.Prepare(params) {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: "build", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: "status", StatusCode: resp.StatusCode, Body: bodyPrefix(body)}
	}
	return decodeResponse(body)
}

func decodeResponse(body []byte) (*CheckResponse, error) {
	var head struct {
		Code *int `json:"code"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, &ProtocolError{Body: bodyPrefix(body), Err: err}
	}
	if head.Code == nil {
		return nil, &ProtocolError{Body: bodyPrefix(body), Err: errMissingCode}
	}
	var out CheckResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ProtocolError{Body: bodyPrefix(body), Err: err}
	}
	return &out, nil
}
