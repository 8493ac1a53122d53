package imagecheck

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"image-check/api/internal/sign"
)

var testCreds = Credentials{SecretID: "id1", SecretKey: "k1", BusinessID: "b1"}

const okBody = `{"code":200,"msg":"ok","antispam":[{"name":"a","taskId":"t1","status":0,"action":1,"labels":[{"label":100,"level":1,"rate":0.8,"subLabels":[]}]}],"ocr":[],"face":[],"quality":[]}`

func fixedClient(t *testing.T, endpoint string, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithEndpoint(endpoint),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		WithNonce(func() int64 { return 12345678 }),
	}
	c, err := New(testCreds, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewValidatesCredentials(t *testing.T) {
	tests := []struct {
		creds Credentials
		field string
	}{
		{Credentials{SecretKey: "k", BusinessID: "b"}, "secretId"},
		{Credentials{SecretID: "i", BusinessID: "b"}, "secretKey"},
		{Credentials{SecretID: "i", SecretKey: "k", BusinessID: "  "}, "businessId"},
	}
	for _, tt := range tests {
		_, err := New(tt.creds)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("New(%+v): want ConfigError, got %v", tt.creds, err)
			continue
		}
		if ce.Field != tt.field {
			t.Errorf("ConfigError.Field = %s, want %s", ce.Field, tt.field)
		}
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(testCreds, WithSignatureMethod("SHA1")); err == nil {
		t.Error("expected error for unsupported method")
	}
	if _, err := New(testCreds, WithEndpoint("not a url")); err == nil {
		t.Error("expected error for bad endpoint")
	}
	c, err := New(testCreds)
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint() != APIURL || c.Method() != sign.MD5 {
		t.Errorf("defaults: endpoint=%s method=%s", c.Endpoint(), c.Method())
	}
}

func TestPrepareMatchesVector(t *testing.T) {
	c := fixedClient(t, APIURL)
	in := Params{FieldImages: `[{"name":"http://x/1.jpg","type":1,"data":"http://x/1.jpg"}]`}
	p := c.Prepare(in)

	want := map[string]string{
		"secretId":   "id1",
		"businessId": "b1",
		"version":    "v4",
		"timestamp":  "1700000000000",
		"nonce":      "12345678",
		"signature":  "2d8966b6f7a8d0d6c549f2476182ee1f",
	}
	for k, v := range want {
		if p[k] != v {
			t.Errorf("%s = %q, want %q", k, p[k], v)
		}
	}
	if _, ok := in[sign.FieldSignature]; ok {
		t.Error("Prepare mutated the caller params")
	}
	if _, ok := p[sign.FieldSignatureMethod]; ok {
		t.Error("signatureMethod must be absent under MD5")
	}
}

func TestPrepareSM3(t *testing.T) {
	c := fixedClient(t, APIURL, WithSignatureMethod(sign.SM3))
	p := c.Prepare(Params{FieldImages: `[{"name":"http://x/1.jpg","type":1,"data":"http://x/1.jpg"}]`})
	if p[sign.FieldSignatureMethod] != "SM3" {
		t.Fatalf("signatureMethod = %q", p[sign.FieldSignatureMethod])
	}
	const want = "3ebb8a0d15bc963673ced43730f39c8b285b7e2e2bd952f34908e2e807b75a3b"
	if p[sign.FieldSignature] != want {
		t.Errorf("signature = %s, want %s", p[sign.FieldSignature], want)
	}
}

func TestPrepareDropsStaleSignature(t *testing.T) {
	c := fixedClient(t, APIURL)
	a := c.Prepare(Params{FieldImages: "[]"})
	b := c.Prepare(Params{FieldImages: "[]", sign.FieldSignature: "stale"})
	if a[sign.FieldSignature] != b[sign.FieldSignature] {
		t.Error("stale signature influenced the new one")
	}
}

func TestCheckSuccess(t *testing.T) {
	var got url.Values
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(b))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c := fixedClient(t, srv.URL)
	resp, err := c.CheckImages(context.Background(), Request{
		Images:  []ImageDescriptor{{Name: "http://x/1.jpg", Type: ImageURL, Data: "http://x/1.jpg"}},
		Account: "user@example.com",
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if !strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		t.Errorf("content type = %s", contentType)
	}
	if got.Get("secretKey") != "" {
		t.Error("secret key must never be sent")
	}
	if got.Get("account") != "user@example.com" || got.Get("version") != "v4" {
		t.Errorf("unexpected form: %v", got)
	}
	// the server recomputes the signature from what it received
	fields := map[string]string{}
	for k := range got {
		fields[k] = got.Get(k)
	}
	if want := sign.Sign(fields, "k1", sign.MD5); got.Get("signature") != want {
		t.Errorf("server-side signature %s != sent %s", want, got.Get("signature"))
	}

	if !resp.OK() || len(resp.Antispam) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	a := resp.Antispam[0]
	if a.Action == nil || *a.Action != ActionSuspicious {
		t.Errorf("action = %v", a.Action)
	}
	if len(a.Labels) != 1 || a.Labels[0].Rate != 0.8 || a.Labels[0].Label != 100 {
		t.Errorf("labels = %+v", a.Labels)
	}
	if len(resp.OCR) != 0 || len(resp.Face) != 0 || len(resp.Quality) != 0 {
		t.Error("expected empty ocr/face/quality")
	}
}

func TestCheckUTF8FormEncoding(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		_, _ = w.Write([]byte(`{"code":200,"msg":"ok"}`))
	}))
	defer srv.Close()

	c := fixedClient(t, srv.URL)
	if _, err := c.Check(context.Background(), Params{"account": "用户 a&b"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(raw, "account=%E7%94%A8%E6%88%B7+a%26b") {
		t.Errorf("body not utf-8 form encoded: %s", raw)
	}
}

func TestCheckAPIErrorIsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":401,"msg":"invalid signature"}`))
	}))
	defer srv.Close()

	resp, err := fixedClient(t, srv.URL).Check(context.Background(), Params{FieldImages: "[]"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OK() || resp.Code != 401 || resp.Msg != "invalid signature" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Antispam != nil || resp.OCR != nil || resp.Face != nil || resp.Quality != nil {
		t.Error("absent sections must stay nil")
	}
}

func TestCheckProtocolErrors(t *testing.T) {
	bodies := map[string]string{
		"not json":     "<html>gateway</html>",
		"missing code": `{"msg":"ok"}`,
		"array":        `[1,2]`,
		"bad section":  `{"code":200,"antispam":"nope"}`,
		"empty":        ``,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			resp, err := fixedClient(t, srv.URL).Check(context.Background(), Params{})
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("want ProtocolError, got %v", err)
			}
			if resp != nil {
				t.Error("response must be nil on protocol error")
			}
		})
	}
}

func TestCheckHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := fixedClient(t, srv.URL).Check(context.Background(), Params{})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusBadGateway || !strings.Contains(te.Body, "bad gateway") {
		t.Errorf("err = %+v", te)
	}
	if IsTimeout(err) {
		t.Error("status error is not a timeout")
	}
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := fixedClient(t, endpoint).Check(context.Background(), Params{})
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "post" {
		t.Fatalf("want post TransportError, got %v", err)
	}
}

func TestCheckTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"code":200,`))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := fixedClient(t, srv.URL, WithTimeout(100*time.Millisecond))
	start := time.Now()
	resp, err := c.Check(context.Background(), Params{})
	if resp != nil {
		t.Error("partial response returned")
	}
	if !IsTimeout(err) {
		t.Fatalf("want timeout TransportError, got %v", err)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Errorf("timeout not enforced, took %v", d)
	}
}

func TestCheckRespectsCallerContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fixedClient(t, srv.URL).Check(ctx, Params{})
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled TransportError, got %v", err)
	}
}

func TestCheckConcurrentCalls(t *testing.T) {
	var mu sync.Mutex
	nonces := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		nonces[r.PostForm.Get("nonce")+"/"+r.PostForm.Get("signature")] = true
		mu.Unlock()
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, err := New(testCreds, WithEndpoint(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Check(context.Background(), Params{FieldImages: "[]"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent check: %v", err)
	}
	if len(nonces) < 2 {
		t.Errorf("expected fresh nonce per call, got %d distinct", len(nonces))
	}
}

func TestDefaultNonceRange(t *testing.T) {
	c, err := New(testCreds)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if n := c.nonce(); n < 0 || n >= NonceLimit {
			t.Fatalf("nonce %d out of range", n)
		}
	}
}
