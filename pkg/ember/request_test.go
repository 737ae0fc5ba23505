package ember

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func TestRequestIsChunked(t *testing.T) {
	r := NewRequest()
	r.TransferEncoding = []string{"gzip", "chunked"}
	if !r.IsChunked() {
		t.Error("IsChunked = false, want true when chunked is the last coding")
	}

	r.TransferEncoding = []string{"chunked", "gzip"}
	if r.IsChunked() {
		t.Error("IsChunked = true, want false when chunked is not last")
	}

	r.TransferEncoding = nil
	if r.IsChunked() {
		t.Error("IsChunked = true with no Transfer-Encoding at all")
	}
}

func TestRequestHasBody(t *testing.T) {
	r := NewRequest()
	r.ContentLength = 0
	if r.HasBody() {
		t.Error("HasBody = true with zero Content-Length and no Transfer-Encoding")
	}
	r.ContentLength = 10
	if !r.HasBody() {
		t.Error("HasBody = false with positive Content-Length")
	}
	r.ContentLength = 0
	r.TransferEncoding = []string{"chunked"}
	if !r.HasBody() {
		t.Error("HasBody = false with Transfer-Encoding set")
	}
}

func TestRequestGetParamsListQueryOnly(t *testing.T) {
	r := NewRequest()
	r.rawQuery = "a=1&b=hello+world"
	params, err := r.GetParamsList()
	if err != nil {
		t.Fatalf("GetParamsList: %v", err)
	}
	if v, ok := r.Param("a"); !ok || v != "1" {
		t.Errorf("Param(a) = %q, %v", v, ok)
	}
	if v, ok := r.Param("b"); !ok || v != "hello world" {
		t.Errorf("Param(b) = %q, %v", v, ok)
	}
	if len(params) != 2 {
		t.Errorf("GetParamsList returned %d entries, want 2", len(params))
	}
}

func TestRequestGetParamsListIsMemoized(t *testing.T) {
	r := NewRequest()
	r.rawQuery = "a=1"
	first, err := r.GetParamsList()
	if err != nil {
		t.Fatalf("GetParamsList: %v", err)
	}
	r.rawQuery = "a=2" // mutating after the fact should not matter
	second, err := r.GetParamsList()
	if err != nil {
		t.Fatalf("GetParamsList: %v", err)
	}
	if len(first) != len(second) || first[0].Value != second[0].Value {
		t.Error("GetParamsList recomputed instead of returning the cached result")
	}
}

func TestRequestGetParamsListBody(t *testing.T) {
	r := NewRequest()
	r.Headers.AddRaw(HeaderContentType, "application/x-www-form-urlencoded")
	r.Body = NewLimitedReader(strings.NewReader("name=ada&lang=go"), 16)

	_, err := r.GetParamsList()
	if err != nil {
		t.Fatalf("GetParamsList: %v", err)
	}
	if v, ok := r.Param("name"); !ok || v != "ada" {
		t.Errorf("Param(name) = %q, %v", v, ok)
	}
	if v, ok := r.Param("lang"); !ok || v != "go" {
		t.Errorf("Param(lang) = %q, %v", v, ok)
	}
}

func TestRequestParamKeepsFirstDuplicate(t *testing.T) {
	r := NewRequest()
	r.rawQuery = "k=first&k=second"
	if _, err := r.GetParamsList(); err != nil {
		t.Fatalf("GetParamsList: %v", err)
	}
	if v, _ := r.Param("k"); v != "first" {
		t.Errorf("Param(k) = %q, want first", v)
	}
}

func TestRequestSelectedVirtualHostAndContext(t *testing.T) {
	var called bool
	hosts := newTestHostTable(func(v *VirtualHost) {
		v.AddContext("/api", MethodGET, func(w *Response, r *Request) int {
			called = true
			return 0
		})
	})

	r := NewRequest()
	r.Headers.AddRaw(HeaderHost, "example.com")
	r.bindServerContext("http", 80, "localhost", hosts)
	r.rawPath = "/api/widgets"

	vh := r.SelectedVirtualHost()
	if vh == nil {
		t.Fatal("SelectedVirtualHost returned nil")
	}
	ctx := r.SelectedContext()
	if ctx == nil || ctx.Path != "/api" {
		t.Fatalf("SelectedContext = %+v, want /api", ctx)
	}
	h, ok := ctx.Handler(MethodGET)
	if !ok {
		t.Fatal("expected a GET handler on /api")
	}
	h(nil, r)
	if !called {
		t.Error("handler was not actually reachable through SelectedContext")
	}
}

func TestRequestSetPathInvalidatesContextCache(t *testing.T) {
	hosts := newTestHostTable(func(v *VirtualHost) {
		v.AddContext("/new", MethodGET, func(w *Response, r *Request) int { return 0 })
	})
	r := NewRequest()
	r.bindServerContext("http", 80, "localhost", hosts)
	r.rawPath = "/old"
	r.SelectedContext()

	r.SetPath("/new")
	ctx := r.SelectedContext()
	if ctx == nil || ctx.Path != "/new" {
		t.Fatalf("SelectedContext after SetPath = %+v, want /new", ctx)
	}
}

func TestRequestGetBaseURLPrefersURIHostThenHostHeaderThenLocal(t *testing.T) {
	r := NewRequest()
	r.scheme = "http"
	r.serverPort = 8080
	r.localHostname = "box"
	r.Headers.AddRaw(HeaderHost, "from-header:9000")

	u, err := r.GetBaseURL()
	if err != nil {
		t.Fatalf("GetBaseURL: %v", err)
	}
	if u.Host != "from-header:8080" {
		t.Errorf("Host = %q, want from-header:8080 (port from server, not Host header)", u.Host)
	}

	r2 := NewRequest()
	r2.scheme = "https"
	r2.serverPort = 443
	r2.localHostname = "box"
	u2, err := r2.GetBaseURL()
	if err != nil {
		t.Fatalf("GetBaseURL: %v", err)
	}
	if u2.Host != "box" {
		t.Errorf("Host = %q, want box with default port omitted", u2.Host)
	}
}

func TestRequestResetClearsEverything(t *testing.T) {
	hosts := newTestHostTable(func(v *VirtualHost) {})
	r := NewRequest()
	r.Method = MethodPOST
	r.Version = HTTP11
	r.rawPath = "/x"
	r.rawQuery = "a=1"
	r.Headers.AddRaw("X-Test", "1")
	r.Body = NewLimitedReader(strings.NewReader(""), 0)
	r.ContentLength = 5
	r.TransferEncoding = []string{"chunked"}
	r.bindServerContext("http", 80, "host", hosts)
	r.SelectedVirtualHost()

	r.Reset()

	if r.Method != "" || r.Version != "" || r.rawPath != "" || r.rawQuery != "" {
		t.Error("Reset left request-line fields populated")
	}
	if r.Headers.Len() != 0 {
		t.Error("Reset left headers populated")
	}
	if r.Body != nil {
		t.Error("Reset left Body set")
	}
	if r.ContentLength != -1 {
		t.Errorf("ContentLength after Reset = %d, want -1", r.ContentLength)
	}
	if r.vhost != nil || r.hostTable != nil {
		t.Error("Reset left cached host/vhost state")
	}
}

// TestSetupBodyMergesChunkedTrailers is a regression test: SetupBody used
// to build a chunked body without KeepTrailers, so trailer fields were
// parsed only to be discarded instead of folded into the request's
// headers once the body is fully drained.
func TestSetupBodyMergesChunkedTrailers(t *testing.T) {
	raw := "5\r\nhello\r\n0\r\nX-Checksum: abc123\r\n\r\n"
	r := NewRequest()
	r.TransferEncoding = []string{"chunked"}
	SetupBody(r, bufio.NewReader(strings.NewReader(raw)))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("reading chunked body: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q, want hello", body)
	}
	if err := r.Body.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if v, ok := r.Headers.Get("X-Checksum"); !ok || v != "abc123" {
		t.Errorf("X-Checksum after Drain = %q, %v, want abc123, true", v, ok)
	}
}

// TestSetupBodyMergesDuplicateTrailerWithExistingHeader covers the
// duplicate-concatenation rule parseHeaders already applies to regular
// header folds: a trailer field repeating an existing header name must
// be joined with ", " rather than overwriting or being dropped.
func TestSetupBodyMergesDuplicateTrailerWithExistingHeader(t *testing.T) {
	raw := "0\r\nX-Tag: second\r\n\r\n"
	r := NewRequest()
	r.TransferEncoding = []string{"chunked"}
	r.Headers.AddRaw("X-Tag", "first")
	SetupBody(r, bufio.NewReader(strings.NewReader(raw)))

	if _, err := io.ReadAll(r.Body); err != nil {
		t.Fatalf("reading chunked body: %v", err)
	}
	if err := r.Body.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if v, ok := r.Headers.Get("X-Tag"); !ok || v != "first, second" {
		t.Errorf("X-Tag after Drain = %q, %v, want \"first, second\", true", v, ok)
	}
}
