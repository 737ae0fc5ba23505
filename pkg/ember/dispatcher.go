package ember

import (
	"strings"
	"time"
)

var zeroTime time.Time

// alwaysAllowed is the minimum Allow set every context offers regardless
// of its registered handlers (spec §4.10 step 4).
var alwaysAllowed = []string{MethodGET, MethodHEAD, MethodTRACE, MethodOPTIONS}

// Dispatch routes a parsed, preprocessed request to its handler and
// produces the fallback responses spec §4.10 defines for the cases no
// handler covers. Built directly from spec §4.10's numbered rules; the
// teacher has no equivalent (shockwave's server package delegates
// entirely to net/http's own ServeMux).
func Dispatch(resp *Response, req *Request) error {
	vhost := req.SelectedVirtualHost()
	if vhost == nil {
		return resp.SendError(500, "no virtual host configured")
	}

	if req.Path() == "*" && req.Method == MethodOPTIONS {
		return dispatchServerWideOptions(resp, vhost)
	}

	originalPath := req.Path()
	rewrote := applyDirectoryIndex(req, vhost)

	status, err := tryHandler(resp, req)
	if err != nil {
		return err
	}
	if rewrote && status == 404 {
		req.SetPath(originalPath)
		status, err = tryHandler(resp, req)
		if err != nil {
			return err
		}
	}
	if status != 0 {
		if status != -1 {
			return resp.SendError(status, "")
		}
		return nil
	}

	ctx := req.SelectedContext()
	allowed := allowSet(ctx)
	resp.Headers.Set(HeaderAllow, strings.Join(allowed, ", "))

	if req.Method == MethodOPTIONS {
		resp.Headers.Set(HeaderContentLength, "0")
		return resp.SendHeaders(200, 0, zeroTime, "", "", nil)
	}
	if vhost.hasMethod(req.Method) {
		return resp.SendError(405, "")
	}
	return resp.SendError(501, "")
}

// tryHandler attempts to dispatch req to its context's handler (spec
// §4.10 steps 1-3: exact method match, HEAD-as-GET, TRACE echo). Return
// value: -1 means handled silently (headers already sent, nothing more
// to do); 0 means no handler covers this method (fall through to the
// Allow/405/501 path); any other value is a status the caller should
// emit as a default error response.
func tryHandler(resp *Response, req *Request) (int, error) {
	ctx := req.SelectedContext()

	if h, ok := ctx.Handler(req.Method); ok {
		return statusFromHandler(resp, req, h)
	}
	if req.Method == MethodHEAD {
		if h, ok := ctx.Handler(MethodGET); ok {
			resp.discardBody = true
			return statusFromHandler(resp, req, h)
		}
	}
	if req.Method == MethodTRACE {
		return -1, dispatchTrace(resp, req)
	}
	return 0, nil
}

func statusFromHandler(resp *Response, req *Request, h Handler) (int, error) {
	status := h(resp, req)
	if status == 0 || resp.HeadersSent() {
		return -1, nil
	}
	return status, nil
}

// applyDirectoryIndex implements spec §4.10's final paragraph: when the
// path ends in "/" and the host has a directory index configured, the
// path is temporarily rewritten to path+index. Returns true if a rewrite
// took place.
func applyDirectoryIndex(req *Request, vhost *VirtualHost) bool {
	if vhost.DirectoryIndex == "" || !strings.HasSuffix(req.Path(), "/") {
		return false
	}
	req.SetPath(req.Path() + vhost.DirectoryIndex)
	return true
}

func dispatchServerWideOptions(resp *Response, vhost *VirtualHost) error {
	allowed := append([]string{}, alwaysAllowed...)
	for _, m := range vhost.Methods() {
		if !contains(allowed, m) {
			allowed = append(allowed, m)
		}
	}
	resp.Headers.Set(HeaderAllow, strings.Join(allowed, ", "))
	resp.Headers.Set(HeaderContentLength, "0")
	return resp.SendHeaders(200, 0, zeroTime, "", "", nil)
}

func dispatchTrace(resp *Response, req *Request) error {
	var b strings.Builder
	b.WriteString(req.Method + " " + req.Path())
	if req.RawQuery() != "" {
		b.WriteString("?" + req.RawQuery())
	}
	b.WriteString(" " + req.Version + "\r\n")
	for _, h := range req.Headers.All() {
		b.WriteString(h.Name + ": " + h.Value + "\r\n")
	}
	b.WriteString("\r\n")

	body := b.String()
	if err := resp.SendHeaders(200, int64(len(body)), zeroTime, "", "message/http", nil); err != nil {
		return err
	}
	if resp.discardBody {
		return nil
	}
	if _, err := resp.bw.Write([]byte(body)); err != nil {
		return err
	}
	if req.Body != nil {
		if _, err := resp.SendBody(req.Body, -1, nil); err != nil {
			return err
		}
	}
	return nil
}

func allowSet(ctx *ContextInfo) []string {
	allowed := append([]string{}, alwaysAllowed...)
	for _, m := range ctx.Methods() {
		if !contains(allowed, m) {
			allowed = append(allowed, m)
		}
	}
	return allowed
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// hasMethod reports whether any context of vhost registers method,
// distinguishing "no context supports this method at all" (→ 501) from
// "some other context would, but not this one" (→ 405), per spec §4.10
// steps 6-7.
func (v *VirtualHost) hasMethod(method string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hostMethods[method]
}
