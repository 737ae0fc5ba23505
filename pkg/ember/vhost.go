package ember

import (
	"strings"
	"sync"
)

// Handler serves one (method, context) pair. Returning 0 means it already
// sent a complete response and the dispatcher should not generate one of
// its own; any other value, if the handler has not sent headers itself,
// asks the dispatcher to send a default response body for that status
// (spec §4.10 step 1).
type Handler func(w *Response, r *Request) int

// ContextInfo is one routable path within a VirtualHost: its method table
// and, implicitly via its host's Methods, its contribution to the host's
// overall Allow set (spec §3 "ContextInfo", §4.9).
type ContextInfo struct {
	Path string // without trailing slash; "" for the catch-all root

	mu       sync.RWMutex
	handlers map[string]Handler
}

func newContextInfo(path string) *ContextInfo {
	return &ContextInfo{Path: path, handlers: make(map[string]Handler)}
}

// Handler returns the handler registered for method, if any. Safe to call
// concurrently with other lookups (spec §5: handler tables are read-mostly
// and queried by workers under concurrent hash semantics once serving).
func (c *ContextInfo) Handler(method string) (Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[method]
	return h, ok
}

// Methods returns the set of methods this context has handlers for.
func (c *ContextInfo) Methods() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.handlers))
	for m := range c.handlers {
		out = append(out, m)
	}
	return out
}

func (c *ContextInfo) set(method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = h
}

// VirtualHost groups contexts under one served hostname (spec §3
// "VirtualHost"). The zero value is not usable; construct with
// NewVirtualHost. Configuration methods (AddContext) are documented as
// safe only before the server starts serving; Methods/GetContext may be
// called concurrently by workers afterward (spec §5).
type VirtualHost struct {
	Name           string
	Aliases        []string
	DirectoryIndex string // "" disables directory-index rewriting
	AllowGenerated bool

	mu          sync.RWMutex
	contexts    map[string]*ContextInfo
	empty       *ContextInfo
	hostMethods map[string]bool
}

// NewVirtualHost constructs a VirtualHost named name (empty for the
// default host) with the conventional index.html directory index.
func NewVirtualHost(name string) *VirtualHost {
	return &VirtualHost{
		Name:           name,
		DirectoryIndex: "index.html",
		contexts:       make(map[string]*ContextInfo),
		empty:          newContextInfo(""),
		hostMethods:    make(map[string]bool),
	}
}

// AddContext registers handler for (path, method). path is normalized by
// stripping any trailing slash, per spec §4.9. Registering a handler also
// records method into the host's overall method set (spec §3 invariant).
func (v *VirtualHost) AddContext(path, method string, handler Handler) {
	path = strings.TrimSuffix(path, "/")

	v.mu.Lock()
	ctx, ok := v.contexts[path]
	if !ok {
		ctx = newContextInfo(path)
		v.contexts[path] = ctx
	}
	v.hostMethods[method] = true
	v.mu.Unlock()

	ctx.set(method, handler)
}

// Methods returns every method any context of this host supports, used for
// the server-wide "OPTIONS *" Allow set (spec §4.10 step 4).
func (v *VirtualHost) Methods() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.hostMethods))
	for m := range v.hostMethods {
		out = append(out, m)
	}
	return out
}

// GetContext resolves path to the most specific registered ContextInfo by
// walking ancestor paths (spec §4.9): strip a trailing slash, then strip
// successive trailing "/segment"s until a mapping exists or the path
// becomes the root; falls back to the host's empty (catch-all) context.
func (v *VirtualHost) GetContext(path string) *ContextInfo {
	path = strings.TrimSuffix(path, "/")

	v.mu.RLock()
	defer v.mu.RUnlock()
	for {
		if ctx, ok := v.contexts[path]; ok {
			return ctx
		}
		if path == "" {
			return v.empty
		}
		idx := strings.LastIndexByte(path, '/')
		if idx < 0 {
			return v.empty
		}
		path = path[:idx]
	}
}

// HostTable maps a request's Host header to the VirtualHost that should
// serve it (spec §4.9). The empty name is the default host.
type HostTable struct {
	mu    sync.RWMutex
	hosts map[string]*VirtualHost
}

// NewHostTable returns an empty host table.
func NewHostTable() *HostTable {
	return &HostTable{hosts: make(map[string]*VirtualHost)}
}

// Register adds host under its own name and every alias. A host with an
// empty Name becomes (or replaces) the default.
func (t *HostTable) Register(host *VirtualHost) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hosts[strings.ToLower(host.Name)] = host
	for _, alias := range host.Aliases {
		t.hosts[strings.ToLower(alias)] = host
	}
}

// Default returns the table's default VirtualHost, registering an empty
// one first if none exists yet.
func (t *HostTable) Default() *VirtualHost {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.hosts[""]
	if !ok {
		h = NewVirtualHost("")
		t.hosts[""] = h
	}
	return h
}

// Resolve maps a request's Host header value (which may carry a ":port"
// suffix) to its VirtualHost, falling back to the default host.
func (t *HostTable) Resolve(hostHeader string) *VirtualHost {
	name := hostHeader
	if idx := strings.LastIndexByte(name, ':'); idx >= 0 {
		name = name[:idx]
	}
	name = strings.ToLower(strings.TrimSpace(name))

	t.mu.RLock()
	h, ok := t.hosts[name]
	t.mu.RUnlock()
	if ok {
		return h
	}
	return t.Default()
}
