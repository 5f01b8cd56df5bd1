// Package reqctx implements the per-request, live-view Request Context: a
// small bag of fields a handler populates as it progresses through its
// state machine, and that a delegate/callback can read at any point to see
// the latest values (never the state from when it was first handed the
// context).
package reqctx

import "sync"

// Context is a concurrency-safe, per-request key/value bag. A single
// Context is created per inbound request and threaded through the
// handler's state machine and its callback invocations; it is never shared
// across requests.
type Context struct {
	mu     sync.RWMutex
	fields map[string]any
}

// New returns an empty Context with every field absent.
func New() *Context {
	return &Context{fields: make(map[string]any)}
}

// Set stores a value for key, overwriting any previous value.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[key] = value
}

// Get returns the current value for key and whether it is present.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.fields[key]
	return v, ok
}

// GetString is a convenience accessor for string-typed fields; it returns
// "" if the field is absent or holds a different type.
func (c *Context) GetString(key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// View is a live, read-through window onto a Context. It holds no data
// of its own: every accessor re-reads the backing Context under its
// lock, so a Set on the Context made after a View was taken is visible
// through that same View on the next call.
type View struct {
	c *Context
}

// Get returns the current value for key and whether it is present,
// reflecting the Context's state at the time of this call.
func (v *View) Get(key string) (any, bool) {
	return v.c.Get(key)
}

// GetString is a convenience accessor mirroring Context.GetString.
func (v *View) GetString(key string) string {
	return v.c.GetString(key)
}

// Keys returns the field names currently populated, as of this call.
func (v *View) Keys() []string {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	keys := make([]string, 0, len(v.c.fields))
	for k := range v.c.fields {
		keys = append(keys, k)
	}
	return keys
}

// AsMap returns a live view over this Context. Per the data model, the
// view is not a point-in-time copy: a later Set on c is visible through
// calls made on the returned View, including calls made after AsMap
// itself returned.
func (c *Context) AsMap() *View {
	return &View{c: c}
}

// Well-known field names populated by the Information/Image Request
// Handlers, per the data model's described fields.
const (
	FieldIdentifier = "identifier"
	FieldLocalURI   = "local_uri"
	FieldRequestURI = "request_uri"
	FieldPageCount  = "page_count"
	FieldFullWidth  = "full_width"
	FieldFullHeight = "full_height"
	FieldMetadata   = "metadata"
)
