package router

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
)

// serveStatic handles the small set of non-IIIF operational routes that
// take precedence over the generic image/info endpoints: the landing
// page, health/status probes, the read-only configuration dump, and the
// task-status lookup. It reports whether path was one of these routes
// (even if it answered with an error status).
func (rt *Router) serveStatic(ctx *fasthttp.RequestCtx, path string) bool {
	switch {
	case path == "":
		rt.serveLanding(ctx)
		return true
	case path == "health":
		rt.serveHealth(ctx)
		return true
	case path == "status":
		rt.serveStatus(ctx)
		return true
	case path == "configuration":
		rt.serveConfiguration(ctx)
		return true
	case path == "tasks" || strings.HasPrefix(path, "tasks/"):
		rt.serveTasks(ctx, strings.TrimPrefix(path, "tasks"))
		return true
	}
	return false
}

func (rt *Router) serveLanding(ctx *fasthttp.RequestCtx) {
	if ctx.IsOptions() {
		writeOptions(ctx, "GET, HEAD, OPTIONS")
		return
	}
	if !ctx.IsGet() && !ctx.IsHead() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx.SetContentType("text/html; charset=utf-8")
	ctx.SetBodyString("<html><head><title>Image Server</title></head><body><p>IIIF Image API server.</p></body></html>")
}

func (rt *Router) serveHealth(ctx *fasthttp.RequestCtx) {
	if ctx.IsOptions() {
		writeOptions(ctx, "GET, HEAD, OPTIONS")
		return
	}
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(map[string]string{"status": "UP"})
	ctx.SetBody(body)
}

func (rt *Router) serveStatus(ctx *fasthttp.RequestCtx) {
	if ctx.IsOptions() {
		writeOptions(ctx, "GET, HEAD, OPTIONS")
		return
	}
	ctx.SetContentType("application/json")
	formats := rt.Formats.All()
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.Extension)
	}
	body, _ := json.Marshal(map[string]interface{}{
		"status":  "UP",
		"formats": names,
	})
	ctx.SetBody(body)
}

func (rt *Router) serveConfiguration(ctx *fasthttp.RequestCtx) {
	if ctx.IsOptions() {
		writeOptions(ctx, "GET, HEAD, OPTIONS")
		return
	}
	if !ctx.IsGet() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(map[string]interface{}{
		"endpoints": rt.Config.Endpoints,
		"imaging":   rt.Config.Imaging,
		"cache":     rt.Config.Cache,
	})
	ctx.SetBody(body)
}

func (rt *Router) serveTasks(ctx *fasthttp.RequestCtx, idSuffix string) {
	if ctx.IsOptions() {
		writeOptions(ctx, "GET, HEAD, OPTIONS")
		return
	}
	if !ctx.IsGet() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(idSuffix, "/")
	if id == "" {
		ctx.SetContentType("application/json")
		ctx.SetBody([]byte("[]"))
		return
	}
	writeError(ctx, fasthttp.StatusNotFound, "no such task")
}
