// Package router implements the Resource Router: it maps an inbound
// fasthttp request path onto one of the IIIF Image API v1/v2/v3 or Deep
// Zoom endpoints (or one of a handful of static/operational routes),
// extracts and validates its parameters, and drives the Information
// Request Handler / Image Request Handler accordingly.
package router

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/common/requestid"
	"github.com/galia-project/iiifcore/internal/config"
	"github.com/galia-project/iiifcore/internal/handler"
	"github.com/galia-project/iiifcore/internal/infofactory"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// CallbackFactory builds a fresh pair of callbacks for one request. A
// deployment that needs per-request auth state (session lookups, request
// headers) supplies one; Router falls back to the all-permit defaults
// when nil.
type CallbackFactory interface {
	ImageCallback(ctx *fasthttp.RequestCtx) handler.ImageCallback
	InfoCallback(ctx *fasthttp.RequestCtx) handler.InfoCallback
}

// Router dispatches HTTP requests to the Information/Image Request
// Handlers per the endpoint surface of the three IIIF Image API versions
// and Deep Zoom, plus a small set of static/operational routes.
type Router struct {
	Config    *config.ServerConfig
	Info      *handler.InfoHandler
	Image     *handler.ImageHandler
	Factory   *infofactory.Factory
	Formats   *iiif.FormatRegistry
	Callbacks CallbackFactory
	Logger    *zap.Logger
}

// versionRoute binds one enabled API version's prefix to its APIVersion
// tag.
type versionRoute struct {
	version APIVersionTag
	prefix  string
}

// APIVersionTag mirrors iiif.APIVersion so this package doesn't need to
// import the zero-value ambiguity of an untagged int.
type APIVersionTag = iiif.APIVersion

// Handler returns a fasthttp.RequestHandler bound to this Router.
func (rt *Router) Handler() fasthttp.RequestHandler {
	return rt.handle
}

func (rt *Router) handle(ctx *fasthttp.RequestCtx) {
	customRequestID := string(ctx.Request.Header.Peek("X-Request-ID"))
	requestID := requestid.GenerateRequestID(customRequestID)
	ctx.Response.Header.Set("X-Request-ID", requestID)

	path := strings.TrimPrefix(string(ctx.Path()), "/")

	if handled := rt.serveStatic(ctx, path); handled {
		return
	}

	for _, vr := range rt.enabledVersions() {
		rest, ok := stripPrefix(path, vr.prefix)
		if !ok {
			continue
		}
		rt.dispatchVersion(ctx, vr.version, rest)
		return
	}

	if rt.Config.Endpoints.DZIEnabled {
		if rest, ok := stripPrefix(path, rt.Config.Endpoints.DZIPrefix); ok {
			rt.dispatchDZI(ctx, rest)
			return
		}
	}

	writeError(ctx, fasthttp.StatusNotFound, "no route matches this path")
}

func (rt *Router) enabledVersions() []versionRoute {
	var out []versionRoute
	ep := rt.Config.Endpoints
	if ep.IIIF1Enabled {
		out = append(out, versionRoute{version: iiif.APIv1, prefix: ep.IIIF1Prefix})
	}
	if ep.IIIF2Enabled {
		out = append(out, versionRoute{version: iiif.APIv2, prefix: ep.IIIF2Prefix})
	}
	if ep.IIIF3Enabled {
		out = append(out, versionRoute{version: iiif.APIv3, prefix: ep.IIIF3Prefix})
	}
	return out
}

// stripPrefix reports whether path is prefix or prefix/... and returns
// the remainder (without a leading slash).
func stripPrefix(path, prefix string) (string, bool) {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path, true
	}
	if path == prefix {
		return "", true
	}
	if strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix)+1:], true
	}
	return "", false
}

func (rt *Router) dispatchVersion(ctx *fasthttp.RequestCtx, version iiif.APIVersion, rest string) {
	if !ctx.IsOptions() {
		if !ctx.IsGet() && !ctx.IsHead() {
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
	}

	if rest == "" {
		writeError(ctx, fasthttp.StatusNotFound, "missing identifier")
		return
	}

	if id, ok := iiif.IsV1InfoPath(rest); ok {
		if ctx.IsOptions() {
			writeOptions(ctx, "GET, HEAD, OPTIONS")
			return
		}
		rt.handleInfoRequest(ctx, version, id)
		return
	}

	if version != iiif.APIv1 {
		if meta, ok := iiif.IsV2BarePath(rest); ok {
			if ctx.IsOptions() {
				writeOptions(ctx, "GET, HEAD, OPTIONS")
				return
			}
			rt.redirectToInfo(ctx, version, meta)
			return
		}
	}

	if ctx.IsOptions() {
		writeOptions(ctx, "GET, HEAD, OPTIONS")
		return
	}

	var params iiif.Parameters
	var err error
	switch version {
	case iiif.APIv1:
		params, err = iiif.ParseV1ImagePath(rest)
	case iiif.APIv2:
		params, err = iiif.ParseV2ImagePath(rest)
	case iiif.APIv3:
		params, err = iiif.ParseV3ImagePath(rest)
	}
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	if version == iiif.APIv2 {
		params.RestrictToSizes = rt.Config.Imaging.RestrictToSizes
	}

	rt.handleImageRequest(ctx, params)
}

func (rt *Router) dispatchDZI(ctx *fasthttp.RequestCtx, rest string) {
	if ctx.IsOptions() {
		writeOptions(ctx, "GET, HEAD, OPTIONS")
		return
	}
	if !ctx.IsGet() && !ctx.IsHead() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rest == "" {
		writeError(ctx, fasthttp.StatusNotFound, "missing identifier")
		return
	}

	if id, ok := iiif.IsDZIDescriptorPath(rest); ok {
		rt.handleDZIDescriptor(ctx, id)
		return
	}

	tile, err := iiif.ParseDZITilePath(rest)
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	rt.handleDZITile(ctx, tile)
}
