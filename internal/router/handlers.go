package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/galia-project/iiifcore/internal/handler"
	"github.com/galia-project/iiifcore/internal/reqctx"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// v1ComplianceProfile is the Link-header value IIIF Image API v1 expects
// in place of v2/v3's canonical-URI link; it names the compliance level
// this server implements rather than pointing back at the request.
const v1ComplianceProfile = `<http://library.stanford.edu/iiif/image-api/compliance.html#level2>;rel="profile"`

// decodeIdentifier reverses percent-encoding and the configured
// slash_substitute token, turning a wire-form path segment back into an
// Identifier.
func (rt *Router) decodeIdentifier(raw string) (iiif.Identifier, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", iiif.IllegalArgument("invalid percent-encoding in identifier %q", raw)
	}
	if sub := rt.Config.SlashSubstitute; sub != "" {
		decoded = strings.ReplaceAll(decoded, sub, "/")
	}
	return iiif.Identifier(decoded), nil
}

func (rt *Router) imageCallback(ctx *fasthttp.RequestCtx) handler.ImageCallback {
	if rt.Callbacks != nil {
		return rt.Callbacks.ImageCallback(ctx)
	}
	return handler.DefaultImageCallback{}
}

func (rt *Router) infoCallback(ctx *fasthttp.RequestCtx) handler.InfoCallback {
	if rt.Callbacks != nil {
		return rt.Callbacks.InfoCallback(ctx)
	}
	return handler.DefaultInfoCallback{}
}

// normalizeMeta applies the Meta-Identifier normalization rule, issuing a
// 301 to the canonical form when it redirects. It returns (meta, true) to
// continue processing or (zero, false) if it already wrote a redirect.
func (rt *Router) normalizeMeta(ctx *fasthttp.RequestCtx, prefix string, meta iiif.MetaIdentifier, tail string) (iiif.MetaIdentifier, bool) {
	normalized, changed := meta.Normalize()
	if !changed {
		return meta, true
	}
	substitute := func(id iiif.Identifier) string {
		if rt.Config.SlashSubstitute == "" {
			return string(id)
		}
		return strings.ReplaceAll(string(id), "/", rt.Config.SlashSubstitute)
	}
	location := "/" + strings.Trim(prefix, "/") + "/" + normalized.ForURI(substitute)
	if tail != "" {
		location += "/" + tail
	}
	ctx.Redirect(location, fasthttp.StatusMovedPermanently)
	return iiif.MetaIdentifier{}, false
}

func (rt *Router) handleInfoRequest(ctx *fasthttp.RequestCtx, version iiif.APIVersion, rawMeta string) {
	meta, err := iiif.ParseMetaIdentifier(rawMeta)
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	prefix := rt.prefixFor(version)
	meta, ok := rt.normalizeMeta(ctx, prefix, meta, "info.json")
	if !ok {
		return
	}

	identifier, err := rt.decodeIdentifier(string(meta.Identifier))
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	meta.Identifier = identifier

	rc := reqctx.New()
	rc.Set(reqctx.FieldRequestURI, string(ctx.RequestURI()))
	info, ok, err := rt.Info.Handle(context.Background(), identifier, rc, rt.infoCallback(ctx))
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	id := rt.canonicalID(prefix, meta)
	body, contentType := rt.renderInfo(version, info, id, meta)

	ctx.SetContentType(contentType)
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	setCommonHeaders(ctx)
	ctx.SetBody(body)
}

func (rt *Router) renderInfo(version iiif.APIVersion, info iiif.Info, id string, meta iiif.MetaIdentifier) ([]byte, string) {
	switch version {
	case iiif.APIv1:
		doc := rt.Factory.BuildV1(info, id, meta.Scale)
		body, _ := json.Marshal(doc)
		return body, "application/json"
	case iiif.APIv2:
		doc := rt.Factory.BuildV2(info, id, meta.Scale, rt.Config.Imaging.AllowUpscaling)
		body, _ := json.Marshal(doc)
		return body, `application/json; profile="http://iiif.io/api/image/2/context.json"`
	default:
		doc := rt.Factory.BuildV3(info, id, meta.Scale, rt.Config.Imaging.AllowUpscaling)
		body, _ := json.Marshal(doc)
		return body, `application/ld+json;profile="http://iiif.io/api/image/3/context.json"`
	}
}

func (rt *Router) prefixFor(version iiif.APIVersion) string {
	switch version {
	case iiif.APIv1:
		return rt.Config.Endpoints.IIIF1Prefix
	case iiif.APIv2:
		return rt.Config.Endpoints.IIIF2Prefix
	default:
		return rt.Config.Endpoints.IIIF3Prefix
	}
}

func (rt *Router) canonicalID(prefix string, meta iiif.MetaIdentifier) string {
	base := strings.TrimRight(rt.Config.BaseURI, "/")
	substitute := func(id iiif.Identifier) string {
		if rt.Config.SlashSubstitute == "" {
			return string(id)
		}
		return strings.ReplaceAll(string(id), "/", rt.Config.SlashSubstitute)
	}
	return base + "/" + strings.Trim(prefix, "/") + "/" + meta.ForURI(substitute)
}

func (rt *Router) redirectToInfo(ctx *fasthttp.RequestCtx, version iiif.APIVersion, meta iiif.MetaIdentifier) {
	prefix := rt.prefixFor(version)
	substitute := func(id iiif.Identifier) string {
		if rt.Config.SlashSubstitute == "" {
			return string(id)
		}
		return strings.ReplaceAll(string(id), "/", rt.Config.SlashSubstitute)
	}
	location := "/" + strings.Trim(prefix, "/") + "/" + meta.ForURI(substitute) + "/info.json"
	ctx.Redirect(location, fasthttp.StatusSeeOther)
}

func (rt *Router) handleImageRequest(ctx *fasthttp.RequestCtx, params iiif.Parameters) {
	prefix := rt.prefixFor(params.Version)
	tail := params.Region.String() + "/" + params.Size.String() + "/" + params.Rotation.String() + "/" + string(params.Quality) + "." + params.FormatExt
	meta, ok := rt.normalizeMeta(ctx, prefix, params.Meta, tail)
	if !ok {
		return
	}
	params.Meta = meta

	identifier, err := rt.decodeIdentifier(string(meta.Identifier))
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	meta.Identifier = identifier
	params.Meta.Identifier = identifier

	rc := reqctx.New()
	rc.Set(reqctx.FieldRequestURI, string(ctx.RequestURI()))

	background := context.Background()
	info, ok, err := rt.Info.Handle(background, identifier, rc, handler.DefaultInfoCallback{})
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	ops, err := iiif.Build(params, info.Width, info.Height, rt.Formats, rt.Config.Imaging.MaxPixels)
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}

	if params.RestrictToSizes {
		effW, effH := rt.Factory.EffectiveDimensions(info, params.Meta.Scale)
		outW, outH := finalDimensions(ops, info.Width, info.Height)
		if !sizeIsAdvertised(outW, outH, rt.Factory.AdvertisedSizes(effW, effH)) {
			writeError(ctx, fasthttp.StatusForbidden, "requested size is not in the advertised sizes list")
			return
		}
	}

	format, err := rt.Formats.Lookup(params.FormatExt)
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}

	ctx.SetContentType(format.MediaType)
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	rt.setImageResponseHeaders(ctx, params.Version, rt.canonicalID(prefix, meta)+"/"+tail)
	ctx.Response.Header.Set("X-Powered-By", "iiifcore")
	if disposition := string(ctx.QueryArgs().Peek("response-content-disposition")); disposition != "" {
		ctx.Response.Header.Set("Content-Disposition", disposition)
	}

	served, err := rt.Image.Handle(background, identifier, ops, rc, rt.imageCallback(ctx), ctx.Response.BodyWriter())
	if err != nil {
		ctx.Response.Reset()
		writeIIIFError(ctx, err)
		return
	}
	if !served {
		ctx.Response.Reset()
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

func (rt *Router) handleDZIDescriptor(ctx *fasthttp.RequestCtx, rawIdentifier iiif.Identifier) {
	identifier, err := rt.decodeIdentifier(string(rawIdentifier))
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}

	rc := reqctx.New()
	info, ok, err := rt.Info.Handle(context.Background(), identifier, rc, handler.DefaultInfoCallback{})
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	ext := "jpg"
	if len(info.Formats) > 0 {
		ext = info.Formats[0].Extension
	}
	doc := rt.Factory.BuildDZI(info, ext)

	ctx.SetContentType("application/xml")
	setCommonHeaders(ctx)
	fmt.Fprintf(ctx, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
		`<Image xmlns="http://schemas.microsoft.com/deepzoom/2008" Format="%s" Overlap="%d" TileSize="%d">`+"\n"+
		`  <Size Width="%d" Height="%d"/>`+"\n</Image>",
		doc.FormatExt, doc.Overlap, doc.TileSize, doc.Width, doc.Height)
}

func (rt *Router) handleDZITile(ctx *fasthttp.RequestCtx, tile iiif.DZITileRequest) {
	identifier, err := rt.decodeIdentifier(string(tile.Identifier))
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}

	rc := reqctx.New()
	info, ok, err := rt.Info.Handle(context.Background(), identifier, rc, handler.DefaultInfoCallback{})
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	tileSize := info.TileSize.Width
	if tileSize <= 0 {
		tileSize = rt.Config.Imaging.TileSize
	}
	if !iiif.ValidateDZITile(tile.Level, tile.Col, tile.Row, info.Width, info.Height, tileSize) {
		writeError(ctx, fasthttp.StatusNotFound, "tile coordinates out of range")
		return
	}

	scale := dziLevelScale(tile.Level, info.Width, info.Height)
	levelW := scaleRound(info.Width, scale)
	levelH := scaleRound(info.Height, scale)

	regionX := float64(tile.Col*tileSize) / scale
	regionY := float64(tile.Row*tileSize) / scale
	regionW := float64(tileSize) / scale
	regionH := float64(tileSize) / scale
	if regionX+regionW > float64(info.Width) {
		regionW = float64(info.Width) - regionX
	}
	if regionY+regionH > float64(info.Height) {
		regionH = float64(info.Height) - regionY
	}

	outW := tileSize
	if tile.Col*tileSize+tileSize > levelW {
		outW = levelW - tile.Col*tileSize
	}
	outH := tileSize
	if tile.Row*tileSize+tileSize > levelH {
		outH = levelH - tile.Row*tileSize
	}

	params := iiif.Parameters{
		Version:   iiif.APIv3,
		Meta:      iiif.MetaIdentifier{Identifier: identifier},
		Region:    iiif.Region{Kind: iiif.RegionPixels, X: regionX, Y: regionY, W: regionW, H: regionH},
		Size:      iiif.Size{Kind: iiif.SizeAbsolute, W: outW, H: outH},
		Quality:   iiif.QualityDefault,
		FormatExt: tile.FormatExt,
	}

	ops, err := iiif.Build(params, info.Width, info.Height, rt.Formats, 0)
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}

	format, err := rt.Formats.Lookup(tile.FormatExt)
	if err != nil {
		writeIIIFError(ctx, err)
		return
	}
	ctx.SetContentType(format.MediaType)
	setCommonHeaders(ctx)

	served, err := rt.Image.Handle(context.Background(), identifier, ops, rc, handler.DefaultImageCallback{}, ctx.Response.BodyWriter())
	if err != nil {
		ctx.Response.Reset()
		writeIIIFError(ctx, err)
		return
	}
	if !served {
		ctx.Response.Reset()
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

// dziLevelScale returns the scale factor of the deepest pyramid level at
// or above the requested level for a (width, height) full-resolution
// image, matching OpenSeadragon's "level 0 is 1x1" convention.
func dziLevelScale(level, width, height int) float64 {
	dim := width
	if height > dim {
		dim = height
	}
	maxLevel := 0
	for (1 << maxLevel) < dim {
		maxLevel++
	}
	diff := maxLevel - level
	if diff <= 0 {
		return 1
	}
	return 1.0 / float64(int(1)<<uint(diff))
}

func scaleRound(dim int, scale float64) int {
	v := int(float64(dim)*scale + 0.5)
	if v < 1 {
		v = 1
	}
	return v
}

func setCommonHeaders(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Vary", "Accept")
	ctx.Response.Header.Set("X-Powered-By", "iiifcore")
}

// setImageResponseHeaders sets the image-response-only headers the common
// set omits: the full Vary entry list, Cache-Control/Last-Modified gated
// by client_cache config and the cache query parameter, and Link (a
// canonical-request URI in v2/v3, a compliance-profile URI in v1).
func (rt *Router) setImageResponseHeaders(ctx *fasthttp.RequestCtx, version iiif.APIVersion, canonicalURI string) {
	ctx.Response.Header.Set("Vary", "Accept, Accept-Charset, Accept-Encoding, Accept-Language, Origin")

	if version == iiif.APIv1 {
		ctx.Response.Header.Set("Link", v1ComplianceProfile)
	} else {
		ctx.Response.Header.Set("Link", fmt.Sprintf(`<%s>;rel="canonical"`, canonicalURI))
	}

	switch strings.ToLower(string(ctx.QueryArgs().Peek("cache"))) {
	case "nocache", "false":
		return
	}

	// "recache" and the default case both reach here: per the source's
	// resolved open question, recache re-populates the variant cache when
	// it's enabled but is otherwise identical to the default response —
	// it never suppresses the client-cache headers.
	cc := rt.Config.ClientCache
	if !cc.Enabled {
		return
	}
	ctx.Response.Header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", cc.MaxAge))
	ctx.Response.Header.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
}

// finalDimensions walks ops to find the width/height the processing
// pipeline actually produces, so restrict_to_sizes can check it against
// the advertised sizes list. It starts from the source's full dimensions
// and applies the last crop/scale step of each kind, mirroring how Build
// folds region then size into the list.
func finalDimensions(ops iiif.OperationList, srcW, srcH int) (int, int) {
	w, h := srcW, srcH
	for _, op := range ops.Operations {
		switch op.Kind {
		case iiif.OpCrop:
			w, h = int(op.CropW), int(op.CropH)
		case iiif.OpScale:
			w, h = op.ScaleW, op.ScaleH
		}
	}
	return w, h
}

// sizeIsAdvertised reports whether (w, h) appears in sizes.
func sizeIsAdvertised(w, h int, sizes []iiif.ResolutionLevel) bool {
	for _, s := range sizes {
		if s.Width == w && s.Height == h {
			return true
		}
	}
	return false
}

func writeOptions(ctx *fasthttp.RequestCtx, allow string) {
	ctx.SetStatusCode(fasthttp.StatusNoContent)
	ctx.Response.Header.Set("Allow", allow)
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", allow)
}
