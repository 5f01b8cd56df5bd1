package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/galia-project/iiifcore/pkg/iiif"
)

// writeError renders status/message using the §7 content-negotiation
// rule: text/html or application/xhtml+xml (in that preference order) get
// an HTML error page; application/json gets the {"status":…,"error":…}
// envelope; anything else gets text/plain.
func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	accept := string(ctx.Request.Header.Peek("Accept"))
	ctx.SetStatusCode(status)

	switch negotiate(accept) {
	case negotiateHTML:
		ctx.SetContentType("text/html; charset=utf-8")
		fmt.Fprintf(ctx, "<html><head><title>%d</title></head><body><h1>%d</h1><p>%s</p></body></html>",
			status, status, htmlEscape(message))
	case negotiateJSON:
		ctx.SetContentType("application/json")
		body, _ := json.Marshal(map[string]interface{}{"status": status, "error": message})
		ctx.SetBody(body)
	default:
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString(message)
	}
}

// writeIIIFError maps an *iiif.Error (or any error) to its HTTP status
// and writes it via writeError. A non-*iiif.Error is treated as Internal.
func writeIIIFError(ctx *fasthttp.RequestCtx, err error) {
	if ierr, ok := err.(*iiif.Error); ok {
		writeError(ctx, ierr.Kind.Status(), ierr.Error())
		return
	}
	writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
}

type negotiatedType int

const (
	negotiatePlain negotiatedType = iota
	negotiateHTML
	negotiateJSON
)

func negotiate(accept string) negotiatedType {
	lower := strings.ToLower(accept)
	htmlIdx := indexOfAny(lower, "text/html", "application/xhtml+xml")
	jsonIdx := strings.Index(lower, "application/json")
	switch {
	case htmlIdx >= 0 && (jsonIdx < 0 || htmlIdx < jsonIdx):
		return negotiateHTML
	case jsonIdx >= 0:
		return negotiateJSON
	default:
		return negotiatePlain
	}
}

func indexOfAny(s string, candidates ...string) int {
	best := -1
	for _, c := range candidates {
		if idx := strings.Index(s, c); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")
	return replacer.Replace(s)
}
