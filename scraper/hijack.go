package scraper

import (
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
	"Other":      proto.NetworkResourceTypeOther,
}

// adDomains are ad, analytics and widget hosts a listing page never needs
// for its product data.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"optimizely.com":        {},
	"bing.com":              {},
	"clarity.ms":            {},
	"tiktok.com":            {},
	"pinterest.com":         {},
	"snapchat.com":          {},
	"klaviyo.com":           {},
	"braze.com":             {},
	"qualtrics.com":         {},
	"contentsquare.net":     {},
	"dynatrace.com":         {},
	"newrelic.com":          {},
	"nr-data.net":           {},
	"demdex.net":            {},
	"omtrdc.net":            {},
	"rlcdn.com":             {},
	"trustpilot.com":        {},
	"yotpo.com":             {},
	"bazaarvoice.com":       {},
	"cookielaw.org":         {},
	"onetrust.com":          {},
	"consensu.org":          {},
}

// isAdDomain reports whether host or one of its parent domains is listed.
func isAdDomain(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for host != "" {
		if _, ok := adDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
	return false
}

// hijacker is a running request interceptor.
type hijacker struct {
	router  *rod.HijackRouter
	blocked atomic.Int64
}

// Blocked returns how many requests were failed so far.
func (h *hijacker) Blocked() int64 {
	return h.blocked.Load()
}

// Stop detaches the interceptor.
func (h *hijacker) Stop() {
	_ = h.router.Stop()
}

// blockedTypeSet builds the lookup set for configured resource type names.
func blockedTypeSet(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// shouldBlock decides one request. XHR and fetch requests are never blocked
// by type, since the listing JSON travels over them.
func shouldBlock(blocked map[proto.NetworkResourceType]struct{}, blockAds bool, rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := blocked[rt]; ok {
		return true
	}
	if blockAds {
		if u, err := url.Parse(rawURL); err == nil && isAdDomain(u.Hostname()) {
			return true
		}
	}
	return false
}

// setupHijack installs a request interceptor on the page that blocks the
// configured resource types and, optionally, ad and tracking hosts.
//
// Returns nil if there is nothing to block.
func setupHijack(page *rod.Page, blockedTypes []string, blockAds bool) *hijacker {
	blocked := blockedTypeSet(blockedTypes)
	if len(blocked) == 0 && !blockAds {
		return nil
	}

	h := &hijacker{router: page.HijackRequests()}

	// Pattern "*" with an empty resource type intercepts everything.
	_ = h.router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(blocked, blockAds, ctx.Request.Type(), ctx.Request.URL().String()) {
			h.blocked.Add(1)
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run blocks until Stop.
	go h.router.Run()

	return h
}
