package rtc

import (
	"net/http"
	"strings"
)

// ServerURL returns the media server URL a browser should connect to.
// A configured public URL wins; otherwise the media server is assumed to be
// reverse-proxied under /livekit on the requesting host.
func ServerURL(public string, r *http.Request) string {
	if public != "" {
		return public
	}

	host := r.Host
	if host == "" {
		host = "localhost"
	}

	scheme := "ws"
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" && r.TLS != nil {
		proto = "https"
	}
	if strings.EqualFold(strings.TrimSpace(strings.Split(proto, ",")[0]), "https") {
		scheme = "wss"
	}

	return scheme + "://" + host + "/livekit"
}
