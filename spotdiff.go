package main

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Seednode/spotduel/games/spotdiff"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

func serveWS(cfg *Config, hub *spotdiff.Hub) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Upgrade from %s failed: %v", realIP(r), err)
			return
		}

		hub.ServeConn(conn)
	}
}

// inviteURL points at the web client with the room preselected. Without a
// configured client url it falls back to this server's own address.
func inviteURL(cfg *Config, r *http.Request, roomID string) string {
	base := strings.TrimSuffix(cfg.clientURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host + cfg.prefix
	}

	return base + "/?" + url.Values{"room": {roomID}}.Encode()
}

func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		roomID := p.ByName("roomid")
		if roomID == "" {
			plainError(cfg, w, http.StatusBadRequest, "missing room id")
			return
		}

		png, err := qrcode.Encode(inviteURL(cfg, r, roomID), qrcode.Medium, qrSize)
		if err != nil {
			plainError(cfg, w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Invite QR for %q to %s", roomID, realIP(r))
	}
}

func registerSpotDiff(cfg *Config, hub *spotdiff.Hub, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub))
	mux.GET(cfg.prefix+"/rooms/:roomid/qr", serveQR(cfg, errs))
}
