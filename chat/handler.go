package chat

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades GET /ws to a websocket connection bound to the service's hub.
func Handler(service *Service, allowedOrigins []string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(ctx *gin.Context) {
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			// Upgrade already wrote an HTTP error response.
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		client := newClient(service.Hub(), service, conn, log)
		if !service.Hub().Register(client) {
			conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	}
}

// originChecker allows requests without Origin (non-browser clients) and "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := false
	set := map[string]bool{}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		set[strings.ToLower(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
