package ws

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
)

// RouterConfig carries the HTTP-facing knobs from the command line.
type RouterConfig struct {
	AllowedOrigins []string
	// PublicURL is the externally reachable base used in invite links,
	// e.g. "https://draw.example.com".
	PublicURL string
}

// NewRouter builds the gin engine: health, lobby endpoints, invite QR and
// the websocket upgrade.
func NewRouter(hub *Hub, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Content-Type",
				"Origin",
				"Upgrade",
				"Connection",
				"Sec-WebSocket-Key",
				"Sec-WebSocket-Version",
				"Sec-WebSocket-Extensions",
				"Sec-WebSocket-Protocol",
			},
		}))
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			if len(cfg.AllowedOrigins) == 0 {
				return true
			}
			origin := req.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
		},
	}

	r.GET("/ws", func(ctx *gin.Context) {
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			hub.log.Debug().Err(err).Msg("upgrade failed")
			return
		}
		hub.Serve(conn)
	})

	r.GET("/rooms", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, hub.reg.ListRooms())
	})

	r.GET("/rooms/:roomid/qr", func(ctx *gin.Context) {
		roomID := ctx.Param("roomid")
		if _, ok := hub.reg.Room(roomID); !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "room-not-found"})
			return
		}

		link := strings.TrimSuffix(cfg.PublicURL, "/") + "/join/" + roomID
		png, err := qrcode.Encode(link, qrcode.Medium, 256)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "qr-encode-failed"})
			return
		}
		ctx.Data(http.StatusOK, "image/png", png)
	})

	return r
}
