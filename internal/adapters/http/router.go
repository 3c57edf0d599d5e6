package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ledum/huddle/internal/adapters"
	"github.com/ledum/huddle/internal/app"
	"github.com/ledum/huddle/internal/auth"
	"github.com/ledum/huddle/internal/config"
	"github.com/ledum/huddle/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable per-client token.
// It identifies the client in logs; signaling sessions get their own
// per-connection ids.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type joinRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, relay *app.Relay, issuer *auth.Issuer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// GET /api/rooms — list live rooms
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": relay.Rooms.List()})
	})

	// GET /api/rooms/:roomId — room info
	api.GET("/rooms/:roomId", func(c *gin.Context) {
		id := domain.RoomID(c.Param("roomId"))
		snap, ok := relay.Rooms.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"roomId":            snap.ID,
			"mode":              snap.Mode,
			"participantsCount": len(snap.Members),
			"participants":      snap.Members,
		})
	})

	// POST /api/rooms/join — create-or-join without a standing connection
	api.POST("/rooms/join", func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId and userId are required"})
			return
		}
		snap, err := relay.CreateOrJoin(domain.RoomID(req.RoomID), domain.UserID(req.UserID))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrInvalidArgument) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"roomId":            snap.ID,
			"mode":              snap.Mode,
			"participantsCount": len(snap.Members),
		})
	})

	// POST /api/token — credential for the external routed-media service
	api.POST("/token", func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId and userId are required"})
			return
		}
		token, err := issuer.Issue(domain.RoomID(req.RoomID), domain.UserID(req.UserID))
		if err != nil {
			if errors.Is(err, domain.ErrUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential service unavailable"})
				return
			}
			log.Error().Err(err).Str("module", "adapters.http").Msg("issue token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "sfuUrl": cfg.SFUURL})
	})

	// WebSocket signaling
	ctl := adapters.NewSignalWSController(relay, cfg.ReadLimit, cfg.PingPeriod)
	r.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
