package http

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/dkeye/WatchParty/internal/adapters/signal"
	"github.com/dkeye/WatchParty/internal/app/orch"
	"github.com/dkeye/WatchParty/internal/app/transcode"
	"github.com/dkeye/WatchParty/internal/config"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/dkeye/WatchParty/internal/metrics"
)

const clientTokenKey = "ct"

// Transcoder is the part of the transcode supervisor the HTTP surface needs.
type Transcoder interface {
	Start(roomID domain.RoomID, videoURL string) (transcode.JobInfo, error)
	Cancel(roomID domain.RoomID) error
	Status(roomID domain.RoomID) (transcode.JobInfo, bool)
	Active() int
}

type Deps struct {
	Config     *config.Config
	Orch       *orch.Orchestrator
	Transcoder Transcoder
	Metrics    *metrics.Metrics
	Fs         afero.Fs
	ICEServers []webrtc.ICEServer
}

// ClientTokenMiddleware gives every browser a stable token kept in the session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("WatchPartySessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticPath, "index.html"))
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Str("videos", cfg.Transcode.OutputDir).Msg("router setup")

	ctrl := signal.NewSignalWSController(d.Orch, signal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
		SendBuffer:   cfg.SendBuffer,
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
		ICEServers:   d.ICEServers,
	})

	api := r.Group("/api")
	api.GET("/ws/signal", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})
	api.GET("/rooms/:roomId", func(c *gin.Context) {
		view, ok := d.Orch.RoomMembers(domain.RoomID(c.Param("roomId")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, view)
	})
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": d.ICEServers})
	})

	th := transcodeHandlers{t: d.Transcoder}
	r.POST("/transcode", th.start)
	r.GET("/transcode/:roomId", th.status)
	r.DELETE("/transcode/:roomId", th.cancel)

	videos := afero.NewHttpFs(d.Fs).Dir(cfg.Transcode.OutputDir)
	r.GET("/videos/:file", func(c *gin.Context) {
		name := c.Param("file")
		if !validSegmentName(name) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if strings.HasSuffix(name, ".ts") {
			c.Header("Content-Type", "video/mp2t")
		}
		c.FileFromFS(name, videos)
	})

	r.GET("/metrics", d.Metrics.Handler())
	r.GET("/healthz", func(c *gin.Context) {
		jobs := 0
		if d.Transcoder != nil {
			jobs = d.Transcoder.Active()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": d.Orch.Registry.Count(),
			"jobs":        jobs,
		})
	})

	return r
}

func validSegmentName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

type transcodeHandlers struct {
	t Transcoder
}

type transcodeRequest struct {
	VideoURL string        `json:"videoUrl"`
	RoomID   domain.RoomID `json:"roomId"`
}

func (h transcodeHandlers) start(c *gin.Context) {
	var req transcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	info, err := h.t.Start(req.RoomID, req.VideoURL)
	switch {
	case errors.Is(err, transcode.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(req.RoomID)).Msg("transcode start")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transcoding"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transcoding started", "jobId": info.ID})
}

func (h transcodeHandlers) status(c *gin.Context) {
	info, ok := h.t.Status(domain.RoomID(c.Param("roomId")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transcode job for room"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h transcodeHandlers) cancel(c *gin.Context) {
	err := h.t.Cancel(domain.RoomID(c.Param("roomId")))
	if errors.Is(err, transcode.ErrNoJob) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transcoding cancelled"})
}
