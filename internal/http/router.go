package http

import (
	"encoding/base64"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appconfig "github.com/hiet-studio/companion-server/internal/config"
	"github.com/hiet-studio/companion-server/internal/gemini"
	"github.com/hiet-studio/companion-server/internal/ws"
	"github.com/hiet-studio/companion-server/webassets"
)

// NewRouter executes the newRouter function.
func NewRouter(cfg appconfig.Config, wsHandler *ws.Handler, assist *gemini.Assist, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/client-ws", func(c *gin.Context) {
		wsHandler.Handle(c.Writer, c.Request)
	})

	mountAssistRoutes(router, assist)

	if !mountEmbeddedFrontend(router, logger) {
		router.Static("/frontend", cfg.FrontendDir)
		router.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.FrontendDir, "index.html"))
		})
		router.StaticFile("/favicon.ico", filepath.Join(cfg.FrontendDir, "favicon.ico"))
	}

	return router
}

type assistRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	Image          string `json:"image"`
	MimeType       string `json:"mime_type"`
}

func mountAssistRoutes(router *gin.Engine, assist *gemini.Assist) {
	api := router.Group("/api")

	api.POST("/summarize", func(c *gin.Context) {
		var req assistRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		result, err := assist.Summarize(c.Request.Context(), req.Text)
		respondAssist(c, result, err)
	})

	api.POST("/translate", func(c *gin.Context) {
		var req assistRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" || req.TargetLanguage == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text and target_language are required"})
			return
		}
		result, err := assist.Translate(c.Request.Context(), req.Text, req.TargetLanguage)
		respondAssist(c, result, err)
	})

	api.POST("/sentiment", func(c *gin.Context) {
		var req assistRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		result, err := assist.Sentiment(c.Request.Context(), req.Text)
		respondAssist(c, result, err)
	})

	api.POST("/ocr", func(c *gin.Context) {
		var req assistRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
			return
		}
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image must be base64"})
			return
		}
		result, err := assist.OCR(c.Request.Context(), image, req.MimeType)
		respondAssist(c, result, err)
	})
}

func respondAssist(c *gin.Context, result string, err error) {
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func mountEmbeddedFrontend(router *gin.Engine, logger *zap.Logger) bool {
	embeddedRoot, err := webassets.Subdir("studio")
	if err != nil {
		if logger != nil {
			logger.Warn("failed to load embedded frontend assets; falling back to disk", zap.Error(err))
		}
		return false
	}

	if logger != nil {
		logger.Info("serving embedded frontend assets", zap.String("source", "webassets/studio"))
	}

	rootFS := http.FS(embeddedRoot)
	indexHTML, err := fs.ReadFile(embeddedRoot, "index.html")
	if err != nil {
		if logger != nil {
			logger.Warn("missing embedded index.html; falling back to disk", zap.Error(err))
		}
		return false
	}
	router.StaticFS("/frontend", rootFS)
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})

	return true
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
