package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured. When
// staticDir is set, unknown non-API paths are served from it.
func NewServer(handler *Handler, apiAccessKey, staticDir string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")
		c.Header("Cache-Control", "no-cache")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, staticDir)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, staticDir string) {
	r.GET("/health", handler.GetHealth)

	api := r.Group("/api")
	{
		api.GET("/topics", handler.GetTopics)
		api.GET("/topics/:name/rss", handler.GetTopicFeed)
		api.GET("/sources", handler.GetSources)
		api.GET("/status", handler.GetStatus)
		api.GET("/match", handler.MatchTitle)
		api.GET("/dates", handler.GetDates)

		api.GET("/refresh", handler.Refresh)
		api.POST("/refresh", handler.Refresh)

		api.GET("/crawl", handler.TriggerCrawl)
		api.POST("/crawl", handler.TriggerCrawl)
		api.GET("/crawl_status", handler.GetCrawlStatus)
	}

	// Settings endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		settings := api.Group("/settings")
		settings.Use(authMiddleware(apiAccessKey))
		{
			settings.GET("/sources", handler.APIGetSourceSettings)
			settings.PUT("/sources", handler.APISaveSourceSettings)
			settings.GET("/topics", handler.APIGetTopicSettings)
			settings.PUT("/topics", handler.APISaveTopicSettings)
		}
		slog.Info("Settings endpoints enabled with authentication")
	} else {
		slog.Info("Settings endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"topics":       "/api/topics",
			"topic_rss":    "/api/topics/<name>/rss",
			"sources":      "/api/sources",
			"status":       "/api/status",
			"match":        "/api/match?title=<title>",
			"dates":        "/api/dates?kind=news|rss",
			"refresh":      "/api/refresh",
			"crawl":        "/api/crawl",
			"crawl_status": "/api/crawl_status",
			"health":       "/health",
		}

		if apiAccessKey != "" {
			endpoints["source_settings"] = "/api/settings/sources (GET, PUT, requires X-API-Key header)"
			endpoints["topic_settings"] = "/api/settings/topics (GET, PUT, requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Trend Comb",
			"version":     handler.version,
			"description": "Keyword topic classifier and cached trend views over crawled headlines",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"settings_enabled": apiAccessKey != "",
				"header":           "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})

	var files http.Handler
	if staticDir != "" {
		files = http.FileServer(http.Dir(staticDir))
	}
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || files == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown API endpoint"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
