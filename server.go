package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/middlewares"
	"bitbucket.org/mmdatafocus/stockroom_backend/models"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma separated); in non-production allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())
	r.POST("/auth/logout", logoutHandler())

	api := r.Group("/", middlewares.AuthMiddleware())
	api.POST("/inventory/adjustments", adjustmentHandler())
	api.POST("/inventory/imports", importHandler())
	api.GET("/inventory/placements", listPlacementsHandler())

	api.POST("/products", createProductHandler())
	api.GET("/products", listProductsHandler())
	api.GET("/products/:id/logs", listProductLogsHandler())

	api.POST("/warehouses", createWarehouseHandler())
	api.GET("/warehouses", listWarehousesHandler())
	api.PUT("/warehouses/:id", updateWarehouseHandler())
	api.DELETE("/warehouses/:id", deleteWarehouseHandler())
	api.POST("/zones", createZoneHandler())
	api.GET("/zones", listZonesHandler())
	api.PUT("/zones/:id", updateZoneHandler())
	api.DELETE("/zones/:id", deleteZoneHandler())
	api.POST("/racks", createRackHandler())
	api.GET("/racks", listRacksHandler())
	api.PUT("/racks/:id", updateRackHandler())
	api.DELETE("/racks/:id", deleteRackHandler())
	api.POST("/shelves", createShelfHandler())
	api.GET("/shelves", listShelvesHandler())
	api.PUT("/shelves/:id", updateShelfHandler())
	api.DELETE("/shelves/:id", deleteShelfHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow disabling on
	// startup and running it as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that recorded errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded, try again in " + strconv.Itoa(int(rl.window.Seconds())) + " seconds",
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
