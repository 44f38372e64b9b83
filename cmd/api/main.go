package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facemark/internal/attendance"
	"facemark/internal/auth"
	"facemark/internal/capture"
	"facemark/internal/config"
	"facemark/internal/httpmiddleware"
	"facemark/internal/notify"
	"facemark/internal/observability"
	"facemark/internal/queue"
	"facemark/internal/recognition"
	"facemark/internal/report"
	"facemark/internal/settings"
	"facemark/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage backends
	var st attendance.Store
	var db *store.DB
	if cfg.StoreBackend == "memory" {
		st = attendance.NewMemory()
		log.Println("using in-memory store")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if db == nil {
			return err
		}
		if err != nil {
			log.Printf("warning: db not reachable: %v", err)
		}
		defer func() {
			if db != nil {
				_ = db.Close()
			}
		}()
		st = attendance.NewRepository(db.Client)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	settingsStore := settings.NewStore(redisClient.Client)

	media, err := store.NewMedia(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		return err
	}
	if err := media.EnsureBucket(ctx); err != nil {
		log.Printf("warning: minio bucket not ready: %v", err)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "facemark:records")
	}

	// Notification fanout
	hub := notify.NewHub()
	go hub.Run()
	center := notify.NewCenter(hub)
	if cur, err := settingsStore.Load(ctx); err == nil {
		center.SetChannels(cur.Notifications.WebSocket, cur.Notifications.Log)
	}

	// Decision pipeline. The matcher and the scheduler draw from the same
	// stream concurrently, so the source must be locked.
	rng := recognition.NewLockedSource(rand.New(rand.NewSource(time.Now().UnixNano())))
	matcher := recognition.NewMatcher(rng, recognition.WithDelay(cfg.MatchDelayMin, cfg.MatchDelayMax))
	session := capture.NewSession(capture.NewSynthetic())
	svc := attendance.NewService(st, settingsStore, matcher, session, center, media, q, cfg.Location, cfg.DeviceLabel)

	if err := svc.Refresh(ctx); err != nil {
		log.Printf("warning: initial fetch failed: %v", err)
	}

	scheduler := attendance.NewScheduler(svc, settingsStore, session, cfg.AttemptInterval, cfg.AttemptGate, rng)
	go scheduler.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(metricsMiddleware())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := cfg.StoreBackend == "memory" || db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := svc.RegisterDevice(c.Request.Context(), req.DeviceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.DeviceID, "device", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		_ = st.SaveRefreshToken(c.Request.Context(), req.DeviceID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	v1 := r.Group("/v1", auth.DeviceAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	v1.GET("/ws", hub.HandleWS)

	// --- Students ---

	v1.POST("/students", func(c *gin.Context) {
		var req struct {
			Name       string `json:"name" binding:"required"`
			Email      string `json:"email" binding:"required,email"`
			StudentNo  string `json:"student_no"`
			Department string `json:"department"`
			Year       int    `json:"year"`
			Photo      string `json:"photo" binding:"required"` // base64 or data URL
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		data, contentType, err := decodePhoto(req.Photo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo payload"})
			return
		}
		photoKey, err := media.SavePhoto(c.Request.Context(), data, contentType)
		if err != nil {
			log.Printf("photo upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "photo storage failed"})
			return
		}

		student, err := svc.RegisterStudent(c.Request.Context(), attendance.Student{
			Name:       req.Name,
			Email:      req.Email,
			StudentNo:  req.StudentNo,
			Department: req.Department,
			Year:       req.Year,
			PhotoKey:   photoKey,
		})
		if err != nil {
			if errors.Is(err, attendance.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, student)
	})

	v1.GET("/students", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"students": svc.Students()})
	})

	v1.DELETE("/students/:id", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
			return
		}
		if err := svc.RemoveStudent(c.Request.Context(), id); err != nil {
			if errors.Is(err, attendance.ErrStudentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	v1.PATCH("/students/:id/active", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
			return
		}
		var req struct {
			Active *bool `json:"active" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.SetStudentActive(c.Request.Context(), id, *req.Active); err != nil {
			if errors.Is(err, attendance.ErrStudentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	})

	// --- Attendance ---

	v1.POST("/attendance/attempts", func(c *gin.Context) {
		res, err := svc.Attempt(c.Request.Context(), true)
		if err != nil {
			if errors.Is(err, attendance.ErrAttemptInFlight) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	v1.GET("/attendance/records", func(c *gin.Context) {
		records := svc.Records()

		if sid := c.Query("student_id"); sid != "" {
			id, err := uuid.Parse(sid)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student_id"})
				return
			}
			filtered := records[:0:0]
			for _, rec := range records {
				if rec.StudentID == id {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}

		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		if offset > len(records) {
			offset = len(records)
		}
		end := offset + limit
		if end > len(records) {
			end = len(records)
		}
		c.JSON(http.StatusOK, gin.H{"records": records[offset:end], "total": len(records)})
	})

	v1.GET("/attendance/export", func(c *gin.Context) {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
		if err := report.WriteCSV(c.Writer, svc.Records(), svc.Students()); err != nil {
			log.Printf("csv export failed: %v", err)
		}
	})

	// --- Capture sessions ---

	v1.POST("/sessions/start", func(c *gin.Context) {
		session.Start()
		c.JSON(http.StatusOK, gin.H{"active": true})
	})

	v1.POST("/sessions/stop", func(c *gin.Context) {
		session.Stop()
		c.JSON(http.StatusOK, gin.H{"active": false})
	})

	v1.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active": session.Active()})
	})

	// --- Settings ---

	v1.GET("/settings", func(c *gin.Context) {
		current, err := settingsStore.Load(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, current)
	})

	v1.PUT("/settings", func(c *gin.Context) {
		var req settings.Settings
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := settingsStore.Save(c.Request.Context(), req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		center.SetChannels(req.Notifications.WebSocket, req.Notifications.Log)
		c.JSON(http.StatusOK, req)
	})

	// --- Notifications ---

	v1.GET("/notifications", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notifications": center.List()})
	})

	v1.POST("/notifications/:id/read", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
			return
		}
		if !center.MarkRead(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "read"})
	})

	v1.DELETE("/notifications", func(c *gin.Context) {
		center.Clear()
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	cancel() // stops the scheduler

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// decodePhoto accepts a raw base64 string or a data URL and returns the
// payload plus a best-effort content type.
func decodePhoto(s string) ([]byte, string, error) {
	contentType := "application/octet-stream"
	if strings.HasPrefix(s, "data:") {
		semi := strings.Index(s, ";base64,")
		if semi < 0 {
			return nil, "", errors.New("unsupported data URL")
		}
		contentType = s[len("data:"):semi]
		s = s[semi+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty photo")
	}
	return data, contentType, nil
}

// Request duration metrics per route
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observability.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
