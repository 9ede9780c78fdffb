package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"melodify/cache"
	"melodify/config"
	"melodify/core/auth"
	"melodify/core/presence"
	"melodify/db"
	"melodify/logger"
	"melodify/repository"
	"melodify/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const requestIDHeader = "X-Request-ID"

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()

	router.Use(corsMiddleware)
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware)

	// 认证
	router.HandleFunc("/api/auth/callback", h.AuthMiddleware(h.AuthCallbackHandler)).Methods(http.MethodPost)

	// 播放器设置与最近播放
	router.HandleFunc("/api/player/state", h.AuthMiddleware(h.GetPlayerStateHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/shuffle", h.AuthMiddleware(h.ToggleShuffleHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/loop", h.AuthMiddleware(h.CycleLoopHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/volume", h.AuthMiddleware(h.SetVolumeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/queue", h.AuthMiddleware(h.ToggleQueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/recent", h.AuthMiddleware(h.GetRecentSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/recent", h.AuthMiddleware(h.AddRecentSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/ws/player", h.PlayerWebSocketHandler).Methods(http.MethodGet)

	// 曲库
	router.HandleFunc("/api/songs", h.AdminMiddleware(h.GetAllSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/featured", h.GetFeaturedSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/made-for-you", h.GetMadeForYouSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/trending", h.GetTrendingSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/search", h.SearchSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/albums", h.GetAlbumsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/albums/{id}", h.GetAlbumHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", h.GetStatsHandler).Methods(http.MethodGet)

	// 管理后台
	router.HandleFunc("/api/admin/check", h.AdminMiddleware(h.CheckAdminHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/songs", h.AdminMiddleware(h.CreateSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/songs/{id}", h.AdminMiddleware(h.UpdateSongHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/admin/songs/{id}", h.AdminMiddleware(h.DeleteSongHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/admin/albums", h.AdminMiddleware(h.CreateAlbumHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/albums/{id}", h.AdminMiddleware(h.DeleteAlbumHandler)).Methods(http.MethodDelete)

	// 问候语
	router.HandleFunc("/api/greeting", h.GetGreetingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/greeting/personalized", h.AuthMiddleware(h.GetPersonalizedGreetingHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/greeting/contextual", h.GetContextualGreetingHandler).Methods(http.MethodGet)

	// 预检请求，由 corsMiddleware 处理
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware 沿用客户端传入的请求ID，没有则生成
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder 记录响应状态码，同时保留 Hijacker 以支持 WebSocket
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Header.Get("Upgrade") != "" {
			// WebSocket 连接需要原始的 ResponseWriter
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("[HTTP] request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("latency", time.Since(start)),
			logger.String("requestId", r.Header.Get(requestIDHeader)))
	})
}

// Start connects every backing service, serves HTTP and blocks until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	if err := db.ConnectDB(cfg); err != nil {
		return err
	}
	defer db.CloseDB()

	if err := db.InitDB(context.Background(), db.DB); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		return err
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrate(db.GormDB); err != nil {
		return err
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		return err
	}
	defer cache.CloseRedis()
	logger.Info("Successfully connected to Redis")

	assets, err := storage.NewAssetStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize MinIO: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	hub := presence.NewHub(cache.NewPresenceCache(cache.RedisClient))
	go hub.Run()
	defer hub.Stop()

	h := NewAPIHandler(Deps{
		Songs:    repository.NewMySQLSongRepository(db.DB),
		Albums:   repository.NewMySQLAlbumRepository(db.DB),
		Users:    repository.NewGormUserRepository(db.GormDB),
		Recent:   cache.NewRecentCache(cache.RedisClient),
		Assets:   assets,
		Cache:    cache.NewSearchCache(cache.RedisClient),
		Verifier: verifier,
		Hub:      hub,
		Config:   cfg,
	})

	// 设置服务器超时
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(h),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
