package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"melodify/config"
	"melodify/core/apperr"
	"melodify/core/auth"
	"melodify/core/history"
	"melodify/core/presence"
	"melodify/core/search"
	"melodify/core/settings"
	"melodify/logger"
	"melodify/model"
	"melodify/repository"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// AssetStore 对象存储，上传音频和封面
type AssetStore interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (string, error)
	DeleteURL(ctx context.Context, url string) error
}

// SearchCache 搜索结果缓存，曲库变更后整体失效
type SearchCache interface {
	search.Cache
	Invalidate(ctx context.Context) error
}

// APIHandler 处理所有API请求
type APIHandler struct {
	songRepo  repository.SongRepository
	albumRepo repository.AlbumRepository
	userRepo  repository.UserRepository
	settings  *settings.Service
	history   *history.Log
	assets    AssetStore
	cache     SearchCache
	verifier  *auth.Verifier
	hub       *presence.Hub
	search    search.Func
	limiter   *rate.Limiter
	cfg       *config.Config
}

// Deps 构造 APIHandler 所需的依赖，Assets、Cache、Hub 可以为空
type Deps struct {
	Songs    repository.SongRepository
	Albums   repository.AlbumRepository
	Users    repository.UserRepository
	Recent   history.Store
	Assets   AssetStore
	Cache    SearchCache
	Verifier *auth.Verifier
	Hub      *presence.Hub
	Config   *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(deps Deps) *APIHandler {
	h := &APIHandler{
		songRepo:  deps.Songs,
		albumRepo: deps.Albums,
		userRepo:  deps.Users,
		settings:  settings.NewService(deps.Users),
		history:   history.New(deps.Recent, deps.Songs, history.WithUserCheck(deps.Users)),
		assets:    deps.Assets,
		cache:     deps.Cache,
		verifier:  deps.Verifier,
		hub:       deps.Hub,
		cfg:       deps.Config,
	}

	h.search = func(ctx context.Context, query string) ([]*model.Song, error) {
		return h.songRepo.Search(ctx, query, repository.DefaultSearchLimit)
	}
	if deps.Cache != nil {
		h.search = search.Cached(h.search, deps.Cache)
	}

	ratePerSec, burst := 5.0, 10
	if deps.Config != nil && deps.Config.SearchRatePerSec > 0 {
		ratePerSec = deps.Config.SearchRatePerSec
		if deps.Config.SearchBurst > 0 {
			burst = deps.Config.SearchBurst
		}
	}
	h.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	return h
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("[HTTP] Failed to encode response", logger.ErrorField(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError 按错误类型映射状态码，上游错误只返回通用消息
func writeError(w http.ResponseWriter, err error) {
	writeMessage(w, apperr.HTTPStatus(err), apperr.PublicMessage(err))
}

// pathID 解析路由中的数字ID
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// invalidateSearch 曲库变更后清除搜索缓存，失败只记录日志
func (h *APIHandler) invalidateSearch(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		logger.Warn("[Search] Failed to invalidate cache", logger.ErrorField(err))
	}
}
