package server

import (
	"context"
	"errors"
	"net/http"

	"melodify/core/apperr"
	"melodify/core/search"
	"melodify/logger"
	"melodify/model"
)

const (
	featuredCount   = 6
	madeForYouCount = 4
	trendingCount   = 4
)

// GetAllSongsHandler 管理后台使用的完整曲库
func (h *APIHandler) GetAllSongsHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.songRepo.List(r.Context())
	if err != nil {
		logger.Error("[Song] Failed to list songs", logger.ErrorField(err))
		writeError(w, apperr.Upstream("list songs", err))
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (h *APIHandler) GetFeaturedSongsHandler(w http.ResponseWriter, r *http.Request) {
	h.randomSongs(w, r, featuredCount)
}

func (h *APIHandler) GetMadeForYouSongsHandler(w http.ResponseWriter, r *http.Request) {
	h.randomSongs(w, r, madeForYouCount)
}

func (h *APIHandler) GetTrendingSongsHandler(w http.ResponseWriter, r *http.Request) {
	h.randomSongs(w, r, trendingCount)
}

func (h *APIHandler) randomSongs(w http.ResponseWriter, r *http.Request, n int) {
	songs, err := h.songRepo.Random(r.Context(), n)
	if err != nil {
		logger.Error("[Song] Failed to sample songs", logger.Int("count", n), logger.ErrorField(err))
		writeError(w, apperr.Upstream("sample songs", err))
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// SearchSongsHandler GET /api/songs/search?query=
func (h *APIHandler) SearchSongsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		writeMessage(w, http.StatusTooManyRequests, "Too many search requests")
		return
	}

	songs, err := h.searchSongs(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		logger.Error("[Search] Query failed", logger.ErrorField(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// searchSongs 短查询直接返回空结果，不访问缓存和数据库
func (h *APIHandler) searchSongs(ctx context.Context, query string) ([]*model.Song, error) {
	if len([]rune(search.Normalize(query))) < search.MinQueryLength {
		return []*model.Song{}, nil
	}
	songs, err := h.search(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperr.ErrCancelled
		}
		return nil, apperr.Upstream("search songs", err)
	}
	return songs, nil
}

// GetStatsHandler 曲库统计
func (h *APIHandler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.songRepo.Stats(r.Context())
	if err != nil {
		logger.Error("[Stats] Failed to query stats", logger.ErrorField(err))
		writeError(w, apperr.Upstream("stats", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
