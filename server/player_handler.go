package server

import (
	"encoding/json"
	"net/http"
	"time"

	"melodify/logger"
)

// GetPlayerStateHandler 返回持久化的播放器设置
func (h *APIHandler) GetPlayerStateHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	s, err := h.settings.Load(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *APIHandler) ToggleShuffleHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	res, err := h.settings.ToggleShuffle(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) CycleLoopHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	res, err := h.settings.CycleLoop(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SetVolumeHandler body: {"volume": 0..100}
func (h *APIHandler) SetVolumeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req struct {
		Volume *int `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeMessage(w, http.StatusBadRequest, "Volume must be between 0 and 100")
		return
	}

	res, err := h.settings.SetVolume(r.Context(), userID, *req.Volume)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) ToggleQueueHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	res, err := h.settings.ToggleQueue(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AddRecentSongHandler body: {"songId": 12}
func (h *APIHandler) AddRecentSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req struct {
		SongID int64 `json:"songId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Song ID is required")
		return
	}

	entries, err := h.history.Record(r.Context(), userID, req.SongID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Debug("[Recent] Song added", logger.String("userId", userID), logger.Int64("songId", req.SongID))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Song added to recent",
		"recentSongs": entries,
	})
}

func (h *APIHandler) GetRecentSongsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	songs, err := h.history.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}
