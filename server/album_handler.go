package server

import (
	"net/http"
	"strconv"
	"strings"

	"melodify/core/apperr"
	"melodify/logger"
	"melodify/model"
	"melodify/storage"
)

// GetAlbumsHandler 获取所有专辑
func (h *APIHandler) GetAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albumRepo.List(r.Context())
	if err != nil {
		logger.Error("[Album] Failed to list albums", logger.ErrorField(err))
		writeError(w, apperr.Upstream("list albums", err))
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// GetAlbumHandler 获取专辑及其歌曲
func (h *APIHandler) GetAlbumHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid album ID")
		return
	}

	album, err := h.albumRepo.GetByID(r.Context(), albumID)
	if err != nil {
		logger.Error("[Album] Failed to get album", logger.Int64("albumId", albumID), logger.ErrorField(err))
		writeError(w, apperr.Upstream("get album", err))
		return
	}
	if album == nil {
		writeMessage(w, http.StatusNotFound, "Album not found")
		return
	}

	songs, err := h.songRepo.ListByAlbum(r.Context(), albumID)
	if err != nil {
		logger.Error("[Album] Failed to list album songs", logger.Int64("albumId", albumID), logger.ErrorField(err))
		writeError(w, apperr.Upstream("list album songs", err))
		return
	}
	writeJSON(w, http.StatusOK, &model.AlbumWithSongs{Album: *album, Songs: songs})
}

// CreateAlbumHandler 管理员创建专辑
// multipart 字段: imageFile, title, artist, releaseYear
func (h *APIHandler) CreateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	artist := strings.TrimSpace(r.FormValue("artist"))
	if title == "" || artist == "" {
		writeMessage(w, http.StatusBadRequest, "Title and artist are required")
		return
	}
	releaseYear, err := strconv.Atoi(strings.TrimSpace(r.FormValue("releaseYear")))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid release year")
		return
	}

	imageURL, err := h.uploadFormFile(r, "imageFile", storage.ImageFolder)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	album := &model.Album{Title: title, Artist: artist, ImageURL: imageURL, ReleaseYear: releaseYear}
	if _, err := h.albumRepo.Create(r.Context(), album); err != nil {
		logger.Error("[Admin] Failed to create album", logger.String("title", title), logger.ErrorField(err))
		h.discardAsset(r, imageURL)
		writeError(w, apperr.Upstream("create album", err))
		return
	}

	logger.Info("[Admin] Album created", logger.Int64("albumId", album.ID), logger.String("title", album.Title))
	writeJSON(w, http.StatusCreated, album)
}

// DeleteAlbumHandler 删除专辑及其歌曲
func (h *APIHandler) DeleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid album ID")
		return
	}

	album, err := h.albumRepo.GetByID(r.Context(), albumID)
	if err != nil {
		writeError(w, apperr.Upstream("get album", err))
		return
	}
	if album == nil {
		writeMessage(w, http.StatusNotFound, "Album not found")
		return
	}

	deleted, err := h.albumRepo.DeleteWithSongs(r.Context(), albumID)
	if err != nil {
		logger.Error("[Admin] Failed to delete album", logger.Int64("albumId", albumID), logger.ErrorField(err))
		writeError(w, apperr.Upstream("delete album", err))
		return
	}
	h.invalidateSearch(r.Context())

	logger.Info("[Admin] Album deleted",
		logger.Int64("albumId", albumID),
		logger.Int64("songsDeleted", deleted))
	writeMessage(w, http.StatusOK, "Album deleted successfully")
}
