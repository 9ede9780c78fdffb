package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"melodify/core/apperr"
	"melodify/logger"
	"melodify/model"
	"melodify/storage"
)

var (
	errMissingFile  = errors.New("missing upload")
	errNoAssetStore = errors.New("asset storage is not configured")
)

// CheckAdminHandler 只有通过 AdminMiddleware 才能到达
func (h *APIHandler) CheckAdminHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"admin": true})
}

// CreateSongHandler 管理员上传歌曲
// multipart 字段: audioFile, imageFile, title, artist, albumId, duration, lyrics, language, releaseDate
func (h *APIHandler) CreateSongHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	if !hasFile(r, "audioFile") || !hasFile(r, "imageFile") {
		writeMessage(w, http.StatusBadRequest, "Please upload all files")
		return
	}

	song := &model.Song{
		Title:    strings.TrimSpace(r.FormValue("title")),
		Artist:   strings.TrimSpace(r.FormValue("artist")),
		Language: strings.TrimSpace(r.FormValue("language")),
	}
	if song.Title == "" || song.Artist == "" {
		writeMessage(w, http.StatusBadRequest, "Title and artist are required")
		return
	}
	if err := applySongForm(r, song); err != nil {
		writeError(w, err)
		return
	}
	if err := h.checkAlbum(r.Context(), song.AlbumID); err != nil {
		writeError(w, err)
		return
	}

	audioURL, err := h.uploadFormFile(r, "audioFile", storage.AudioFolder)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	imageURL, err := h.uploadFormFile(r, "imageFile", storage.ImageFolder)
	if err != nil {
		h.discardAsset(r, audioURL)
		writeUploadError(w, err)
		return
	}
	song.AudioURL, song.ImageURL = audioURL, imageURL

	if _, err := h.songRepo.Create(r.Context(), song); err != nil {
		logger.Error("[Admin] Failed to create song", logger.String("title", song.Title), logger.ErrorField(err))
		h.discardAsset(r, audioURL)
		h.discardAsset(r, imageURL)
		writeError(w, apperr.Upstream("create song", err))
		return
	}
	h.invalidateSearch(r.Context())

	logger.Info("[Admin] Song created", logger.Int64("songId", song.ID), logger.String("title", song.Title))
	writeJSON(w, http.StatusCreated, song)
}

// UpdateSongHandler 部分更新歌曲，未提交的字段保持不变。
// albumId 为 "none" 时移出专辑；audioFile/imageFile 可选，提交时替换原文件。
func (h *APIHandler) UpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	songID, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid song ID")
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	song, err := h.songRepo.GetByID(r.Context(), songID)
	if err != nil {
		writeError(w, apperr.Upstream("get song", err))
		return
	}
	if song == nil {
		writeMessage(w, http.StatusNotFound, "Song not found")
		return
	}

	if v := strings.TrimSpace(r.FormValue("title")); v != "" {
		song.Title = v
	}
	if v := strings.TrimSpace(r.FormValue("artist")); v != "" {
		song.Artist = v
	}
	if v := strings.TrimSpace(r.FormValue("language")); v != "" {
		song.Language = v
	}
	if err := applySongForm(r, song); err != nil {
		writeError(w, err)
		return
	}
	if err := h.checkAlbum(r.Context(), song.AlbumID); err != nil {
		writeError(w, err)
		return
	}

	var replaced []string
	if hasFile(r, "audioFile") {
		url, err := h.uploadFormFile(r, "audioFile", storage.AudioFolder)
		if err != nil {
			writeUploadError(w, err)
			return
		}
		replaced = append(replaced, song.AudioURL)
		song.AudioURL = url
	}
	if hasFile(r, "imageFile") {
		url, err := h.uploadFormFile(r, "imageFile", storage.ImageFolder)
		if err != nil {
			writeUploadError(w, err)
			return
		}
		replaced = append(replaced, song.ImageURL)
		song.ImageURL = url
	}

	if err := h.songRepo.Update(r.Context(), song); err != nil {
		logger.Error("[Admin] Failed to update song", logger.Int64("songId", songID), logger.ErrorField(err))
		writeError(w, apperr.Upstream("update song", err))
		return
	}
	for _, url := range replaced {
		h.discardAsset(r, url)
	}
	h.invalidateSearch(r.Context())

	logger.Info("[Admin] Song updated", logger.Int64("songId", songID))
	writeJSON(w, http.StatusOK, song)
}

// DeleteSongHandler 删除歌曲及其文件
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	songID, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid song ID")
		return
	}

	song, err := h.songRepo.GetByID(r.Context(), songID)
	if err != nil {
		writeError(w, apperr.Upstream("get song", err))
		return
	}
	if song == nil {
		writeMessage(w, http.StatusNotFound, "Song not found")
		return
	}

	if err := h.songRepo.Delete(r.Context(), songID); err != nil {
		logger.Error("[Admin] Failed to delete song", logger.Int64("songId", songID), logger.ErrorField(err))
		writeError(w, apperr.Upstream("delete song", err))
		return
	}
	h.discardAsset(r, song.AudioURL)
	h.discardAsset(r, song.ImageURL)
	h.invalidateSearch(r.Context())

	logger.Info("[Admin] Song deleted", logger.Int64("songId", songID))
	writeMessage(w, http.StatusOK, "Song deleted successfully")
}

// applySongForm 解析可选字段 albumId, duration, lyrics, releaseDate
func applySongForm(r *http.Request, song *model.Song) error {
	if _, ok := r.MultipartForm.Value["albumId"]; ok {
		switch v := strings.TrimSpace(r.FormValue("albumId")); v {
		case "", "none", "null":
			song.AlbumID = nil
		default:
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return apperr.Validation("Invalid album ID")
			}
			song.AlbumID = &id
		}
	}
	if v := strings.TrimSpace(r.FormValue("duration")); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			return apperr.Validation("Invalid duration")
		}
		song.Duration = d
	}
	if _, ok := r.MultipartForm.Value["lyrics"]; ok {
		if v := r.FormValue("lyrics"); v != "" {
			song.Lyrics = &v
		} else {
			song.Lyrics = nil
		}
	}
	if v := strings.TrimSpace(r.FormValue("releaseDate")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return apperr.Validation("Invalid release date")
		}
		song.ReleaseDate = t
	}
	return nil
}

func (h *APIHandler) checkAlbum(ctx context.Context, albumID *int64) error {
	if albumID == nil {
		return nil
	}
	album, err := h.albumRepo.GetByID(ctx, *albumID)
	if err != nil {
		return apperr.Upstream("get album", err)
	}
	if album == nil {
		return apperr.NotFound("Album not found")
	}
	return nil
}

func hasFile(r *http.Request, field string) bool {
	if r.MultipartForm == nil {
		return false
	}
	return len(r.MultipartForm.File[field]) > 0
}

// uploadFormFile 上传表单文件到对象存储，返回公开URL
func (h *APIHandler) uploadFormFile(r *http.Request, field, folder string) (string, error) {
	if h.assets == nil {
		return "", errNoAssetStore
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", errMissingFile
	}
	defer file.Close()

	url, err := h.assets.Upload(r.Context(), folder, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		logger.Error("[Admin] Upload failed",
			logger.String("field", field),
			logger.String("filename", header.Filename),
			logger.ErrorField(err))
		return "", fmt.Errorf("upload %s: %w", field, err)
	}
	return url, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	if errors.Is(err, errMissingFile) {
		writeMessage(w, http.StatusBadRequest, "Please upload all files")
		return
	}
	writeError(w, apperr.Upstream("upload", err))
}

// discardAsset 删除不再引用的文件，失败只记录日志
func (h *APIHandler) discardAsset(r *http.Request, url string) {
	if h.assets == nil || url == "" {
		return
	}
	if err := h.assets.DeleteURL(r.Context(), url); err != nil {
		logger.Warn("[Admin] Failed to delete asset", logger.String("url", url), logger.ErrorField(err))
	}
}
