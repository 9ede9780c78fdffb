package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"melodify/core/auth"
	"melodify/logger"
	"melodify/model"
)

type contextKey string

const (
	userIDKey   contextKey = "userID"
	userNameKey contextKey = "username"
)

// SyncUserRequest 身份提供方回调时同步的用户资料
type SyncUserRequest struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl"`
}

// authenticate 校验 Bearer 令牌，返回外部用户ID
func (h *APIHandler) authenticate(r *http.Request) (*auth.Claims, error) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		// 浏览器的 WebSocket 无法设置请求头
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, auth.ErrEmptyToken
	}
	if h.verifier == nil {
		return nil, auth.ErrMissingSecret
	}
	return h.verifier.Parse(token)
}

// AuthMiddleware 校验令牌并把用户ID写入请求上下文
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.authenticate(r)
		if err != nil {
			if !errors.Is(err, auth.ErrEmptyToken) {
				logger.Debug("[Auth] Rejected token", logger.ErrorField(err))
			}
			writeMessage(w, http.StatusUnauthorized, "Unauthorized - you must be logged in")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		ctx = context.WithValue(ctx, userNameKey, claims.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// AdminMiddleware 需要先经过 AuthMiddleware
func (h *APIHandler) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := GetUserIDFromContext(r.Context())
		if h.cfg == nil || !h.cfg.IsAdmin(userID) {
			logger.Warn("[Admin] Forbidden", logger.String("userId", userID))
			writeMessage(w, http.StatusForbidden, "Unauthorized - you must be an admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserIDFromContext extracts the external user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// GetUsernameFromContext extracts the display name from the request context.
func GetUsernameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(userNameKey).(string)
	return name
}

// AuthCallbackHandler 登录回调：按外部ID创建或更新用户资料
func (h *APIHandler) AuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req SyncUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("[Auth] 解析请求体失败", logger.ErrorField(err))
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID != "" && req.ID != userID {
		writeMessage(w, http.StatusForbidden, "Cannot sync another user")
		return
	}

	fullName := strings.TrimSpace(req.FirstName + " " + req.LastName)
	if fullName == "" {
		fullName = GetUsernameFromContext(r.Context())
	}
	user := &model.User{ExternalID: userID, FullName: fullName, ImageURL: req.ImageURL}
	if err := h.userRepo.Upsert(r.Context(), user); err != nil {
		logger.Error("[Auth] Failed to sync user", logger.String("userId", userID), logger.ErrorField(err))
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Info("[Auth] User synced", logger.String("userId", userID))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
