package server

import (
	"net/http"
	"time"

	"melodify/core/apperr"
	"melodify/core/greeting"
	"melodify/logger"
)

type greetingResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// GetGreetingHandler GET /api/greeting?timezone=Asia/Shanghai
func (h *APIHandler) GetGreetingHandler(w http.ResponseWriter, r *http.Request) {
	g := greeting.ForTimezone(r.URL.Query().Get("timezone"), time.Now())
	writeJSON(w, http.StatusOK, greetingResponse{Success: true, Data: g})
}

// GetPersonalizedGreetingHandler 需要登录
func (h *APIHandler) GetPersonalizedGreetingHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	user, err := h.userRepo.GetByExternalID(r.Context(), userID)
	if err != nil {
		logger.Error("[Greeting] Failed to load user", logger.String("userId", userID), logger.ErrorField(err))
		writeError(w, apperr.Upstream("load user", err))
		return
	}

	g := greeting.ForTimezone(r.URL.Query().Get("timezone"), time.Now())
	writeJSON(w, http.StatusOK, greetingResponse{Success: true, Data: greeting.Personalize(g, user)})
}

func (h *APIHandler) GetContextualGreetingHandler(w http.ResponseWriter, r *http.Request) {
	g := greeting.ForTimezone(r.URL.Query().Get("timezone"), time.Now())
	writeJSON(w, http.StatusOK, greetingResponse{Success: true, Data: greeting.Contextualize(g)})
}
