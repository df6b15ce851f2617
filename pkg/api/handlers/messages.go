package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"croptalk/pkg/chat"
	"croptalk/pkg/logger"
	"croptalk/pkg/models"
	"croptalk/pkg/utils"
)

// RegisterMessages registers HTTP handlers for message-related endpoints.
func RegisterMessages(r *mux.Router, svc *chat.Service) {
	// /v1/messages
	r.HandleFunc("/messages", sendMessage(svc)).Methods(http.MethodPost)

	// /v1/conversations/{id}/messages
	r.HandleFunc("/conversations/{id}/messages", listMessages(svc)).Methods(http.MethodGet)

	// /v1/conversations/{id}/read
	r.HandleFunc("/conversations/{id}/read", markRead(svc)).Methods(http.MethodPost)
}

func sendMessage(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chat.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		msg, err := svc.Send(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		logger.Info("message_created", "conversation", msg.ConversationID, "id", msg.ID)
		_ = utils.JSONWrite(w, http.StatusOK, msg)
	}
}

func listMessages(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convID := mux.Vars(r)["id"]
		q := r.URL.Query()
		limit := 0
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				utils.JSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		msgs, err := svc.Messages(r.Context(), convID, q.Get("viewer"), q.Get("since"), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Conversation string           `json:"conversation"`
			Messages     []models.Message `json:"messages"`
		}{Conversation: convID, Messages: msgs})
	}
}

func markRead(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convID := mux.Vars(r)["id"]
		var req struct {
			Viewer string `json:"viewer"`
			Upto   string `json:"upto"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		unread, err := svc.MarkRead(r.Context(), convID, req.Viewer, req.Upto)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"unread": unread})
	}
}
