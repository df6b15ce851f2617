package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"croptalk/pkg/chat"
	"croptalk/pkg/utils"
)

// RegisterConversations registers HTTP handlers for conversation-list
// endpoints.
func RegisterConversations(r *mux.Router, svc *chat.Service) {
	// /v1/users/{userID}/conversations
	r.HandleFunc("/users/{userID}/conversations", listConversations(svc)).Methods(http.MethodGet)
}

func listConversations(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := mux.Vars(r)["userID"]
		convs, err := svc.Conversations(r.Context(), viewer)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Conversations []chat.ConversationView `json:"conversations"`
		}{Conversations: convs})
	}
}
