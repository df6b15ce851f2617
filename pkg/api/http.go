package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"croptalk/pkg/api/handlers"
	"croptalk/pkg/chat"
	"croptalk/pkg/store"
)

// Handler returns the messaging API router:
//   - GET  /v1/users/{userID}/conversations
//   - GET  /v1/conversations/{id}/messages?viewer=&since=&limit=
//   - POST /v1/conversations/{id}/read
//   - POST /v1/messages
func Handler(svc *chat.Service) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !store.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterMessages(v1, svc)
	handlers.RegisterConversations(v1, svc)
	return r
}
