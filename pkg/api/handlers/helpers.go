package handlers

import (
	"errors"
	"net/http"

	"croptalk/pkg/chat"
	"croptalk/pkg/logger"
	"croptalk/pkg/utils"
)

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("request_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
