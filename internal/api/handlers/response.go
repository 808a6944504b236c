package handlers

import (
	"net/http"
	"strconv"

	"github.com/zatekoja/pgfinder/internal/api/respond"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	respond.JSON(w, statusCode, payload)
}

func respondWithData(w http.ResponseWriter, statusCode int, data any) {
	respond.Data(w, statusCode, data)
}

func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, err)
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v any) error {
	return respond.DecodeJSON(r, v)
}

// pageParam reads ?page, defaulting to 1
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
