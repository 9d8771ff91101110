package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const maxReportIDLength = 255

// ParseReportID extracts the report id or short code from the request path.
// Returns the id and true on success, or "" and false on error (after writing
// an error response).
// Expects path parameter: id
func ParseReportID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || len(id) > maxReportIDLength {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_report_id", "Invalid report ID"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return id, true
}
