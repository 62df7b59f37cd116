package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tobioye/ballotgate/internal/services"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// writeOutcome translates a guard rejection into its HTTP response. The
// reason code rides in the error_code field so clients can branch without
// parsing messages.
func writeOutcome(w http.ResponseWriter, outcome services.Outcome) {
	status := outcome.StatusHint
	if status == 0 {
		status = http.StatusForbidden
	}
	message := outcome.Message
	if message == "" {
		message = "Request denied."
	}
	pkghttp.WriteError(w, status, string(outcome.Reason), message)
}
