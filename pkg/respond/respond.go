// Package respond writes the JSON bodies shared by every HTTP handler.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/krishanu7/battleship-engine/pkg/logging"
	"go.uber.org/zap"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", zap.Error(err))
	}
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Message writes {"message": ...}.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"message": message})
}
