package pkg

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ContentType = struct {
	JSON string
}{
	JSON: "application/json",
}

// ErrorResponse is the body of every failed JSON request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteResponseBytes(w http.ResponseWriter, contentType string, message []byte, statusCode int) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(statusCode)
	if _, err := w.Write(message); err != nil {
		log.Errorf("failed to write response [%s]: %s", message, err)
	}
}

// WriteJSON marshals v and writes it with the given status code.
func WriteJSON(w http.ResponseWriter, v any, statusCode int) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal response %T: %s", v, err)
		WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, respBytes, statusCode)
}

// WriteJSONError writes {"error": message}.
func WriteJSONError(w http.ResponseWriter, message string, statusCode int) {
	respBytes, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		// cannot happen for a plain string, keep the status anyway
		w.WriteHeader(statusCode)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, respBytes, statusCode)
}
