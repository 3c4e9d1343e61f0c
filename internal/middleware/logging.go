package middleware

import (
	"net/http"

	"github.com/2beens/bloglist/pkg"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-Id"

// LogRequest logs every incoming request and tags the response with a request id.
// An id sent by the client is reused.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			userIP, _ := pkg.ReadUserIP(r)
			log.WithFields(log.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"ip":         userIP,
				"user_agent": r.Header.Get("User-Agent"),
			}).Trace(" ====> request")

			next.ServeHTTP(w, r)
		})
	}
}
