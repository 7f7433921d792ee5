package authenticate

import (
	"FunnelRouter/internal/lib/api/response"
	"FunnelRouter/internal/lib/sl"
	"crypto/subtle"
	"fmt"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Authenticate interface {
	ValidateToken(token string) error
}

// StaticToken accepts a single configured key; an empty key rejects every request.
type StaticToken string

func (s StaticToken) ValidateToken(token string) error {
	if s == "" {
		return fmt.Errorf("no key configured")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s)) != 1 {
		return fmt.Errorf("token mismatch")
	}
	return nil
}

// New logs every request and, when auth is set, requires a bearer token it accepts.
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized", slog.Bool("token_required", auth != nil))

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			remote := r.RemoteAddr
			// if the request is coming from a proxy, use the X-Forwarded-For header
			xRemote := r.Header.Get("X-Forwarded-For")
			if xRemote != "" {
				remote = xRemote
			}
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", remote),
				slog.String("request_id", id),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			// Use a pointer to the logger so we can update it throughout the request
			loggerPtr := &logger
			defer func() {
				(*loggerPtr).With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			if auth != nil {
				token := ""
				header := r.Header.Get("Authorization")
				if len(header) == 0 {
					*loggerPtr = (*loggerPtr).With(sl.Err(fmt.Errorf("authorization header not found")))
					authFailed(ww, r, "Authorization header not found")
					return
				}
				if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
					token = parts[1]
				}
				if len(token) == 0 {
					*loggerPtr = (*loggerPtr).With(sl.Err(fmt.Errorf("token not found")))
					authFailed(ww, r, "Token not found")
					return
				}
				*loggerPtr = (*loggerPtr).With(sl.Secret("token", token))

				if err := auth.ValidateToken(token); err != nil {
					*loggerPtr = (*loggerPtr).With(sl.Err(err))
					authFailed(ww, r, "Unauthorized: invalid token")
					return
				}
			}

			ww.Header().Set("X-Request-ID", id)
			next.ServeHTTP(ww, r)
		}

		return http.HandlerFunc(fn)
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}
