package server

import (
	"fmt"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"net/http"
	"strings"
	"time"
)

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(started)),
			zap.String("request-id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) recoverer(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic occurred", zap.Error(fmt.Errorf("%v", rec)),
					zap.String("path", request.URL.Path), zap.Stack("stack"))
				writeFail(writer, http.StatusInternalServerError, MSG_INTERNAL)
			}
		}()
		handler.ServeHTTP(writer, request)
	})
}

// requireAdmin lets the request through only with "Authorization: Bearer <token>" accepted by the auth provider.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(AUTHORIZATION_HEADER)
		if !strings.HasPrefix(header, BEARER_PREFIX) || !s.auth.Authorize(strings.TrimPrefix(header, BEARER_PREFIX)) {
			writeFail(w, http.StatusUnauthorized, MSG_UNAUTHORIZED)
			return
		}
		next.ServeHTTP(w, r)
	})
}
