package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/instanti8/engine/internal/api/types"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// Recovery logs panics and answers 500 with the error envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.L().Error("panic recovered",
					zap.String("id", GetRequestID(r.Context())),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, types.APIResponse{Success: false, Error: &types.APIError{Code: "internal", Message: http.StatusText(http.StatusInternalServerError)}})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
