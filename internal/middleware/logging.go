package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call with
// its procedure, user, duration and error code. It works on both the client and
// the server side; logger may be nil to use slog.Default(). On the server it
// must run inside RequireAuth to see the user ID.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			log := logger
			if log == nil {
				log = slog.Default()
			}
			start := time.Now()
			procedure := req.Spec().Procedure
			side := "server"
			if req.Spec().IsClient {
				side = "client"
			}

			resp, err := next(ctx, req)

			userID := GetUserID(ctx)
			duration := time.Since(start).Milliseconds()
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					log.Warn("RPC error",
						"side", side,
						"procedure", procedure,
						"code", connectErr.Code(),
						"error", connectErr.Message(),
						"user_id", userID,
						"duration_ms", duration,
					)
				} else {
					log.Error("RPC error",
						"side", side,
						"procedure", procedure,
						"error", err,
						"user_id", userID,
						"duration_ms", duration,
					)
				}
			} else {
				log.Debug("RPC ok",
					"side", side,
					"procedure", procedure,
					"user_id", userID,
					"duration_ms", duration,
				)
			}

			return resp, err
		}
	}
}
