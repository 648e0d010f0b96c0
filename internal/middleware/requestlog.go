package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/waterlog/routeledger/internal/metrics"
)

// RequestLogger logs one line per request and records its latency.  Server
// errors log at error level, client errors at warn.
func RequestLogger(log *zap.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(req.Method, route, status, elapsed)

			level := zapcore.InfoLevel
			switch {
			case status >= 500:
				level = zapcore.ErrorLevel
			case status >= 400:
				level = zapcore.WarnLevel
			}
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("route", route),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
				zap.String("ip", c.RealIP()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			}
			if id, ok := UserID(c); ok {
				fields = append(fields, zap.Uint64("user_id", id))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			if ce := log.Check(level, "request"); ce != nil {
				ce.Write(fields...)
			}
			return nil
		}
	}
}
