package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"restopos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func internalError() *apierror.APIError {
	return apierror.New("internal", "internal server error")
}

// requestLog returns a logger carrying the request id and, once JWTAuth has
// run, the cashier.
func requestLog(c *gin.Context) zerolog.Logger {
	lc := log.With().Str("request_id", c.GetString(RequestIDKey))
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*JWTClaims); ok {
			lc = lc.Str("cashier_id", claims.CashierID).Str("branch_id", claims.BranchID)
		}
	}
	return lc.Logger()
}

// ErrorHandler turns errors attached with c.Error into a generic 500. The
// internal error is logged and never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		l := requestLog(c)
		for _, e := range c.Errors {
			l.Error().Err(e.Err).Str("route", c.FullPath()).Str("method", c.Request.Method).Msg("unhandled error")
		}
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, internalError())
		}
	}
}

// Recovery converts panics into 500 responses and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l := requestLog(c)
				l.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Str("route", c.FullPath()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, internalError())
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request. 5xx responses log at error level and
// 4xx at warn, so the interesting lines survive an info level filter.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		l := requestLog(c)
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = l.Error()
		case status >= http.StatusBadRequest:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
