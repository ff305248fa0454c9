// Package middleware holds the gin middleware installed by the router.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aanand-mishra/students-api/internal/http/handlers"
	"github.com/aanand-mishra/students-api/internal/utils/response"
)

// RequestLogger logs one line per request once the handler chain has run.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			slog.Error("request served", attrs...)
			return
		}
		slog.Info("request served", attrs...)
	}
}

// CORS allows browser calls from origins. A "*" entry allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", handlers.ConfirmHeader},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

var errNoBearer = errors.New("authorization header must be \"Bearer <token>\"")

// Auth rejects requests without a valid HS256 bearer token signed with
// secret. Only the signature and the standard time claims are checked.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		raw, err := bearer(c.GetHeader("Authorization"))
		if err == nil {
			_, err = parser.Parse(raw, func(*jwt.Token) (any, error) { return key, nil })
		}
		if err != nil {
			slog.Warn("request rejected",
				slog.String("path", c.Request.URL.Path),
				slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Failure("Unauthorized"))
			return
		}
		c.Next()
	}
}

func bearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errNoBearer
	}
	return strings.TrimSpace(token), nil
}
