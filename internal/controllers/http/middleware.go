package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-service/internal/admission"
	"payment-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	identityKey  = "identity"
	maxBodyBytes = 64 << 10
)

// Claims is the bearer token payload issued by the auth provider.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized"})
}

// Authenticate verifies an HMAC bearer token and stores the caller identity.
func Authenticate(secret []byte, logger *slog.Logger) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	return func(c *gin.Context) {
		if len(secret) == 0 {
			logger.Error("auth secret not configured, rejecting request", "path", c.FullPath())
			unauthorized(c)
			return
		}

		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			unauthorized(c)
			return
		}

		var claims Claims
		token, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			logger.Debug("rejected bearer token", "error", err)
			unauthorized(c)
			return
		}

		c.Set(identityKey, domain.Identity{UserID: claims.Subject, Role: claims.Role})
		c.Next()
	}
}

func identityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// RateLimit counts requests per caller on route. Anonymous callers are
// keyed by client address.
func RateLimit(l admission.Limiter, route string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := c.ClientIP()
		if id, ok := identityFrom(c); ok {
			who = id.UserID
		}

		d, err := l.Allow(c.Request.Context(), admission.Key(who, route))
		if err != nil {
			// fail open when the counter store is down
			logger.Error("rate limiter unavailable", "route", route, "error", err)
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))
		if !d.Allowed {
			retry := d.RetryAfter(time.Now())
			h.Set("Retry-After", strconv.Itoa(retry))
			logger.Warn("rate limit exceeded", "route", route, "caller", who)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitResponse{
				Message:    "Too many requests. Please try again later.",
				RetryAfter: retry,
			})
			return
		}
		c.Next()
	}
}

// RejectSuspicious screens the URL and body for injection patterns. The body
// is restored for the handler.
func RejectSuspicious(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sources := []string{c.Request.URL.RequestURI()}
		if c.Request.Body != nil {
			body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "Request body too large"})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			sources = append(sources, string(body))
		}

		for i, s := range sources {
			if category, found := admission.Inspect(s); found {
				where := "url"
				if i > 0 {
					where = "body"
				}
				logger.Warn("suspicious request rejected", "path", c.FullPath(), "in", where, "category", category, "client_ip", c.ClientIP())
				c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: "Suspicious activity detected"})
				return
			}
		}
		c.Next()
	}
}

func challengeIP(c *gin.Context) string {
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// VerifyHuman checks the turnstileToken body field when a verifier is
// configured. Without a token the request passes unless the verifier
// requires one.
func VerifyHuman(v *admission.TurnstileVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() || c.Request.Body == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "Request body too large"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var fields struct {
			TurnstileToken string `json:"turnstileToken"`
		}
		_ = json.Unmarshal(body, &fields)
		if fields.TurnstileToken == "" && !v.Required() {
			c.Next()
			return
		}

		err = v.Verify(c.Request.Context(), fields.TurnstileToken, challengeIP(c))
		if err == nil {
			c.Next()
			return
		}

		msg := "Verification failed. Please try again."
		switch {
		case errors.Is(err, admission.ErrTokenMissing):
			msg = "No verification token provided"
		case errors.Is(err, admission.ErrVerifierUnavailable):
			msg = "Verification service unavailable"
		}
		logger.Warn("challenge verification rejected", "path", c.FullPath(), "client_ip", challengeIP(c), "error", err)
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: msg})
	}
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Next()
	}
}

// RequestLogger writes one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
