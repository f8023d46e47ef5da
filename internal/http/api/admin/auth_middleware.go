package admin

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/ErasureRelay/internal/metrics"
	"github.com/router-for-me/ErasureRelay/internal/ratelimit"
	"github.com/router-for-me/ErasureRelay/internal/security"
	log "github.com/sirupsen/logrus"
)

// Gate authenticates admin requests with the configured password.
type Gate struct {
	passwordHash string
	allowList    *security.IPAllowList
	limiter      ratelimit.Limiter
	metrics      *metrics.Metrics
}

// NewGate builds a Gate. passwordHash must be a bcrypt hash.
func NewGate(passwordHash string, allowList *security.IPAllowList, limiter ratelimit.Limiter, m *metrics.Metrics) *Gate {
	return &Gate{passwordHash: passwordHash, allowList: allowList, limiter: limiter, metrics: m}
}

// Middleware enforces the IP allow-list, the failed-attempt lockout and the bearer password.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		clientIP := c.ClientIP()
		entry := log.WithFields(log.Fields{"client_ip": clientIP, "path": c.FullPath()})

		if !g.allowList.Allows(clientIP) {
			g.metrics.ObserveAdminAuthFailure("ip_denied")
			entry.Warn("admin: client ip not allowed")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "ip not allowed"})
			return
		}

		ctx := c.Request.Context()
		if g.limiter != nil {
			blocked, retryAfter, errBlocked := g.limiter.Blocked(ctx, clientIP)
			if errBlocked != nil {
				entry.WithError(errBlocked).Error("admin: login attempt counter unavailable")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication service error"})
				return
			}
			if blocked {
				g.metrics.ObserveAdminAuthFailure("locked")
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many failed attempts"})
				return
			}
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			g.metrics.ObserveAdminAuthFailure("missing_credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		if !security.CheckPassword(g.passwordHash, token) {
			g.metrics.ObserveAdminAuthFailure("invalid_credential")
			if g.limiter != nil {
				count, errFail := g.limiter.Fail(ctx, clientIP)
				if errFail != nil {
					entry.WithError(errFail).Error("admin: record failed attempt")
				} else {
					entry = entry.WithField("failed_attempts", count)
				}
			}
			entry.Warn("admin: invalid credentials")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if g.limiter != nil {
			if errReset := g.limiter.Reset(ctx, clientIP); errReset != nil {
				entry.WithError(errReset).Warn("admin: reset failed attempts")
			}
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
