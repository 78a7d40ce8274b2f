package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/docreview-backend/api/responses"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

const maxRateLimitBody = 64 << 10

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one auth surface per client IP and per
// username over a fixed window. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	usernameLimit int
	trustProxy    bool
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, usernameLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:          name,
		window:        window,
		ipLimit:       ipLimit,
		usernameLimit: usernameLimit,
	}
}

// TrustingProxyHeaders makes the policy key IP counters on X-Forwarded-For
// and X-Real-IP. Only enable it behind a proxy that overwrites them.
func (p AuthRateLimitPolicy) TrustingProxyHeaders(trust bool) AuthRateLimitPolicy {
	p.trustProxy = trust
	return p
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.usernameLimit > 0)
}

// rateCheck is one counter to bump before the handler runs. label is what
// gets logged, so usernames only ever appear hashed.
type rateCheck struct {
	dimension string
	scope     string
	label     string
	limit     int
}

// AuthRateLimit rejects requests over either limit with 429 and Retry-After.
// The body is buffered so the handler can still decode it.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			checks, err := policy.checksFor(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			for _, c := range checks {
				allowed, count, err := store.FixedWindowAllow(ctx, c.scope, int64(c.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					policy.reject(ctx, logg, w, c, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p AuthRateLimitPolicy) checksFor(r *http.Request) ([]rateCheck, error) {
	var checks []rateCheck
	if p.ipLimit > 0 {
		if ip := clientIP(r, p.trustProxy); ip != "" {
			checks = append(checks, rateCheck{dimension: "ip", scope: p.name + ":ip:" + ip, label: ip, limit: p.ipLimit})
		}
	}
	if p.usernameLimit > 0 {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if username := usernameFromBody(body); username != "" {
			hash := hashValue(username)
			checks = append(checks, rateCheck{dimension: "username", scope: p.name + ":username:" + hash, label: hash, limit: p.usernameLimit})
		}
	}
	return checks, nil
}

func (p AuthRateLimitPolicy) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, c rateCheck, count int64) {
	logg.Warn(logg.WithFields(ctx, map[string]any{
		"policy":         p.name,
		"scope":          c.dimension,
		"key":            c.label,
		"attempts":       count,
		"limit":          c.limit,
		"window_seconds": int(p.window.Seconds()),
	}), "auth.rate_limit.blocked")

	w.Header().Set("Retry-After", strconv.Itoa(int(p.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts"))
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// usernameFromBody lowercases and trims so " Reviewer " and "reviewer" share
// one counter.
func usernameFromBody(payload []byte) string {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Username))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
