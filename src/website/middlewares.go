package website

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/arsyadal/fastblog/src/auth"
	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/perf"
	"github.com/arsyadal/fastblog/src/ratelimit"
	"github.com/google/uuid"
)

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		defer func() {
			if recovered := recover(); recovered != nil {
				maybeError, ok := recovered.(*error)
				var err error
				if ok {
					err = *maybeError
				} else {
					err = oops.New(nil, fmt.Sprintf("Recovered from panic with value: %v", recovered))
				}
				res = c.ErrorResponse(http.StatusInternalServerError, err)
			}
		}()

		return h(c)
	}
}

func trackRequestPerf(perfCollector *perf.PerfCollector) func(Handler) Handler {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			c.Perf = perf.MakeNewRequestPerf(c.Route, c.Req.Method, c.Req.URL.Path)
			c.PerfCollector = perfCollector
			defer func() {
				c.Perf.EndRequest()
				log := c.Logger.Debug()
				blockStack := make([]time.Time, 0)
				for i, block := range c.Perf.SnapshotBlocks() {
					for len(blockStack) > 0 && block.End.After(blockStack[len(blockStack)-1]) {
						blockStack = blockStack[:len(blockStack)-1]
					}
					log.Str(fmt.Sprintf("[%4.d] At %9.2fms", i, c.Perf.MsFromStart(&block)), fmt.Sprintf("%*.s[%s] %s (%.4fms)", len(blockStack)*2, "", block.Category, block.Description, block.DurationMs()))
					blockStack = append(blockStack, block.End)
				}
				log.Msg(fmt.Sprintf("Served [%s] %s in %.4fms", c.Perf.Method, c.Perf.Path, float64(c.Perf.End.Sub(c.Perf.Start).Nanoseconds())/1000/1000))
				perfCollector.SubmitRun(c.Perf)
			}()

			return h(c)
		}
	}
}

const requestIDHeader = "X-Request-Id"

// Tags every request with an id, echoed back in the response and attached
// to every log line the request produces.
func requestIDMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		c.RequestID = c.Req.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(c.RequestID); err != nil {
			c.RequestID = uuid.NewString()
		}

		logger := c.Logger.With().Str("requestId", c.RequestID).Logger()
		c.Logger = &logger
		c.ctx = logging.AttachLoggerToContext(c.Logger, c.ctx)

		res := h(c)
		res.Header().Set(requestIDHeader, c.RequestID)
		return res
	}
}

func corsMiddleware(allowedOrigins []string) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			origin := c.Req.Header.Get("Origin")
			allowed := origin != "" && (slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*"))

			var res ResponseData
			if c.Req.Method == http.MethodOptions {
				res.StatusCode = http.StatusNoContent
				if allowed {
					res.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					res.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
					res.Header().Set("Access-Control-Max-Age", "600")
				}
			} else {
				res = h(c)
			}

			if allowed {
				res.Header().Set("Access-Control-Allow-Origin", origin)
				res.Header().Set("Access-Control-Allow-Credentials", "true")
				res.Header().Set("Access-Control-Expose-Headers", "X-Request-Id, X-RateLimit-Limit, X-RateLimit-Remaining")
				res.Header().Add("Vary", "Origin")
			}
			return res
		}
	}
}

type RateLimiter interface {
	Allow(ctx context.Context, ip string) ratelimit.Decision
}

// Limits requests per client IP. A nil limiter lets everything through.
func rateLimitMiddleware(limiter RateLimiter) Middleware {
	return func(h Handler) Handler {
		if limiter == nil {
			return h
		}
		return func(c *RequestContext) ResponseData {
			decision := limiter.Allow(c, c.GetIP())

			var res ResponseData
			if decision.Allowed {
				res = h(c)
			} else {
				c.Logger.Info().Str("ip", c.GetIP()).Msg("rate limited")
				res = c.JsonError(http.StatusTooManyRequests, "too many requests", nil)
				retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
				res.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			}

			res.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			res.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			return res
		}
	}
}

func bearerToken(req *http.Request) (string, bool) {
	header := req.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// Resolves the bearer token, if any. A bad token just means anonymous;
// needsAuth is what turns that into a 401.
func loadCurrentUser(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if token, ok := bearerToken(c.Req); ok {
			identity, err := auth.ParseToken(token)
			if err == nil {
				c.CurrentUser = &identity
				logger := c.Logger.With().Str("username", identity.Username).Logger()
				c.Logger = &logger
			} else {
				c.Logger.Debug().Err(err).Msg("ignoring bad bearer token")
			}
		}

		return h(c)
	}
}

func needsAuth(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if c.CurrentUser == nil {
			return c.JsonError(http.StatusUnauthorized, "authentication required", nil)
		}

		return h(c)
	}
}

func adminsOnly(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if c.CurrentUser == nil {
			return FourOhFour(c)
		}
		user, err := blogdata.FetchUser(c, c.Conn, c.CurrentUser.UserID)
		if err != nil || !user.IsAdmin {
			return FourOhFour(c)
		}

		return h(c)
	}
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.FullUrl()).Err(err).Msg("error occurred during request")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		logContextErrors(c, res.Errors...)
		return res
	}
}
