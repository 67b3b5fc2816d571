package website

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/arsyadal/fastblog/src/assets"
	"github.com/arsyadal/fastblog/src/auth"
	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/ratelimit"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogContextErrors(t *testing.T) {
	err1 := errors.New("test error 1")
	err2 := errors.New("test error 2")

	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Print("sanity check")

	assert.Contains(t, buf.String(), "sanity check")

	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			func(h Handler) Handler {
				return func(c *RequestContext) (res ResponseData) {
					c.Logger = &logger
					return h(c)
				}
			},
			logContextErrorsMiddleware,
		},
	}

	routes.GET(regexp.MustCompile("^/test$"), func(c *RequestContext) ResponseData {
		return c.ErrorResponse(http.StatusInternalServerError, err1, err2)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/test")
	if assert.Nil(t, err) {
		defer res.Body.Close()

		t.Logf("Log contents: %s", buf.String())

		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

		assert.Contains(t, buf.String(), err1.Error())
		assert.Contains(t, buf.String(), err2.Error())
	}
}

// A router with the standard middleware stack minus the database.
func newTestRouter(limiter RateLimiter, register func(api RouteBuilder, authed RouteBuilder)) *Router {
	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			requestIDMiddleware,
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
			corsMiddleware([]string{"http://localhost:3003"}),
			rateLimitMiddleware(limiter),
			loadCurrentUser,
		},
	}
	api := routes.Group(RegexApi)
	register(api, api.WithMiddleware(needsAuth))
	routes.Handle([]string{http.MethodOptions}, RegexCatchAll, FourOhFour)
	routes.AnyMethod(RegexCatchAll, FourOhFour)
	return router
}

func decodeJson(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func TestPathParams(t *testing.T) {
	var gotID uuid.UUID
	router := newTestRouter(nil, func(api, authed RouteBuilder) {
		api.GET(RegexArticle, func(c *RequestContext) ResponseData {
			id, ok := c.PathUUID("articleid")
			if !ok {
				return FourOhFour(c)
			}
			gotID = id
			return c.JsonResponse(http.StatusOK, map[string]string{"id": id.String()})
		})
		api.GET(RegexArticleBySlug, func(c *RequestContext) ResponseData {
			return c.JsonResponse(http.StatusOK, map[string]string{"slug": c.PathParams["slug"]})
		})
	})

	id := uuid.New()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles/"+id.String()+"/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles/slug/hello-world-2", nil))
	assert.Equal(t, "hello-world-2", decodeJson(t, rec)["slug"])

	t.Run("not a uuid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles/not-an-id", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not found", decodeJson(t, rec)["error"])
	})
	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/articles/"+id.String(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouteSubpaths(t *testing.T) {
	id := uuid.NewString()
	matches := []struct {
		regex *regexp.Regexp
		path  string
	}{
		{RegexPublish, "/articles/" + id + "/publish"},
		{RegexComments, "/articles/" + id + "/comments"},
		{RegexArticleLive, "/articles/" + id + "/live"},
		{RegexFollowStatus, "/users/" + id + "/follow-status"},
		{RegexUserByUsername, "/users/profile/jane_doe"},
		{RegexShareArticle, "/share/article/my-first-post"},
	}
	for _, m := range matches {
		assert.True(t, m.regex.MatchString(m.path), "%s should match %s", m.regex, m.path)
	}

	assert.False(t, RegexPublish.MatchString("/articles/"+id+"/publish/extra"))
	assert.False(t, RegexArticle.MatchString("/articles/trending"))
	assert.False(t, RegexUser.MatchString("/users/me"))
	assert.False(t, RegexShareArticle.MatchString("/share/article/Not_A_Slug"))
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(nil, func(api, authed RouteBuilder) {
		api.GET(RegexArticles, func(c *RequestContext) ResponseData {
			return c.JsonResponse(http.StatusOK, []string{})
		})
		authed.POST(RegexArticles, func(c *RequestContext) ResponseData {
			return c.JsonResponse(http.StatusCreated, nil)
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/articles", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeJson(t, rec)["error"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/v1/articles", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNeedsAuth(t *testing.T) {
	router := newTestRouter(nil, func(api, authed RouteBuilder) {
		authed.GET(RegexMe, func(c *RequestContext) ResponseData {
			return c.JsonResponse(http.StatusOK, map[string]string{"username": c.CurrentUser.Username})
		})
	})

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := auth.IssueToken(&models.User{ID: uuid.New(), Username: "jane", UserType: models.UserTypeFree}, false)
		require.Nil(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "jane", decodeJson(t, rec)["username"])
	})
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(nil, func(api, authed RouteBuilder) {})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	generated := rec.Header().Get("X-Request-Id")
	_, err := uuid.Parse(generated)
	assert.Nil(t, err, "expected a uuid, got %q", generated)

	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("X-Request-Id", existing)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, existing, rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("X-Request-Id", "<script>")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get("X-Request-Id"))
}

func TestCors(t *testing.T) {
	router := newTestRouter(nil, func(api, authed RouteBuilder) {
		api.GET(RegexArticles, func(c *RequestContext) ResponseData {
			return c.JsonResponse(http.StatusOK, []string{})
		})
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/articles", nil)
		req.Header.Set("Origin", "http://localhost:3003")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:3003", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil)
		req.Header.Set("Origin", "http://localhost:3003")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3003", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

type fakeLimiter struct {
	remaining int
}

func (l *fakeLimiter) Allow(ctx context.Context, ip string) ratelimit.Decision {
	l.remaining--
	return ratelimit.Decision{
		Allowed:   l.remaining >= 0,
		Limit:     2,
		Remaining: max(l.remaining, 0),
		ResetAt:   time.Now().Add(30 * time.Second),
	}
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(&fakeLimiter{remaining: 2}, func(api, authed RouteBuilder) {
		api.GET(RegexTrending, func(c *RequestContext) ResponseData {
			return c.JsonResponse(http.StatusOK, []string{})
		})
	})

	codes := make([]int, 3)
	var last *httptest.ResponseRecorder
	for i := range codes {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/api/v1/articles/trending", nil))
		codes[i] = last.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestDataErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", blogdata.ErrNotFound, http.StatusNotFound},
		{"someone else's draft", oops.New(blogdata.ErrUnauthorized, "wrapped"), http.StatusNotFound},
		{"validation", &blogdata.ValidationError{Fields: map[string]string{"title": "is required"}}, http.StatusUnprocessableEntity},
		{"bad upload", &assets.InvalidUploadError{Reason: "file is too large"}, http.StatusUnprocessableEntity},
		{"user exists", blogdata.ErrUserExists, http.StatusConflict},
		{"bad login", blogdata.ErrInvalidCredentials, http.StatusUnauthorized},
		{"conflict", oops.New(blogdata.ErrConflict, "gave up"), http.StatusInternalServerError},
		{"anything else", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(nil, func(api, authed RouteBuilder) {
				api.GET(RegexArticles, func(c *RequestContext) ResponseData {
					return c.DataError(tt.err)
				})
			})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))
			assert.Equal(t, tt.status, rec.Code)

			body := decodeJson(t, rec)
			if tt.status == http.StatusInternalServerError {
				// Internal details stay in the logs.
				assert.Equal(t, http.StatusText(http.StatusInternalServerError), body["error"])
			}
		})
	}

	t.Run("validation fields", func(t *testing.T) {
		router := newTestRouter(nil, func(api, authed RouteBuilder) {
			api.GET(RegexArticles, func(c *RequestContext) ResponseData {
				return c.DataError(&blogdata.ValidationError{Fields: map[string]string{"title": "is required"}})
			})
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))
		assert.Equal(t, map[string]any{"title": "is required"}, decodeJson(t, rec)["fields"])
	})
}

func TestReadJson(t *testing.T) {
	type body struct {
		Count int `json:"count"`
	}
	var got body
	router := newTestRouter(nil, func(api, authed RouteBuilder) {
		api.POST(RegexArticles, func(c *RequestContext) ResponseData {
			got = body{}
			if res, ok := c.ReadJson(&got); !ok {
				return res
			}
			return c.JsonResponse(http.StatusOK, got)
		})
	})

	post := func(payload string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/articles", strings.NewReader(payload)))
		return rec
	}

	assert.Equal(t, http.StatusOK, post(`{"count": 12}`).Code)
	assert.Equal(t, 12, got.Count)
	assert.Equal(t, http.StatusOK, post(``).Code)
	assert.Equal(t, 0, got.Count)
	assert.Equal(t, http.StatusBadRequest, post(`{"count": `).Code)
}

func TestPanicsBecome500s(t *testing.T) {
	router := newTestRouter(nil, func(api, authed RouteBuilder) {
		api.GET(RegexArticles, func(c *RequestContext) ResponseData {
			panic("kaboom")
		})
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestCreateArticleBody(t *testing.T) {
	var body createArticleBody
	require.Nil(t, json.Unmarshal([]byte(`{
		"title": "Straight to print",
		"content": "Ready to go.",
		"tags": ["go"],
		"status": "published"
	}`), &body))

	in := body.input()
	assert.Equal(t, "Straight to print", in.Title)
	assert.Equal(t, "Ready to go.", in.Content)
	assert.Equal(t, []string{"go"}, in.Tags)
	assert.Equal(t, models.ArticleStatusPublished, in.Status)
	assert.False(t, in.IsMemberOnly)

	var bare createArticleBody
	require.Nil(t, json.Unmarshal([]byte(`{"title": "Draft", "content": "x"}`), &bare))
	assert.Equal(t, models.ArticleStatus(""), bare.input().Status)
}
