package website

import (
	"context"
	"net/http"
	"time"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/events"
	"github.com/arsyadal/fastblog/src/perf"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Everything the routes need from the outside world.
type Deps struct {
	Conn          *pgxpool.Pool
	Bus           *events.Bus
	PerfCollector *perf.PerfCollector
	Limiter       RateLimiter // nil disables rate limiting
	ServerCtx     context.Context
}

func NewWebsiteRoutes(deps Deps) http.Handler {
	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			func(h Handler) Handler {
				return func(c *RequestContext) ResponseData {
					c.Conn = deps.Conn
					c.Bus = deps.Bus
					c.ServerCtx = deps.ServerCtx
					return h(c)
				}
			},
			requestIDMiddleware,
			trackRequestPerf(deps.PerfCollector),
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
			corsMiddleware(config.Config.CorsOrigins),
		},
	}

	routes.GET(RegexHealth, Health)
	routes.GET(RegexShareArticle, ShareArticle)

	anyone := routes.WithMiddleware(rateLimitMiddleware(deps.Limiter), loadCurrentUser)
	authed := anyone.WithMiddleware(needsAuth)

	anyone.GET(RegexPerfmon, adminsOnly(Perfmon))

	api := anyone.Group(RegexApi)
	apiAuthed := authed.Group(RegexApi)

	api.POST(RegexRegister, Register)
	api.POST(RegexLogin, Login)
	apiAuthed.GET(RegexMe, Me)

	api.GET(RegexArticles, ListArticles)
	api.GET(RegexTrending, TrendingArticles)
	api.GET(RegexFeatured, FeaturedArticles)
	apiAuthed.GET(RegexFeed, Feed)
	apiAuthed.GET(RegexDrafts, Drafts)
	apiAuthed.POST(RegexAutoSave, AutoSaveArticle)
	api.GET(RegexArticleBySlug, GetArticleBySlug)
	api.GET(RegexArticle, GetArticle)
	apiAuthed.POST(RegexArticles, CreateArticle)
	apiAuthed.PUT(RegexArticle, UpdateArticle)
	apiAuthed.DELETE(RegexArticle, DeleteArticle)
	apiAuthed.POST(RegexPublish, PublishArticle)
	api.POST(RegexRecordView, RecordView)
	api.POST(RegexRecordRead, RecordRead)
	apiAuthed.POST(RegexToggleFeatured, ToggleFeatured)
	apiAuthed.POST(RegexClap, Clap)
	apiAuthed.POST(RegexBookmark, Bookmark)
	apiAuthed.DELETE(RegexBookmark, Unbookmark)
	api.GET(RegexComments, ListComments)
	apiAuthed.POST(RegexComments, AddComment)
	apiAuthed.GET(RegexArticleStats, ArticleStats)
	api.GET(RegexArticleLive, ArticleLive)

	api.GET(RegexUserByUsername, UserProfileByUsername)
	apiAuthed.PUT(RegexMyProfile, UpdateProfile)
	apiAuthed.GET(RegexMyBookmarks, MyBookmarks)
	api.GET(RegexUser, UserProfile)
	apiAuthed.POST(RegexFollow, Follow)
	apiAuthed.DELETE(RegexFollow, Unfollow)
	apiAuthed.GET(RegexFollowStatus, FollowStatus)
	api.GET(RegexFollowers, Followers)
	api.GET(RegexFollowing, Following)
	api.GET(RegexUserArticles, UserArticles)
	api.GET(RegexAuthorStats, AuthorStats)

	api.GET(RegexSearch, GlobalSearch)
	api.GET(RegexSearchArticles, SearchArticles)
	api.GET(RegexSearchUsers, SearchUsers)
	api.GET(RegexSearchTags, SearchTags)
	api.GET(RegexSearchSuggestions, SearchSuggestions)

	apiAuthed.POST(RegexUploadAvatar, UploadAvatar)
	apiAuthed.DELETE(RegexUploadAvatar, DeleteAvatar)
	apiAuthed.POST(RegexUploadImage, UploadImage)

	// Preflights are answered by the CORS middleware before reaching this.
	routes.Handle([]string{http.MethodOptions}, RegexCatchAll, FourOhFour)
	routes.AnyMethod(RegexCatchAll, FourOhFour)

	return router
}

const healthTimeout = 2 * time.Second

func Health(c *RequestContext) ResponseData {
	ctx, cancel := context.WithTimeout(c, healthTimeout)
	defer cancel()

	if err := db.Ping(ctx, c.Conn); err != nil {
		c.Logger.Warn().Err(err).Msg("health check failed to reach the database")
		return c.JsonResponse(http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "disconnected",
		})
	}
	return c.JsonResponse(http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}
