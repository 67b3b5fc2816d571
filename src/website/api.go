package website

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/google/uuid"
)

const maxJsonBodySize = 1 << 20

func (c *RequestContext) JsonResponse(status int, data any) ResponseData {
	res := ResponseData{StatusCode: status}
	res.WriteJson(data, c.Perf)
	return res
}

/*
Decodes the request body into dst. Returns a ready-made 400 response when
the body is not valid JSON; the bool is false in that case.

An empty body decodes as an empty object.
*/
func (c *RequestContext) ReadJson(dst any) (ResponseData, bool) {
	defer c.Perf.StartBlock("JSON", "Decode request").End()

	body := http.MaxBytesReader(c.Res, c.Req.Body, maxJsonBodySize)
	err := json.NewDecoder(body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return c.JsonError(http.StatusBadRequest, "invalid JSON body", nil), false
	}
	return ResponseData{}, true
}

// Parses a uuid path parameter. Malformed ids can't name anything, so they
// are a 404 like any other missing thing.
func (c *RequestContext) PathUUID(name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PathParams[name])
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func (c *RequestContext) QueryInt(name string, def int) int {
	v, err := strconv.Atoi(c.Req.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// The full account of the current user. Only ever sent to that user.
type apiUser struct {
	ID             uuid.UUID       `json:"id"`
	Email          string          `json:"email"`
	Username       string          `json:"username"`
	DisplayName    *string         `json:"display_name"`
	Bio            *string         `json:"bio"`
	AvatarUrl      *string         `json:"avatar_url"`
	UserType       models.UserType `json:"user_type"`
	IsVerified     bool            `json:"is_verified"`
	IsAdmin        bool            `json:"is_admin"`
	FollowersCount int             `json:"followers_count"`
	FollowingCount int             `json:"following_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newApiUser(u *models.User) apiUser {
	return apiUser{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Bio:            u.Bio,
		AvatarUrl:      u.AvatarUrl,
		UserType:       u.UserType,
		IsVerified:     u.IsVerified,
		IsAdmin:        u.IsAdmin,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
		CreatedAt:      u.CreatedAt,
	}
}

type apiProfile struct {
	ID                 uuid.UUID       `json:"id"`
	Username           string          `json:"username"`
	DisplayName        *string         `json:"display_name"`
	Bio                *string         `json:"bio"`
	AvatarUrl          *string         `json:"avatar_url"`
	UserType           models.UserType `json:"user_type"`
	IsVerified         bool            `json:"is_verified"`
	FollowersCount     int             `json:"followers_count"`
	FollowingCount     int             `json:"following_count"`
	ArticlesCount      int64           `json:"articles_count"`
	TotalClapsReceived int64           `json:"total_claps_received"`
	CreatedAt          time.Time       `json:"created_at"`
}

func newApiProfile(p *blogdata.UserProfile) apiProfile {
	return apiProfile{
		ID:                 p.User.ID,
		Username:           p.User.Username,
		DisplayName:        p.User.DisplayName,
		Bio:                p.User.Bio,
		AvatarUrl:          p.User.AvatarUrl,
		UserType:           p.User.UserType,
		IsVerified:         p.User.IsVerified,
		FollowersCount:     p.User.FollowersCount,
		FollowingCount:     p.User.FollowingCount,
		ArticlesCount:      p.ArticlesCount,
		TotalClapsReceived: p.TotalClapsReceived,
		CreatedAt:          p.User.CreatedAt,
	}
}

type apiComment struct {
	ID            uuid.UUID            `json:"id"`
	ArticleID     uuid.UUID            `json:"article_id"`
	ParentID      *uuid.UUID           `json:"parent_id"`
	Content       string               `json:"content"`
	ContentHTML   string               `json:"content_html"`
	ClapsCount    int                  `json:"claps_count"`
	RepliesCount  int                  `json:"replies_count"`
	IsAuthorReply bool                 `json:"is_author_reply"`
	Author        *blogdata.PublicUser `json:"author"`
	Replies       []apiComment         `json:"replies"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func newApiComment(c *blogdata.CommentWithAuthor) apiComment {
	author := c.Author
	result := apiComment{
		ID:            c.Comment.ID,
		ArticleID:     c.Comment.ArticleID,
		ParentID:      c.Comment.ParentID,
		Content:       c.Comment.Content,
		ContentHTML:   c.Comment.ContentHTML,
		ClapsCount:    c.Comment.ClapsCount,
		RepliesCount:  c.Comment.RepliesCount,
		IsAuthorReply: c.Comment.IsAuthorReply,
		Author:        &author,
		Replies:       make([]apiComment, 0, len(c.Replies)),
		CreatedAt:     c.Comment.CreatedAt,
		UpdatedAt:     c.Comment.UpdatedAt,
	}
	for _, reply := range c.Replies {
		result.Replies = append(result.Replies, newApiComment(reply))
	}
	return result
}

type apiArticleStats struct {
	ArticleID          uuid.UUID  `json:"article_id"`
	Title              string     `json:"title"`
	ViewsCount         int64      `json:"views_count"`
	ReadsCount         int64      `json:"reads_count"`
	ClapsCount         int64      `json:"claps_count"`
	CommentsCount      int        `json:"comments_count"`
	BookmarksCount     int        `json:"bookmarks_count"`
	ReadingTimeMinutes int        `json:"reading_time_minutes"`
	PublishedAt        *time.Time `json:"published_at"`
	EngagementRate     float64    `json:"engagement_rate"`
}

func newApiArticleStats(s blogdata.ArticleStats) apiArticleStats {
	return apiArticleStats(s)
}

type apiAuthorStats struct {
	TotalArticles         int64             `json:"total_articles"`
	TotalViews            int64             `json:"total_views"`
	TotalReads            int64             `json:"total_reads"`
	TotalClaps            int64             `json:"total_claps"`
	TotalComments         int64             `json:"total_comments"`
	TotalBookmarks        int64             `json:"total_bookmarks"`
	AverageReadingTime    float64           `json:"average_reading_time"`
	AverageEngagementRate float64           `json:"average_engagement_rate"`
	TopArticles           []apiArticleStats `json:"top_articles"`
}

func newApiAuthorStats(s *blogdata.AuthorStats) apiAuthorStats {
	result := apiAuthorStats{
		TotalArticles:         s.TotalArticles,
		TotalViews:            s.TotalViews,
		TotalReads:            s.TotalReads,
		TotalClaps:            s.TotalClaps,
		TotalComments:         s.TotalComments,
		TotalBookmarks:        s.TotalBookmarks,
		AverageReadingTime:    s.AverageReadingTime,
		AverageEngagementRate: s.AverageEngagementRate,
		TopArticles:           make([]apiArticleStats, 0, len(s.TopArticles)),
	}
	for _, top := range s.TopArticles {
		result.TopArticles = append(result.TopArticles, newApiArticleStats(top))
	}
	return result
}

// A search result. Content is left out; the excerpt shows the match.
type apiArticleHit struct {
	ID                 uuid.UUID           `json:"id"`
	Title              string              `json:"title"`
	Subtitle           *string             `json:"subtitle"`
	Slug               string              `json:"slug"`
	FeaturedImageUrl   *string             `json:"featured_image_url"`
	Tags               []string            `json:"tags"`
	ReadingTimeMinutes int                 `json:"reading_time_minutes"`
	ClapsCount         int64               `json:"claps_count"`
	CommentsCount      int                 `json:"comments_count"`
	PublishedAt        *time.Time          `json:"published_at"`
	Author             blogdata.PublicUser `json:"author"`
	RelevanceScore     float64             `json:"relevance_score"`
	SearchExcerpt      string              `json:"search_excerpt"`
}

func newApiArticleHit(h *blogdata.ArticleSearchHit) apiArticleHit {
	tags := h.Article.Tags
	if tags == nil {
		tags = []string{}
	}
	return apiArticleHit{
		ID:                 h.Article.ID,
		Title:              h.Article.Title,
		Subtitle:           h.Article.Subtitle,
		Slug:               h.Article.Slug,
		FeaturedImageUrl:   h.Article.FeaturedImageUrl,
		Tags:               tags,
		ReadingTimeMinutes: h.Article.ReadingTimeMinutes,
		ClapsCount:         h.Article.ClapsCount,
		CommentsCount:      h.Article.CommentsCount,
		PublishedAt:        h.Article.PublishedAt,
		Author:             h.Author,
		RelevanceScore:     h.Score,
		SearchExcerpt:      h.Excerpt,
	}
}

type apiUserHit struct {
	blogdata.PublicUser
	ArticlesCount  int64   `json:"articles_count"`
	RelevanceScore float64 `json:"relevance_score"`
}

func newApiUserHit(h *blogdata.UserSearchHit) apiUserHit {
	return apiUserHit{
		PublicUser:     h.User,
		ArticlesCount:  h.ArticlesCount,
		RelevanceScore: h.Score,
	}
}

type apiTag struct {
	Tag        string `json:"tag"`
	UsageCount int64  `json:"usage_count"`
}

func newApiTags(tags []*blogdata.TagCount) []apiTag {
	result := make([]apiTag, 0, len(tags))
	for _, t := range tags {
		result = append(result, apiTag{Tag: t.Tag, UsageCount: t.UsageCount})
	}
	return result
}
