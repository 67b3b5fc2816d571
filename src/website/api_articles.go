package website

import (
	"net/http"
	"time"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/events"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/slugs"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/google/uuid"
)

// Trending windows are caller-chosen in hours, capped at 30 days.
const maxTrendingHours = 30 * 24

func trendingWindow(c *RequestContext) time.Duration {
	hours := utils.Clamp(1, c.QueryInt("hours", int(blogdata.DefaultTrendingWindow/time.Hour)), maxTrendingHours)
	return time.Duration(hours) * time.Hour
}

type articleBody struct {
	Title            *string    `json:"title"`
	Subtitle         *string    `json:"subtitle"`
	Content          *string    `json:"content"`
	Excerpt          *string    `json:"excerpt"`
	FeaturedImageUrl *string    `json:"featured_image_url"`
	PublicationID    *uuid.UUID `json:"publication_id"`
	Tags             []string   `json:"tags"`
	Categories       []string   `json:"categories"`
	IsMemberOnly     *bool      `json:"is_member_only"`
	PaywallPosition  *int       `json:"paywall_position"`
}

type createArticleBody struct {
	articleBody
	Status *models.ArticleStatus `json:"status"`
}

func (body *createArticleBody) input() blogdata.CreateArticleInput {
	return blogdata.CreateArticleInput{
		Title:            utils.DerefOr(body.Title, ""),
		Subtitle:         body.Subtitle,
		Content:          utils.DerefOr(body.Content, ""),
		Excerpt:          body.Excerpt,
		FeaturedImageUrl: body.FeaturedImageUrl,
		PublicationID:    body.PublicationID,
		Tags:             body.Tags,
		Categories:       body.Categories,
		IsMemberOnly:     utils.DerefOr(body.IsMemberOnly, false),
		PaywallPosition:  body.PaywallPosition,
		Status:           utils.DerefOr(body.Status, ""),
	}
}

func (c *RequestContext) articleView(article *models.Article) ResponseData {
	view, err := blogdata.AssembleArticle(c, c.Conn, c.ViewerID(), article)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}
	return c.JsonResponse(http.StatusOK, view)
}

func (c *RequestContext) articleViews(paged blogdata.Paged[*models.Article]) ResponseData {
	views, err := blogdata.AssembleArticles(c, c.Conn, c.ViewerID(), paged.Items)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}
	return c.JsonResponse(http.StatusOK, pagedJsonOf(paged, views))
}

func ListArticles(c *RequestContext) ResponseData {
	query := c.Req.URL.Query()
	paged, err := blogdata.FetchArticlesPaged(c, c.Conn, c.ViewerID(), blogdata.ArticlesQuery{
		Tag:            query.Get("tag"),
		Category:       query.Get("category"),
		AuthorUsername: query.Get("author"),
		OnlyPublished:  true,
		Sort:           blogdata.ParseArticleSort(query.Get("sort")),
	}, getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.articleViews(paged)
}

func GetArticle(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	article, err := blogdata.FetchArticle(c, c.Conn, c.ViewerID(), articleID)
	if err != nil {
		return c.DataError(err)
	}
	return c.articleView(article)
}

func GetArticleBySlug(c *RequestContext) ResponseData {
	if !slugs.IsValid(c.PathParams["slug"]) {
		return FourOhFour(c)
	}
	article, err := blogdata.FetchArticleBySlug(c, c.Conn, c.ViewerID(), c.PathParams["slug"])
	if err != nil {
		return c.DataError(err)
	}
	return c.articleView(article)
}

func TrendingArticles(c *RequestContext) ResponseData {
	paged, err := blogdata.FetchTrending(c, c.Conn, trendingWindow(c), getPage(c))
	if err != nil {
		return c.DataError(err)
	}

	articles := make([]*models.Article, len(paged.Items))
	for i, item := range paged.Items {
		articles[i] = item.Article
	}
	views, err := blogdata.AssembleArticles(c, c.Conn, c.ViewerID(), articles)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}

	type trendingView struct {
		*blogdata.ArticleView
		TrendingScore float64 `json:"trending_score"`
	}
	items := make([]trendingView, len(views))
	for i, view := range views {
		items[i] = trendingView{ArticleView: view, TrendingScore: paged.Items[i].Score}
	}
	return c.JsonResponse(http.StatusOK, pagedJsonOf(paged, items))
}

func FeaturedArticles(c *RequestContext) ResponseData {
	paged, err := blogdata.FetchFeatured(c, c.Conn, getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.articleViews(paged)
}

func Feed(c *RequestContext) ResponseData {
	paged, err := blogdata.FetchFeed(c, c.Conn, c.CurrentUser.UserID, getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.articleViews(paged)
}

func Drafts(c *RequestContext) ResponseData {
	paged, err := blogdata.FetchDrafts(c, c.Conn, c.CurrentUser.UserID, getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.articleViews(paged)
}

func CreateArticle(c *RequestContext) ResponseData {
	var body createArticleBody
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}

	article, err := blogdata.CreateArticle(c, c.Conn, c.CurrentUser.UserID, body.input())
	if err != nil {
		return c.DataError(err)
	}

	res := c.articleView(article)
	if res.StatusCode == http.StatusOK {
		res.StatusCode = http.StatusCreated
	}
	return res
}

func UpdateArticle(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	var body articleBody
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}

	article, err := blogdata.UpdateArticle(c, c.Conn, c.CurrentUser.UserID, articleID, blogdata.UpdateArticleInput{
		Title:            body.Title,
		Subtitle:         body.Subtitle,
		Content:          body.Content,
		Excerpt:          body.Excerpt,
		FeaturedImageUrl: body.FeaturedImageUrl,
		Tags:             body.Tags,
		Categories:       body.Categories,
		IsMemberOnly:     body.IsMemberOnly,
		PaywallPosition:  body.PaywallPosition,
	})
	if err != nil {
		return c.DataError(err)
	}
	return c.articleView(article)
}

func DeleteArticle(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	if err := blogdata.DeleteArticle(c, c.Conn, c.CurrentUser.UserID, articleID); err != nil {
		return c.DataError(err)
	}

	c.Publish(events.NewArticleEvent(events.ArticleDeleted, articleID, c.ViewerID(), nil))
	return c.JsonResponse(http.StatusOK, map[string]any{"deleted": true})
}

func PublishArticle(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	article, err := blogdata.PublishArticle(c, c.Conn, c.CurrentUser.UserID, articleID)
	if err != nil {
		return c.DataError(err)
	}

	c.Logger.Info().Str("slug", article.Slug).Msg("article published")
	c.Publish(events.NewArticleEvent(events.ArticlePublished, article.ID, c.ViewerID(), nil))
	return c.articleView(article)
}

func AutoSaveArticle(c *RequestContext) ResponseData {
	var body struct {
		articleBody
		ArticleID *uuid.UUID `json:"article_id"`
	}
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}

	article, err := blogdata.AutoSave(c, c.Conn, c.CurrentUser.UserID, blogdata.AutoSaveInput{
		ArticleID:        body.ArticleID,
		Title:            body.Title,
		Subtitle:         body.Subtitle,
		Content:          utils.DerefOr(body.Content, ""),
		Excerpt:          body.Excerpt,
		FeaturedImageUrl: body.FeaturedImageUrl,
		Tags:             body.Tags,
		Categories:       body.Categories,
		IsMemberOnly:     body.IsMemberOnly,
		PaywallPosition:  body.PaywallPosition,
	})
	if err != nil {
		return c.DataError(err)
	}

	return c.JsonResponse(http.StatusOK, map[string]any{
		"id":                article.ID,
		"slug":              article.Slug,
		"auto_save_version": article.AutoSaveVersion,
		"last_auto_save":    article.LastAutoSave,
	})
}

func recordCounter(
	c *RequestContext,
	record func(ctx *RequestContext, articleID uuid.UUID) (int64, error),
	eventType events.Type,
	counterName string,
) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	count, err := record(c, articleID)
	if err != nil {
		return c.DataError(err)
	}

	c.Publish(events.NewArticleEvent(eventType, articleID, c.ViewerID(), map[string]int64{counterName: count}))
	return c.JsonResponse(http.StatusOK, map[string]int64{counterName: count})
}

func RecordView(c *RequestContext) ResponseData {
	return recordCounter(c, func(c *RequestContext, articleID uuid.UUID) (int64, error) {
		return blogdata.RecordView(c, c.Conn, articleID)
	}, events.ArticleViewed, "views_count")
}

func RecordRead(c *RequestContext) ResponseData {
	return recordCounter(c, func(c *RequestContext, articleID uuid.UUID) (int64, error) {
		return blogdata.RecordRead(c, c.Conn, articleID)
	}, events.ArticleRead, "reads_count")
}

func ToggleFeatured(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	user, err := blogdata.FetchUser(c, c.Conn, c.CurrentUser.UserID)
	if err != nil {
		return c.DataError(err)
	}

	featured, err := blogdata.ToggleFeatured(c, c.Conn, blogdata.Actor{UserID: user.ID, IsAdmin: user.IsAdmin}, articleID)
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, map[string]bool{"is_featured": featured})
}

func ArticleStats(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	stats, err := blogdata.FetchArticleStats(c, c.Conn, c.CurrentUser.UserID, articleID)
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, newApiArticleStats(stats))
}
