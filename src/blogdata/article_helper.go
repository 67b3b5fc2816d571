package blogdata

import (
	"context"
	"errors"
	"strings"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/perf"
	"github.com/google/uuid"
)

type ArticleSort string

const (
	ArticleSortRecent  ArticleSort = "recent"
	ArticleSortPopular ArticleSort = "popular"
	ArticleSortClaps   ArticleSort = "claps"
	ArticleSortUpdated ArticleSort = "updated"
)

func ParseArticleSort(s string) ArticleSort {
	switch ArticleSort(strings.ToLower(s)) {
	case ArticleSortPopular:
		return ArticleSortPopular
	case ArticleSortClaps:
		return ArticleSortClaps
	case ArticleSortUpdated:
		return ArticleSortUpdated
	default:
		return ArticleSortRecent
	}
}

type ArticlesQuery struct {
	// Ignored when using FetchArticle
	ArticleIDs     []uuid.UUID // if empty, all articles
	Slugs          []string
	AuthorIDs      []uuid.UUID
	AuthorUsername string
	Tag            string
	Category       string
	FeaturedOnly   bool

	// Which statuses to return. If empty, published articles are returned,
	// plus the viewer's own articles of any status unless OnlyPublished is
	// set.
	Statuses      []models.ArticleStatus
	OnlyPublished bool

	Sort   ArticleSort
	Limit  int
	Offset int
}

func buildArticlesWhere(qb *db.QueryBuilder, viewerID *uuid.UUID, q ArticlesQuery) {
	qb.Add(`WHERE TRUE`)
	if len(q.ArticleIDs) > 0 {
		qb.Add(`AND articles.id = ANY($?)`, q.ArticleIDs)
	}
	if len(q.Slugs) > 0 {
		qb.Add(`AND articles.slug = ANY($?)`, q.Slugs)
	}
	if len(q.AuthorIDs) > 0 {
		qb.Add(`AND articles.author_id = ANY($?)`, q.AuthorIDs)
	}
	if q.AuthorUsername != "" {
		qb.Add(`AND articles.author_id = (SELECT id FROM users WHERE LOWER(username) = LOWER($?))`, q.AuthorUsername)
	}
	if q.Tag != "" {
		qb.Add(`AND $? = ANY(articles.tags)`, q.Tag)
	}
	if q.Category != "" {
		qb.Add(`AND $? = ANY(articles.categories)`, q.Category)
	}
	if q.FeaturedOnly {
		qb.Add(`AND articles.is_featured`)
	}

	if len(q.Statuses) > 0 {
		qb.Add(`AND articles.status = ANY($?)`, q.Statuses)
		// Non-published statuses are only ever visible to their author
		qb.Add(`AND (articles.status = $? OR articles.author_id = $?)`, models.ArticleStatusPublished, viewerID)
	} else if q.OnlyPublished || viewerID == nil {
		qb.Add(`AND articles.status = $?`, models.ArticleStatusPublished)
	} else {
		qb.Add(`AND (articles.status = $? OR articles.author_id = $?)`, models.ArticleStatusPublished, viewerID)
	}
}

func articleOrderBy(sort ArticleSort) string {
	switch sort {
	case ArticleSortPopular:
		return `ORDER BY articles.views_count DESC, articles.published_at DESC NULLS LAST`
	case ArticleSortClaps:
		return `ORDER BY articles.claps_count DESC, articles.published_at DESC NULLS LAST`
	case ArticleSortUpdated:
		return `ORDER BY articles.updated_at DESC`
	default:
		return `ORDER BY articles.published_at DESC NULLS LAST, articles.created_at DESC`
	}
}

/*
Fetches articles according to the query, respecting visibility: other
people's unpublished articles are never returned.
*/
func FetchArticles(
	ctx context.Context,
	dbConn db.ConnOrTx,
	viewerID *uuid.UUID,
	q ArticlesQuery,
) ([]*models.Article, error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch articles").End()

	var qb db.QueryBuilder
	qb.Add(`
		SELECT $columns{articles}
		FROM articles
	`)
	buildArticlesWhere(&qb, viewerID, q)
	qb.Add(articleOrderBy(q.Sort))
	if q.Limit > 0 {
		qb.Add(`LIMIT $? OFFSET $?`, q.Limit, q.Offset)
	}

	articles, err := db.Query[models.Article](ctx, dbConn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch articles")
	}
	return articles, nil
}

func CountArticles(
	ctx context.Context,
	dbConn db.ConnOrTx,
	viewerID *uuid.UUID,
	q ArticlesQuery,
) (int64, error) {
	var qb db.QueryBuilder
	qb.Add(`
		SELECT COUNT(*)
		FROM articles
	`)
	buildArticlesWhere(&qb, viewerID, q)

	count, err := db.QueryOneScalar[int64](ctx, dbConn, qb.String(), qb.Args()...)
	if err != nil {
		return 0, oops.New(err, "failed to count articles")
	}
	return count, nil
}

// Fetches a page of articles along with the total across all pages.
func FetchArticlesPaged(
	ctx context.Context,
	dbConn db.ConnOrTx,
	viewerID *uuid.UUID,
	q ArticlesQuery,
	page Page,
) (Paged[*models.Article], error) {
	q.Limit = page.Limit
	q.Offset = page.Offset()

	articles, err := FetchArticles(ctx, dbConn, viewerID, q)
	if err != nil {
		return Paged[*models.Article]{}, err
	}
	total, err := CountArticles(ctx, dbConn, viewerID, q)
	if err != nil {
		return Paged[*models.Article]{}, err
	}

	return Paged[*models.Article]{Items: articles, Total: total, Page: page}, nil
}

/*
Fetches a single article the viewer is allowed to see: published, or their
own. Returns ErrNotFound otherwise.
*/
func FetchArticle(
	ctx context.Context,
	dbConn db.ConnOrTx,
	viewerID *uuid.UUID,
	articleID uuid.UUID,
) (*models.Article, error) {
	return fetchOneArticle(ctx, dbConn, viewerID, ArticlesQuery{ArticleIDs: []uuid.UUID{articleID}})
}

func FetchArticleBySlug(
	ctx context.Context,
	dbConn db.ConnOrTx,
	viewerID *uuid.UUID,
	slug string,
) (*models.Article, error) {
	return fetchOneArticle(ctx, dbConn, viewerID, ArticlesQuery{Slugs: []string{slug}})
}

func fetchOneArticle(ctx context.Context, dbConn db.ConnOrTx, viewerID *uuid.UUID, q ArticlesQuery) (*models.Article, error) {
	q.Limit = 1
	articles, err := FetchArticles(ctx, dbConn, viewerID, q)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, ErrNotFound
	}
	return articles[0], nil
}

// Looks up who wrote an article, regardless of its status.
func fetchArticleAuthorID(ctx context.Context, dbConn db.ConnOrTx, articleID uuid.UUID) (uuid.UUID, error) {
	authorID, err := db.QueryOneScalar[uuid.UUID](ctx, dbConn,
		`
		SELECT author_id FROM articles WHERE id = $1
		`,
		articleID,
	)
	if errors.Is(err, db.NotFound) {
		return uuid.UUID{}, ErrNotFound
	} else if err != nil {
		return uuid.UUID{}, oops.New(err, "failed to fetch article author")
	}
	return authorID, nil
}

// Ownership check for mutations: ErrNotFound if the article is absent,
// ErrUnauthorized if someone else wrote it.
func checkArticleOwner(ctx context.Context, dbConn db.ConnOrTx, articleID, userID uuid.UUID) error {
	authorID, err := fetchArticleAuthorID(ctx, dbConn, articleID)
	if err != nil {
		return err
	}
	if authorID != userID {
		return ErrUnauthorized
	}
	return nil
}
