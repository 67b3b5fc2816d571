package blogdata

import (
	"context"
	"fmt"
	"time"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/google/uuid"
)

/*
Published articles by everyone the viewer follows, newest first.
*/
func FetchFeed(
	ctx context.Context,
	dbConn db.ConnOrTx,
	viewerID uuid.UUID,
	page Page,
) (Paged[*models.Article], error) {
	articles, err := db.Query[models.Article](ctx, dbConn,
		`
		---- Fetch feed
		SELECT $columns{articles}
		FROM articles
		WHERE
			articles.status = 'published'
			AND articles.published_at IS NOT NULL
			AND articles.author_id IN (
				SELECT following_id FROM user_follows WHERE follower_id = $1
			)
		ORDER BY articles.published_at DESC
		LIMIT $2 OFFSET $3
		`,
		viewerID, page.Limit, page.Offset(),
	)
	if err != nil {
		return Paged[*models.Article]{}, oops.New(err, "failed to fetch feed")
	}

	total, err := db.QueryOneScalar[int64](ctx, dbConn,
		`
		SELECT COUNT(*)
		FROM articles
		WHERE
			status = 'published'
			AND published_at IS NOT NULL
			AND author_id IN (
				SELECT following_id FROM user_follows WHERE follower_id = $1
			)
		`,
		viewerID,
	)
	if err != nil {
		return Paged[*models.Article]{}, oops.New(err, "failed to count feed")
	}

	return Paged[*models.Article]{Items: articles, Total: total, Page: page}, nil
}

const (
	DefaultTrendingWindow = 168 * time.Hour

	trendingClapWeight    = 3
	trendingCommentWeight = 2
	trendingReadWeight    = 1
	trendingViewWeight    = 0.1
	trendingFreshBonus    = 10
	trendingFreshWindow   = 24 * time.Hour
)

/*
TrendingScore weighs engagement, with a flat bonus for articles published in
the last day:

	claps*3 + comments*2 + reads + views*0.1 + (fresh ? 10 : 0)
*/
func TrendingScore(a *models.Article, now time.Time) float64 {
	score := float64(a.ClapsCount)*trendingClapWeight +
		float64(a.CommentsCount)*trendingCommentWeight +
		float64(a.ReadsCount)*trendingReadWeight +
		float64(a.ViewsCount)*trendingViewWeight
	if a.PublishedAt != nil && a.PublishedAt.After(now.Add(-trendingFreshWindow)) {
		score += trendingFreshBonus
	}
	return score
}

// The same formula as TrendingScore, for ordering in SQL. $1 is the
// freshness cutoff.
var trendingScoreSQL = fmt.Sprintf(
	`(articles.claps_count * %d + articles.comments_count * %d + articles.reads_count * %d + articles.views_count * %g`+
		` + CASE WHEN articles.published_at > $1 THEN %d ELSE 0 END)::float8`,
	trendingClapWeight, trendingCommentWeight, trendingReadWeight, trendingViewWeight, trendingFreshBonus,
)

type TrendingArticle struct {
	Article *models.Article
	Score   float64
}

/*
Published articles from the last window (default a week), highest trending
score first. Ties go to the more recent article.
*/
func FetchTrending(
	ctx context.Context,
	dbConn db.ConnOrTx,
	window time.Duration,
	page Page,
) (Paged[TrendingArticle], error) {
	if window <= 0 {
		window = DefaultTrendingWindow
	}
	now := time.Now()

	type trendingRow struct {
		Article models.Article `db:"articles"`
		Score   float64        `db:"score"`
	}
	rows, err := db.Query[trendingRow](ctx, dbConn,
		`
		---- Fetch trending
		SELECT $columns
		FROM (
			SELECT articles.*, `+trendingScoreSQL+` AS score
			FROM articles
			WHERE
				articles.status = 'published'
				AND articles.published_at >= $2
		) AS articles
		ORDER BY score DESC, articles.published_at DESC
		LIMIT $3 OFFSET $4
		`,
		now.Add(-trendingFreshWindow), now.Add(-window), page.Limit, page.Offset(),
	)
	if err != nil {
		return Paged[TrendingArticle]{}, oops.New(err, "failed to fetch trending articles")
	}

	total, err := db.QueryOneScalar[int64](ctx, dbConn,
		`
		SELECT COUNT(*)
		FROM articles
		WHERE status = 'published' AND published_at >= $1
		`,
		now.Add(-window),
	)
	if err != nil {
		return Paged[TrendingArticle]{}, oops.New(err, "failed to count trending articles")
	}

	items := make([]TrendingArticle, len(rows))
	for i, row := range rows {
		items[i] = TrendingArticle{Article: &row.Article, Score: row.Score}
	}
	return Paged[TrendingArticle]{Items: items, Total: total, Page: page}, nil
}

// Featured articles, newest first.
func FetchFeatured(ctx context.Context, dbConn db.ConnOrTx, page Page) (Paged[*models.Article], error) {
	return FetchArticlesPaged(ctx, dbConn, nil, ArticlesQuery{
		FeaturedOnly:  true,
		OnlyPublished: true,
		Sort:          ArticleSortRecent,
	}, page)
}

// The author's own drafts, most recently touched first.
func FetchDrafts(ctx context.Context, dbConn db.ConnOrTx, authorID uuid.UUID, page Page) (Paged[*models.Article], error) {
	return FetchArticlesPaged(ctx, dbConn, &authorID, ArticlesQuery{
		AuthorIDs: []uuid.UUID{authorID},
		Statuses:  []models.ArticleStatus{models.ArticleStatusDraft},
		Sort:      ArticleSortUpdated,
	}, page)
}

// A user's bookmarked articles, newest bookmark first. Bookmarks of
// articles that have since been unpublished are skipped.
func FetchBookmarkedArticles(ctx context.Context, dbConn db.ConnOrTx, userID uuid.UUID, page Page) (Paged[*models.Article], error) {
	articles, err := db.Query[models.Article](ctx, dbConn,
		`
		---- Fetch bookmarks
		SELECT $columns{articles}
		FROM
			bookmarks
			JOIN articles ON articles.id = bookmarks.article_id
		WHERE
			bookmarks.user_id = $1
			AND (articles.status = 'published' OR articles.author_id = $1)
		ORDER BY bookmarks.created_at DESC
		LIMIT $2 OFFSET $3
		`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return Paged[*models.Article]{}, oops.New(err, "failed to fetch bookmarked articles")
	}

	total, err := db.QueryOneScalar[int64](ctx, dbConn,
		`
		SELECT COUNT(*)
		FROM
			bookmarks
			JOIN articles ON articles.id = bookmarks.article_id
		WHERE
			bookmarks.user_id = $1
			AND (articles.status = 'published' OR articles.author_id = $1)
		`,
		userID,
	)
	if err != nil {
		return Paged[*models.Article]{}, oops.New(err, "failed to count bookmarked articles")
	}

	return Paged[*models.Article]{Items: articles, Total: total, Page: page}, nil
}
