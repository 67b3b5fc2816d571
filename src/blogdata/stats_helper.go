package blogdata

import (
	"context"
	"time"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/google/uuid"
)

const topArticlesCount = 5

type ArticleStats struct {
	ArticleID          uuid.UUID
	Title              string
	ViewsCount         int64
	ReadsCount         int64
	ClapsCount         int64
	CommentsCount      int
	BookmarksCount     int
	ReadingTimeMinutes int
	PublishedAt        *time.Time
	EngagementRate     float64
}

// Reads as a percentage of views. Zero until the article has been viewed.
func EngagementRate(reads, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(reads) / float64(views) * 100
}

func NewArticleStats(a *models.Article) ArticleStats {
	return ArticleStats{
		ArticleID:          a.ID,
		Title:              a.Title,
		ViewsCount:         a.ViewsCount,
		ReadsCount:         a.ReadsCount,
		ClapsCount:         a.ClapsCount,
		CommentsCount:      a.CommentsCount,
		BookmarksCount:     a.BookmarksCount,
		ReadingTimeMinutes: a.ReadingTimeMinutes,
		PublishedAt:        a.PublishedAt,
		EngagementRate:     EngagementRate(a.ReadsCount, a.ViewsCount),
	}
}

// Counters for one article. Only its author may see them.
func FetchArticleStats(ctx context.Context, dbConn db.ConnOrTx, userID, articleID uuid.UUID) (ArticleStats, error) {
	if err := checkArticleOwner(ctx, dbConn, articleID, userID); err != nil {
		return ArticleStats{}, err
	}

	article, err := FetchArticle(ctx, dbConn, &userID, articleID)
	if err != nil {
		return ArticleStats{}, err
	}
	return NewArticleStats(article), nil
}

type AuthorStats struct {
	TotalArticles         int64
	TotalViews            int64
	TotalReads            int64
	TotalClaps            int64
	TotalComments         int64
	TotalBookmarks        int64
	AverageReadingTime    float64
	AverageEngagementRate float64
	TopArticles           []ArticleStats
}

// Totals across an author's published articles, plus their five most viewed.
func FetchAuthorStats(ctx context.Context, dbConn db.ConnOrTx, authorID uuid.UUID) (*AuthorStats, error) {
	type totalsRow struct {
		TotalArticles      int64   `db:"total_articles"`
		TotalViews         int64   `db:"total_views"`
		TotalReads         int64   `db:"total_reads"`
		TotalClaps         int64   `db:"total_claps"`
		TotalComments      int64   `db:"total_comments"`
		TotalBookmarks     int64   `db:"total_bookmarks"`
		AverageReadingTime float64 `db:"avg_reading_time"`
	}
	totals, err := db.QueryOne[totalsRow](ctx, dbConn,
		`
		---- Fetch author stats
		SELECT $columns
		FROM (
			SELECT
				COUNT(*) AS total_articles,
				COALESCE(SUM(views_count), 0)::bigint AS total_views,
				COALESCE(SUM(reads_count), 0)::bigint AS total_reads,
				COALESCE(SUM(claps_count), 0)::bigint AS total_claps,
				COALESCE(SUM(comments_count), 0)::bigint AS total_comments,
				COALESCE(SUM(bookmarks_count), 0)::bigint AS total_bookmarks,
				COALESCE(AVG(reading_time_minutes), 0)::float8 AS avg_reading_time
			FROM articles
			WHERE author_id = $1 AND status = 'published'
		) AS agg
		`,
		authorID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch author totals")
	}

	top, err := FetchArticles(ctx, dbConn, nil, ArticlesQuery{
		AuthorIDs:     []uuid.UUID{authorID},
		OnlyPublished: true,
		Sort:          ArticleSortPopular,
		Limit:         topArticlesCount,
	})
	if err != nil {
		return nil, err
	}

	stats := &AuthorStats{
		TotalArticles:         totals.TotalArticles,
		TotalViews:            totals.TotalViews,
		TotalReads:            totals.TotalReads,
		TotalClaps:            totals.TotalClaps,
		TotalComments:         totals.TotalComments,
		TotalBookmarks:        totals.TotalBookmarks,
		AverageReadingTime:    totals.AverageReadingTime,
		AverageEngagementRate: EngagementRate(totals.TotalReads, totals.TotalViews),
		TopArticles:           make([]ArticleStats, len(top)),
	}
	for i, a := range top {
		stats.TopArticles[i] = NewArticleStats(a)
	}
	return stats, nil
}
