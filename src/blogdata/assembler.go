package blogdata

import (
	"context"
	"time"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/parsing"
	"github.com/arsyadal/fastblog/src/perf"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// ArticleView is an article as the API returns it.
type ArticleView struct {
	ID                 uuid.UUID            `json:"id"`
	Title              string               `json:"title"`
	Subtitle           *string              `json:"subtitle"`
	Content            string               `json:"content"`
	ContentHTML        string               `json:"content_html"`
	Excerpt            *string              `json:"excerpt"`
	FeaturedImageUrl   *string              `json:"featured_image_url"`
	Author             *PublicUser          `json:"author"`
	Status             models.ArticleStatus `json:"status"`
	IsMemberOnly       bool                 `json:"is_member_only"`
	IsFeatured         bool                 `json:"is_featured"`
	PaywallPosition    *int                 `json:"paywall_position"`
	Slug               string               `json:"slug"`
	Tags               []string             `json:"tags"`
	Categories         []string             `json:"categories"`
	ReadingTimeMinutes int                  `json:"reading_time_minutes"`
	ClapsCount         int64                `json:"claps_count"`
	CommentsCount      int                  `json:"comments_count"`
	BookmarksCount     int                  `json:"bookmarks_count"`
	ViewsCount         int64                `json:"views_count"`
	ReadsCount         int64                `json:"reads_count"`
	AutoSaveVersion    int                  `json:"auto_save_version"`
	PublishedAt        *time.Time           `json:"published_at"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`

	// Nil for anonymous viewers, which is not the same as all false.
	UserInteractions *UserInteractions `json:"user_interactions"`

	ShareUrl         string `json:"share_url"`
	ShareTitle       string `json:"share_title"`
	ShareDescription string `json:"share_description"`
}

type UserInteractions struct {
	HasClapped        bool `json:"has_clapped"`
	ClapCount         int  `json:"clap_count"`
	HasBookmarked     bool `json:"has_bookmarked"`
	IsFollowingAuthor bool `json:"is_following_author"`
}

func ArticleShareUrl(frontendUrl, slug string) string {
	return frontendUrl + "/article/" + slug
}

func NewArticleView(a *models.Article, author *PublicUser, interactions *UserInteractions, frontendUrl string) *ArticleView {
	return &ArticleView{
		ID:                 a.ID,
		Title:              a.Title,
		Subtitle:           a.Subtitle,
		Content:            a.Content,
		ContentHTML:        a.ContentHTML,
		Excerpt:            a.Excerpt,
		FeaturedImageUrl:   a.FeaturedImageUrl,
		Author:             author,
		Status:             a.Status,
		IsMemberOnly:       a.IsMemberOnly,
		IsFeatured:         a.IsFeatured,
		PaywallPosition:    a.PaywallPosition,
		Slug:               a.Slug,
		Tags:               nonNil(a.Tags),
		Categories:         nonNil(a.Categories),
		ReadingTimeMinutes: a.ReadingTimeMinutes,
		ClapsCount:         a.ClapsCount,
		CommentsCount:      a.CommentsCount,
		BookmarksCount:     a.BookmarksCount,
		ViewsCount:         a.ViewsCount,
		ReadsCount:         a.ReadsCount,
		AutoSaveVersion:    a.AutoSaveVersion,
		PublishedAt:        a.PublishedAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		UserInteractions:   interactions,
		ShareUrl:           ArticleShareUrl(frontendUrl, a.Slug),
		ShareTitle:         a.Title,
		ShareDescription:   parsing.ShareDescription(a.Excerpt, a.Subtitle, a.ContentHTML),
	}
}

func AssembleArticle(ctx context.Context, pool *pgxpool.Pool, viewerID *uuid.UUID, article *models.Article) (*ArticleView, error) {
	views, err := AssembleArticles(ctx, pool, viewerID, []*models.Article{article})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

/*
Turns articles into API views: each gets its author's public profile and,
when there is a viewer, whether they have clapped, bookmarked, and followed
the author.

Authors and the three viewer lookups are independent batch queries, so they
run concurrently on separate pool connections.
*/
func AssembleArticles(ctx context.Context, pool *pgxpool.Pool, viewerID *uuid.UUID, articles []*models.Article) ([]*ArticleView, error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Assemble articles").End()

	articleIDs := make([]uuid.UUID, len(articles))
	authorIDs := make([]uuid.UUID, 0, len(articles))
	seenAuthors := make(map[uuid.UUID]bool)
	for i, a := range articles {
		articleIDs[i] = a.ID
		if !seenAuthors[a.AuthorID] {
			seenAuthors[a.AuthorID] = true
			authorIDs = append(authorIDs, a.AuthorID)
		}
	}

	var (
		authors    map[uuid.UUID]*PublicUser
		clapCounts map[uuid.UUID]int
		bookmarked map[uuid.UUID]bool
		following  map[uuid.UUID]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		authors, err = fetchPublicUsers(gctx, pool, authorIDs)
		return err
	})
	if viewerID != nil {
		g.Go(func() error {
			var err error
			clapCounts, err = fetchViewerClaps(gctx, pool, *viewerID, articleIDs)
			return err
		})
		g.Go(func() error {
			var err error
			bookmarked, err = fetchViewerBookmarks(gctx, pool, *viewerID, articleIDs)
			return err
		})
		g.Go(func() error {
			var err error
			following, err = fetchViewerFollows(gctx, pool, *viewerID, authorIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	perf.ExtractPerf(ctx).Checkpoint("SQL", "Batch lookups done")

	views := make([]*ArticleView, len(articles))
	for i, a := range articles {
		var interactions *UserInteractions
		if viewerID != nil {
			clapCount, hasClapped := clapCounts[a.ID]
			interactions = &UserInteractions{
				HasClapped:        hasClapped,
				ClapCount:         clapCount,
				HasBookmarked:     bookmarked[a.ID],
				IsFollowingAuthor: following[a.AuthorID],
			}
		}
		views[i] = NewArticleView(a, authors[a.AuthorID], interactions, config.Config.FrontendUrl)
	}
	return views, nil
}

func fetchViewerClaps(ctx context.Context, dbConn db.ConnOrTx, viewerID uuid.UUID, articleIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	type clapRow struct {
		ArticleID uuid.UUID `db:"article_id"`
		ClapCount int       `db:"clap_count"`
	}
	claps, err := db.Query[clapRow](ctx, dbConn,
		`
		---- Fetch viewer claps
		SELECT $columns
		FROM claps
		WHERE user_id = $1 AND article_id = ANY($2)
		`,
		viewerID, articleIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch viewer claps")
	}

	result := make(map[uuid.UUID]int, len(claps))
	for _, c := range claps {
		result[c.ArticleID] = c.ClapCount
	}
	return result, nil
}

func fetchViewerBookmarks(ctx context.Context, dbConn db.ConnOrTx, viewerID uuid.UUID, articleIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	ids, err := db.QueryScalar[uuid.UUID](ctx, dbConn,
		`
		---- Fetch viewer bookmarks
		SELECT article_id
		FROM bookmarks
		WHERE user_id = $1 AND article_id = ANY($2)
		`,
		viewerID, articleIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch viewer bookmarks")
	}
	return idSet(ids), nil
}

func fetchViewerFollows(ctx context.Context, dbConn db.ConnOrTx, viewerID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	ids, err := db.QueryScalar[uuid.UUID](ctx, dbConn,
		`
		---- Fetch viewer follows
		SELECT following_id
		FROM user_follows
		WHERE follower_id = $1 AND following_id = ANY($2)
		`,
		viewerID, userIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch viewer follows")
	}
	return idSet(ids), nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
