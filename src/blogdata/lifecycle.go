package blogdata

import (
	"context"
	"errors"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/parsing"
	"github.com/arsyadal/fastblog/src/slugs"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	maxTitleLength    = 200
	maxSubtitleLength = 300
	maxExcerptLength  = 500
)

type CreateArticleInput struct {
	Title            string
	Subtitle         *string
	Content          string
	Excerpt          *string
	FeaturedImageUrl *string
	PublicationID    *uuid.UUID
	Tags             []string
	Categories       []string
	IsMemberOnly     bool
	PaywallPosition  *int
	Status           models.ArticleStatus // defaults to draft
}

func (in *CreateArticleInput) validate() error {
	var v validator
	v.length("title", in.Title, 1, maxTitleLength)
	v.optionalLength("subtitle", in.Subtitle, maxSubtitleLength)
	v.length("content", in.Content, 1, 0)
	v.optionalLength("excerpt", in.Excerpt, maxExcerptLength)
	v.maxItems("tags", in.Tags, models.MaxArticleTags)
	v.maxItems("categories", in.Categories, models.MaxArticleCategories)
	v.check(in.Status == "" || in.Status.Valid(), "status", "unknown status")
	v.check(in.PaywallPosition == nil || *in.PaywallPosition >= 0, "paywall_position", "must be non-negative")
	return v.err()
}

// Fields derived from article content. Computed once per write.
type derivedContent struct {
	HTML        string
	ReadingTime int
	Excerpt     string
}

func deriveContent(content string) derivedContent {
	html := parsing.SanitizeContent(content)
	return derivedContent{
		HTML:        html,
		ReadingTime: parsing.ReadingTime(html),
		Excerpt:     parsing.Excerpt(html),
	}
}

/*
Creates an article owned by authorID. The slug is allocated from the title,
and the article is published immediately if the input asks for it.
*/
func CreateArticle(
	ctx context.Context,
	dbConn db.ConnOrTx,
	authorID uuid.UUID,
	in CreateArticleInput,
) (*models.Article, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	derived := deriveContent(in.Content)
	excerpt := in.Excerpt
	if excerpt == nil {
		excerpt = &derived.Excerpt
	}
	status := utils.OrDefault(in.Status, models.ArticleStatusDraft)

	return insertWithFreshSlug(ctx, dbConn, in.Title, slugs.FallbackArticle, func(tx pgx.Tx, slug string) (*models.Article, error) {
		return db.QueryOne[models.Article](ctx, tx,
			`
			---- Create article
			INSERT INTO articles (
				id, title, subtitle, content, content_html, excerpt, featured_image_url,
				author_id, publication_id, status, is_member_only, paywall_position,
				slug, tags, categories, reading_time_minutes,
				published_at, last_auto_save, auto_save_version
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7,
				$8, $9, $10, $11, $12,
				$13, $14, $15, $16,
				CASE WHEN $10::text = 'published' THEN NOW() END, NOW(), 1
			)
			RETURNING $columns
			`,
			uuid.New(), in.Title, in.Subtitle, in.Content, derived.HTML, excerpt, in.FeaturedImageUrl,
			authorID, in.PublicationID, status, in.IsMemberOnly, in.PaywallPosition,
			slug, nonNil(in.Tags), nonNil(in.Categories), derived.ReadingTime,
		)
	})
}

/*
Allocates a slug from slugSource and runs insert with it inside a savepoint. If the insert
loses a race for the slug, it tries again with a fresh allocation.
*/
func insertWithFreshSlug(
	ctx context.Context,
	dbConn db.ConnOrTx,
	slugSource, fallback string,
	insert func(tx pgx.Tx, slug string) (*models.Article, error),
) (*models.Article, error) {
	for attempt := 0; attempt < slugs.MaxAttempts; attempt++ {
		article, err := func() (*models.Article, error) {
			tx, err := dbConn.Begin(ctx)
			if err != nil {
				return nil, oops.New(err, "failed to start transaction")
			}
			defer tx.Rollback(ctx)

			slug, err := slugs.Allocate(ctx, tx, slugSource, fallback, nil)
			if err != nil {
				return nil, err
			}
			article, err := insert(tx, slug)
			if err != nil {
				return nil, err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, oops.New(err, "failed to commit article")
			}
			return article, nil
		}()
		if db.IsUniqueViolation(err, slugs.UniqueConstraint) {
			continue
		}
		if err != nil {
			return nil, oops.New(err, "failed to insert article")
		}
		return article, nil
	}
	return nil, oops.New(ErrConflict, "gave up allocating a slug after %d attempts", slugs.MaxAttempts)
}

type AutoSaveInput struct {
	ArticleID *uuid.UUID // nil starts a new draft

	Title            *string
	Subtitle         *string
	Content          string
	Excerpt          *string
	FeaturedImageUrl *string
	Tags             []string // nil leaves them alone
	Categories       []string
	IsMemberOnly     *bool
	PaywallPosition  *int
}

func (in *AutoSaveInput) validate() error {
	var v validator
	if in.Title != nil {
		v.length("title", *in.Title, 0, maxTitleLength)
	}
	v.optionalLength("subtitle", in.Subtitle, maxSubtitleLength)
	v.optionalLength("excerpt", in.Excerpt, maxExcerptLength)
	v.maxItems("tags", in.Tags, models.MaxArticleTags)
	v.maxItems("categories", in.Categories, models.MaxArticleCategories)
	return v.err()
}

/*
Saves work in progress. With an article id, merges into the caller's own
draft: omitted fields keep their value, content always overwrites, and the
auto-save version goes up by one. Returns ErrNotFound if there is no such
draft belonging to the caller.

Without an id, starts a new draft with a slug minted from the draft fallback.
*/
func AutoSave(
	ctx context.Context,
	dbConn db.ConnOrTx,
	authorID uuid.UUID,
	in AutoSaveInput,
) (*models.Article, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	derived := deriveContent(in.Content)

	if in.ArticleID == nil {
		// Slugs are minted once. Titling a draft later doesn't rename it.
		title := utils.DerefOr(in.Title, "")
		return insertWithFreshSlug(ctx, dbConn, "", slugs.FallbackDraft, func(tx pgx.Tx, slug string) (*models.Article, error) {
			return db.QueryOne[models.Article](ctx, tx,
				`
				---- Start draft
				INSERT INTO articles (
					id, title, subtitle, content, content_html, excerpt, featured_image_url,
					author_id, status, is_member_only, paywall_position,
					slug, tags, categories, reading_time_minutes,
					last_auto_save, auto_save_version
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7,
					$8, 'draft', $9, $10,
					$11, $12, $13, $14,
					NOW(), 1
				)
				RETURNING $columns
				`,
				uuid.New(), title, in.Subtitle, in.Content, derived.HTML, in.Excerpt, in.FeaturedImageUrl,
				authorID, utils.DerefOr(in.IsMemberOnly, false), in.PaywallPosition,
				slug, nonNil(in.Tags), nonNil(in.Categories), derived.ReadingTime,
			)
		})
	}

	article, err := db.QueryOne[models.Article](ctx, dbConn,
		`
		---- Auto-save draft
		UPDATE articles
		SET
			title = COALESCE($3, title),
			subtitle = COALESCE($4, subtitle),
			content = $5,
			content_html = $6,
			reading_time_minutes = $7,
			excerpt = COALESCE($8, excerpt),
			featured_image_url = COALESCE($9, featured_image_url),
			tags = COALESCE($10, tags),
			categories = COALESCE($11, categories),
			is_member_only = COALESCE($12, is_member_only),
			paywall_position = COALESCE($13, paywall_position),
			updated_at = NOW(),
			last_auto_save = NOW(),
			auto_save_version = auto_save_version + 1
		WHERE
			id = $1
			AND author_id = $2
			AND status = 'draft'
		RETURNING $columns
		`,
		*in.ArticleID, authorID,
		in.Title, in.Subtitle, in.Content, derived.HTML, derived.ReadingTime,
		in.Excerpt, in.FeaturedImageUrl, in.Tags, in.Categories, in.IsMemberOnly, in.PaywallPosition,
	)
	if errors.Is(err, db.NotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to auto-save draft")
	}
	return article, nil
}

type UpdateArticleInput struct {
	Title            *string
	Subtitle         *string
	Content          *string
	Excerpt          *string
	FeaturedImageUrl *string
	Tags             []string // nil leaves them alone
	Categories       []string
	IsMemberOnly     *bool
	PaywallPosition  *int
}

func (in *UpdateArticleInput) validate() error {
	var v validator
	if in.Title != nil {
		v.length("title", *in.Title, 1, maxTitleLength)
	}
	v.optionalLength("subtitle", in.Subtitle, maxSubtitleLength)
	if in.Content != nil {
		v.length("content", *in.Content, 1, 0)
	}
	v.optionalLength("excerpt", in.Excerpt, maxExcerptLength)
	v.maxItems("tags", in.Tags, models.MaxArticleTags)
	v.maxItems("categories", in.Categories, models.MaxArticleCategories)
	v.check(in.PaywallPosition == nil || *in.PaywallPosition >= 0, "paywall_position", "must be non-negative")
	return v.err()
}

/*
Applies a partial update to the caller's article. The slug never changes
here, even if the title does. New content re-derives the HTML, reading time
and, unless an excerpt was given too, the excerpt.

Returns ErrNotFound if the article doesn't exist and ErrUnauthorized if the
caller didn't write it.
*/
func UpdateArticle(
	ctx context.Context,
	dbConn db.ConnOrTx,
	authorID uuid.UUID,
	articleID uuid.UUID,
	in UpdateArticleInput,
) (*models.Article, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := checkArticleOwner(ctx, dbConn, articleID, authorID); err != nil {
		return nil, err
	}

	var contentHTML *string
	var readingTime *int
	excerpt := in.Excerpt
	if in.Content != nil {
		derived := deriveContent(*in.Content)
		contentHTML = &derived.HTML
		readingTime = &derived.ReadingTime
		if excerpt == nil {
			excerpt = &derived.Excerpt
		}
	}

	article, err := db.QueryOne[models.Article](ctx, dbConn,
		`
		---- Update article
		UPDATE articles
		SET
			title = COALESCE($3, title),
			subtitle = COALESCE($4, subtitle),
			content = COALESCE($5, content),
			content_html = COALESCE($6, content_html),
			reading_time_minutes = COALESCE($7, reading_time_minutes),
			excerpt = COALESCE($8, excerpt),
			featured_image_url = COALESCE($9, featured_image_url),
			tags = COALESCE($10, tags),
			categories = COALESCE($11, categories),
			is_member_only = COALESCE($12, is_member_only),
			paywall_position = COALESCE($13, paywall_position),
			updated_at = NOW()
		WHERE
			id = $1
			AND author_id = $2
		RETURNING $columns
		`,
		articleID, authorID,
		in.Title, in.Subtitle, in.Content, contentHTML, readingTime,
		excerpt, in.FeaturedImageUrl, in.Tags, in.Categories, in.IsMemberOnly, in.PaywallPosition,
	)
	if errors.Is(err, db.NotFound) {
		// deleted between the ownership check and now
		return nil, ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to update article")
	}
	return article, nil
}

/*
Publishes one of the caller's drafts. This is one-way: anything that isn't a
draft owned by the caller comes back as ErrNotFound, including articles that
are already published. The slug stays as it was minted.
*/
func PublishArticle(
	ctx context.Context,
	dbConn db.ConnOrTx,
	authorID uuid.UUID,
	articleID uuid.UUID,
) (*models.Article, error) {
	article, err := db.QueryOne[models.Article](ctx, dbConn,
		`
		---- Publish article
		UPDATE articles
		SET
			status = 'published',
			published_at = NOW(),
			updated_at = NOW()
		WHERE
			id = $1
			AND author_id = $2
			AND status = 'draft'
		RETURNING $columns
		`,
		articleID, authorID,
	)
	if errors.Is(err, db.NotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to publish article")
	}
	return article, nil
}

/*
Deletes one of the caller's articles. Engagement rows go with it. Returns
ErrNotFound whether the article is missing or belongs to someone else.
*/
func DeleteArticle(
	ctx context.Context,
	dbConn db.ConnOrTx,
	authorID uuid.UUID,
	articleID uuid.UUID,
) error {
	tag, err := dbConn.Exec(ctx,
		`
		---- Delete article
		DELETE FROM articles
		WHERE id = $1 AND author_id = $2
		`,
		articleID, authorID,
	)
	if err != nil {
		return oops.New(err, "failed to delete article")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts a view. Every call counts; there is no per-viewer deduplication.
func RecordView(ctx context.Context, dbConn db.ConnOrTx, articleID uuid.UUID) (int64, error) {
	return bumpCounter(ctx, dbConn, articleID, "views_count")
}

// Counts a read-through. Same rules as RecordView.
func RecordRead(ctx context.Context, dbConn db.ConnOrTx, articleID uuid.UUID) (int64, error) {
	return bumpCounter(ctx, dbConn, articleID, "reads_count")
}

func bumpCounter(ctx context.Context, dbConn db.ConnOrTx, articleID uuid.UUID, column string) (int64, error) {
	count, err := db.QueryOneScalar[int64](ctx, dbConn,
		`UPDATE articles SET `+column+` = `+column+` + 1 WHERE id = $1 RETURNING `+column,
		articleID,
	)
	if errors.Is(err, db.NotFound) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, oops.New(err, "failed to bump %s", column)
	}
	return count, nil
}

// The user flipping a flag, and whether they have site-wide powers.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

/*
Flips is_featured on an article and returns the new value. Only the author
or an admin may do this.
*/
func ToggleFeatured(ctx context.Context, dbConn db.ConnOrTx, actor Actor, articleID uuid.UUID) (bool, error) {
	authorID, err := fetchArticleAuthorID(ctx, dbConn, articleID)
	if err != nil {
		return false, err
	}
	if authorID != actor.UserID && !actor.IsAdmin {
		return false, ErrUnauthorized
	}

	featured, err := db.QueryOneScalar[bool](ctx, dbConn,
		`
		---- Toggle featured
		UPDATE articles
		SET is_featured = NOT is_featured
		WHERE id = $1
		RETURNING is_featured
		`,
		articleID,
	)
	if errors.Is(err, db.NotFound) {
		return false, ErrNotFound
	} else if err != nil {
		return false, oops.New(err, "failed to toggle featured")
	}
	return featured, nil
}

// text[] columns are NOT NULL; nil slices would encode as NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
