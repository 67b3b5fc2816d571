package blogdata

import (
	"context"
	"errors"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/parsing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

/*
All writes to the denormalized counters on articles and comments go through
this file (and the reconcile job). Each operation runs in one transaction and
locks the article row first, so concurrent toggles on the same article
serialize and every recomputed count reflects the rows that committed.
*/

const clapUniqueConstraint = "claps_user_id_article_id_key"

type ClapResult struct {
	TotalClaps    int64 // distinct users currently clapping
	PersonalCount int   // the caller's recorded magnitude, 0 if not clapping
	IsClapped     bool
}

/*
Toggles the caller's clap on an article: adds it if absent, removes it if
present. magnitude is stored with a new clap but the article total only
counts clappers.

If a concurrent twin inserts first, the toggle is retried once from the top.
*/
func ToggleClap(
	ctx context.Context,
	dbConn db.ConnOrTx,
	articleID uuid.UUID,
	userID uuid.UUID,
	magnitude int,
) (ClapResult, error) {
	var v validator
	v.between("clap_count", magnitude, models.MinClapCount, models.MaxClapCount)
	if err := v.err(); err != nil {
		return ClapResult{}, err
	}

	var res ClapResult
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		res, err = toggleClapOnce(ctx, dbConn, articleID, userID, magnitude)
		if !db.IsUniqueViolation(err, clapUniqueConstraint) {
			return res, err
		}
	}
	return ClapResult{}, oops.New(ErrConflict, "clap toggle kept colliding")
}

func toggleClapOnce(ctx context.Context, dbConn db.ConnOrTx, articleID, userID uuid.UUID, magnitude int) (ClapResult, error) {
	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return ClapResult{}, oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := lockArticle(ctx, tx, articleID); err != nil {
		return ClapResult{}, err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM claps WHERE article_id = $1 AND user_id = $2`,
		articleID, userID,
	)
	if err != nil {
		return ClapResult{}, oops.New(err, "failed to remove clap")
	}

	var res ClapResult
	if tag.RowsAffected() == 0 {
		_, err := tx.Exec(ctx,
			`
			INSERT INTO claps (id, user_id, article_id, clap_count)
			VALUES ($1, $2, $3, $4)
			`,
			uuid.New(), userID, articleID, magnitude,
		)
		if err != nil {
			return ClapResult{}, err
		}
		res.IsClapped = true
		res.PersonalCount = magnitude
	}

	res.TotalClaps, err = db.QueryOneScalar[int64](ctx, tx,
		`
		---- Recount claps
		UPDATE articles
		SET claps_count = (SELECT COUNT(*) FROM claps WHERE article_id = $1)
		WHERE id = $1
		RETURNING claps_count
		`,
		articleID,
	)
	if err != nil {
		return ClapResult{}, oops.New(err, "failed to recount claps")
	}

	if err := tx.Commit(ctx); err != nil {
		return ClapResult{}, oops.New(err, "failed to commit clap")
	}
	return res, nil
}

type BookmarkResult struct {
	AlreadyBookmarked bool
	BookmarksCount    int
}

/*
Bookmarks an article for the caller. Bookmarking twice is harmless; the
count only moves when a bookmark is actually created.
*/
func Bookmark(ctx context.Context, dbConn db.ConnOrTx, articleID, userID uuid.UUID) (BookmarkResult, error) {
	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return BookmarkResult{}, oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := lockArticle(ctx, tx, articleID); err != nil {
		return BookmarkResult{}, err
	}

	tag, err := tx.Exec(ctx,
		`
		INSERT INTO bookmarks (id, user_id, article_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, article_id) DO NOTHING
		`,
		uuid.New(), userID, articleID,
	)
	if err != nil {
		return BookmarkResult{}, oops.New(err, "failed to insert bookmark")
	}

	var res BookmarkResult
	res.AlreadyBookmarked = tag.RowsAffected() == 0
	if res.AlreadyBookmarked {
		res.BookmarksCount, err = db.QueryOneScalar[int](ctx, tx,
			`SELECT bookmarks_count FROM articles WHERE id = $1`,
			articleID,
		)
	} else {
		res.BookmarksCount, err = db.QueryOneScalar[int](ctx, tx,
			`
			UPDATE articles
			SET bookmarks_count = bookmarks_count + 1
			WHERE id = $1
			RETURNING bookmarks_count
			`,
			articleID,
		)
	}
	if err != nil {
		return BookmarkResult{}, oops.New(err, "failed to update bookmark count")
	}

	if err := tx.Commit(ctx); err != nil {
		return BookmarkResult{}, oops.New(err, "failed to commit bookmark")
	}
	return res, nil
}

type UnbookmarkResult struct {
	Removed        bool
	BookmarksCount int
}

// Removes the caller's bookmark. The count never drops below zero.
func Unbookmark(ctx context.Context, dbConn db.ConnOrTx, articleID, userID uuid.UUID) (UnbookmarkResult, error) {
	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return UnbookmarkResult{}, oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := lockArticle(ctx, tx, articleID); err != nil {
		return UnbookmarkResult{}, err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM bookmarks WHERE article_id = $1 AND user_id = $2`,
		articleID, userID,
	)
	if err != nil {
		return UnbookmarkResult{}, oops.New(err, "failed to delete bookmark")
	}

	var res UnbookmarkResult
	res.Removed = tag.RowsAffected() > 0
	if res.Removed {
		res.BookmarksCount, err = db.QueryOneScalar[int](ctx, tx,
			`
			UPDATE articles
			SET bookmarks_count = GREATEST(bookmarks_count - 1, 0)
			WHERE id = $1
			RETURNING bookmarks_count
			`,
			articleID,
		)
	} else {
		res.BookmarksCount, err = db.QueryOneScalar[int](ctx, tx,
			`SELECT bookmarks_count FROM articles WHERE id = $1`,
			articleID,
		)
	}
	if err != nil {
		return UnbookmarkResult{}, oops.New(err, "failed to update bookmark count")
	}

	if err := tx.Commit(ctx); err != nil {
		return UnbookmarkResult{}, oops.New(err, "failed to commit unbookmark")
	}
	return res, nil
}

type CommentInput struct {
	ParentID *uuid.UUID
	Content  string
}

func (in *CommentInput) validate() error {
	var v validator
	v.length("content", in.Content, 1, models.MaxCommentLength)
	return v.err()
}

/*
Adds a comment, or a reply if ParentID is set. Replies must point at a
top-level comment on the same article. A reply counts as an author reply
when the comment it answers was written by the article's author.
*/
func AddComment(
	ctx context.Context,
	dbConn db.ConnOrTx,
	articleID uuid.UUID,
	userID uuid.UUID,
	in CommentInput,
) (*CommentWithAuthor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return nil, oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	articleAuthorID, err := db.QueryOneScalar[uuid.UUID](ctx, tx,
		`SELECT author_id FROM articles WHERE id = $1 FOR UPDATE`,
		articleID,
	)
	if errors.Is(err, db.NotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to lock article")
	}

	isAuthorReply := false
	if in.ParentID != nil {
		type parentInfo struct {
			ArticleID uuid.UUID  `db:"article_id"`
			UserID    uuid.UUID  `db:"user_id"`
			ParentID  *uuid.UUID `db:"parent_id"`
		}
		parent, err := db.QueryOne[parentInfo](ctx, tx,
			`SELECT $columns FROM comments WHERE id = $1 FOR UPDATE`,
			*in.ParentID,
		)
		if errors.Is(err, db.NotFound) {
			return nil, invalid("parent_id", "parent comment does not exist")
		} else if err != nil {
			return nil, oops.New(err, "failed to fetch parent comment")
		}
		if parent.ArticleID != articleID {
			return nil, invalid("parent_id", "parent comment belongs to a different article")
		}
		if parent.ParentID != nil {
			return nil, invalid("parent_id", "replies can only be one level deep")
		}
		isAuthorReply = parent.UserID == articleAuthorID
	}

	comment, err := db.QueryOne[models.Comment](ctx, tx,
		`
		---- Insert comment
		INSERT INTO comments (id, article_id, user_id, parent_id, content, content_html, is_author_reply)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING $columns
		`,
		uuid.New(), articleID, userID, in.ParentID, in.Content, parsing.RenderComment(in.Content), isAuthorReply,
	)
	if err != nil {
		return nil, oops.New(err, "failed to insert comment")
	}

	if in.ParentID != nil {
		_, err = tx.Exec(ctx,
			`UPDATE comments SET replies_count = replies_count + 1 WHERE id = $1`,
			*in.ParentID,
		)
		if err != nil {
			return nil, oops.New(err, "failed to bump reply count")
		}
	}
	_, err = tx.Exec(ctx,
		`UPDATE articles SET comments_count = comments_count + 1 WHERE id = $1`,
		articleID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to bump comment count")
	}

	author, err := fetchPublicUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.New(err, "failed to commit comment")
	}

	return &CommentWithAuthor{Comment: *comment, Author: *author}, nil
}

type CommentWithAuthor struct {
	Comment models.Comment `db:"comments"`
	Author  PublicUser     `db:"u"`

	Replies []*CommentWithAuthor
}

/*
Fetches an article's comments as a tree: top-level comments oldest first,
each with its replies nested underneath, also oldest first. The article must
be visible to the viewer.
*/
func FetchComments(
	ctx context.Context,
	dbConn db.ConnOrTx,
	viewerID *uuid.UUID,
	articleID uuid.UUID,
) ([]*CommentWithAuthor, error) {
	if _, err := FetchArticle(ctx, dbConn, viewerID, articleID); err != nil {
		return nil, err
	}

	rows, err := db.Query[CommentWithAuthor](ctx, dbConn,
		`
		---- Fetch comments
		SELECT $columns
		FROM
			comments
			JOIN users AS u ON u.id = comments.user_id
		WHERE comments.article_id = $1
		ORDER BY comments.created_at ASC, comments.id ASC
		`,
		articleID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch comments")
	}

	return nestComments(rows), nil
}

// Input must already be in display order.
func nestComments(rows []*CommentWithAuthor) []*CommentWithAuthor {
	byID := make(map[uuid.UUID]*CommentWithAuthor, len(rows))
	for _, row := range rows {
		byID[row.Comment.ID] = row
	}

	var topLevel []*CommentWithAuthor
	for _, row := range rows {
		if row.Comment.ParentID == nil {
			topLevel = append(topLevel, row)
			continue
		}
		if parent, ok := byID[*row.Comment.ParentID]; ok {
			parent.Replies = append(parent.Replies, row)
		}
	}
	return topLevel
}

// Takes a row lock on the article for the rest of the transaction, or
// returns ErrNotFound.
func lockArticle(ctx context.Context, tx pgx.Tx, articleID uuid.UUID) error {
	_, err := db.QueryOneScalar[uuid.UUID](ctx, tx,
		`SELECT id FROM articles WHERE id = $1 FOR UPDATE`,
		articleID,
	)
	if errors.Is(err, db.NotFound) {
		return ErrNotFound
	} else if err != nil {
		return oops.New(err, "failed to lock article")
	}
	return nil
}
