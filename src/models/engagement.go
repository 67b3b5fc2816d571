package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinClapCount = 1
	MaxClapCount = 50
)

// A clap is present or absent per (user, article). ClapCount is the
// magnitude the reader asked for; article totals only count presence.
type Clap struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	ArticleID uuid.UUID `db:"article_id"`
	ClapCount int       `db:"clap_count"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Bookmark struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	ArticleID uuid.UUID `db:"article_id"`
	CreatedAt time.Time `db:"created_at"`
}

const MaxCommentLength = 2000

type Comment struct {
	ID        uuid.UUID  `db:"id"`
	ArticleID uuid.UUID  `db:"article_id"`
	UserID    uuid.UUID  `db:"user_id"`
	ParentID  *uuid.UUID `db:"parent_id"`

	Content     string `db:"content"`
	ContentHTML string `db:"content_html"`

	ClapsCount    int  `db:"claps_count"`
	RepliesCount  int  `db:"replies_count"`
	IsAuthorReply bool `db:"is_author_reply"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
