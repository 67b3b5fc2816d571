package models

import (
	"time"

	"github.com/google/uuid"
)

type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusUnlisted  ArticleStatus = "unlisted" // No transitions lead here yet
	ArticleStatusArchived  ArticleStatus = "archived" // Same
)

func (s ArticleStatus) Valid() bool {
	switch s {
	case ArticleStatusDraft, ArticleStatusPublished, ArticleStatusUnlisted, ArticleStatusArchived:
		return true
	}
	return false
}

const (
	MaxArticleTags       = 10
	MaxArticleCategories = 5
)

type Article struct {
	ID uuid.UUID `db:"id"`

	Title            string  `db:"title"`
	Subtitle         *string `db:"subtitle"`
	Content          string  `db:"content"`
	ContentHTML      string  `db:"content_html"`
	Excerpt          *string `db:"excerpt"`
	FeaturedImageUrl *string `db:"featured_image_url"`

	AuthorID      uuid.UUID  `db:"author_id"`
	PublicationID *uuid.UUID `db:"publication_id"`

	Status          ArticleStatus `db:"status"`
	IsMemberOnly    bool          `db:"is_member_only"`
	IsFeatured      bool          `db:"is_featured"`
	PaywallPosition *int          `db:"paywall_position"`

	Slug               string   `db:"slug"`
	Tags               []string `db:"tags"`
	Categories         []string `db:"categories"`
	ReadingTimeMinutes int      `db:"reading_time_minutes"`

	// Written only by the engagement ledger and the reconcile job.
	ClapsCount     int64 `db:"claps_count"`
	CommentsCount  int   `db:"comments_count"`
	BookmarksCount int   `db:"bookmarks_count"`
	ViewsCount     int64 `db:"views_count"`
	ReadsCount     int64 `db:"reads_count"`

	PublishedAt     *time.Time `db:"published_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	LastAutoSave    *time.Time `db:"last_auto_save"`
	AutoSaveVersion int        `db:"auto_save_version"`
}

func (a *Article) IsPublished() bool {
	return a.Status == ArticleStatusPublished
}
