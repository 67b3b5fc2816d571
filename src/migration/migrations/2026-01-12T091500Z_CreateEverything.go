package migrations

import (
	"context"
	"time"

	"github.com/arsyadal/fastblog/src/migration/types"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(CreateEverything{})
}

type CreateEverything struct{}

func (m CreateEverything) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 1, 12, 9, 15, 0, 0, time.UTC))
}

func (m CreateEverything) Name() string {
	return "CreateEverything"
}

func (m CreateEverything) Description() string {
	return "Create users, articles, and engagement tables"
}

func (m CreateEverything) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			username VARCHAR(30) NOT NULL,
			password_hash VARCHAR(256) NOT NULL,
			display_name VARCHAR(100),
			bio TEXT,
			avatar_url TEXT,
			user_type VARCHAR(20) NOT NULL DEFAULT 'free',
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			followers_count INT NOT NULL DEFAULT 0 CHECK (followers_count >= 0),
			following_count INT NOT NULL DEFAULT 0 CHECK (following_count >= 0),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX users_username_key ON users (LOWER(username));
		CREATE UNIQUE INDEX users_email_key ON users (LOWER(email));
		`,
	)
	if err != nil {
		return oops.New(err, "failed to create users")
	}

	_, err = tx.Exec(ctx,
		`
		CREATE TABLE articles (
			id UUID PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			subtitle VARCHAR(300),
			content TEXT NOT NULL,
			content_html TEXT NOT NULL,
			excerpt VARCHAR(500),
			featured_image_url TEXT,
			author_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			publication_id UUID,
			status VARCHAR(20) NOT NULL DEFAULT 'draft'
				CHECK (status IN ('draft', 'published', 'unlisted', 'archived')),
			is_member_only BOOLEAN NOT NULL DEFAULT FALSE,
			is_featured BOOLEAN NOT NULL DEFAULT FALSE,
			paywall_position INT CHECK (paywall_position >= 0),
			slug VARCHAR(255) NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			categories TEXT[] NOT NULL DEFAULT '{}',
			reading_time_minutes INT NOT NULL DEFAULT 1,
			claps_count BIGINT NOT NULL DEFAULT 0 CHECK (claps_count >= 0),
			comments_count INT NOT NULL DEFAULT 0 CHECK (comments_count >= 0),
			bookmarks_count INT NOT NULL DEFAULT 0 CHECK (bookmarks_count >= 0),
			views_count BIGINT NOT NULL DEFAULT 0 CHECK (views_count >= 0),
			reads_count BIGINT NOT NULL DEFAULT 0 CHECK (reads_count >= 0),
			published_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			last_auto_save TIMESTAMP WITH TIME ZONE,
			auto_save_version INT NOT NULL DEFAULT 1,
			CONSTRAINT articles_slug_key UNIQUE (slug),
			CONSTRAINT articles_published_at_check CHECK ((status = 'published') = (published_at IS NOT NULL))
		);

		CREATE INDEX articles_author_id ON articles (author_id, created_at DESC);
		CREATE INDEX articles_published ON articles (published_at DESC) WHERE status = 'published';
		CREATE INDEX articles_featured ON articles (published_at DESC) WHERE is_featured AND status = 'published';
		CREATE INDEX articles_tags ON articles USING GIN (tags);
		CREATE INDEX articles_categories ON articles USING GIN (categories);
		`,
	)
	if err != nil {
		return oops.New(err, "failed to create articles")
	}

	_, err = tx.Exec(ctx,
		`
		CREATE TABLE claps (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			article_id UUID NOT NULL REFERENCES articles (id) ON DELETE CASCADE,
			clap_count INT NOT NULL CHECK (clap_count BETWEEN 1 AND 50),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			CONSTRAINT claps_user_id_article_id_key UNIQUE (user_id, article_id)
		);

		CREATE TABLE bookmarks (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			article_id UUID NOT NULL REFERENCES articles (id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			CONSTRAINT bookmarks_user_id_article_id_key UNIQUE (user_id, article_id)
		);

		CREATE TABLE comments (
			id UUID PRIMARY KEY,
			article_id UUID NOT NULL REFERENCES articles (id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			parent_id UUID REFERENCES comments (id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			content_html TEXT NOT NULL,
			claps_count INT NOT NULL DEFAULT 0 CHECK (claps_count >= 0),
			replies_count INT NOT NULL DEFAULT 0 CHECK (replies_count >= 0),
			is_author_reply BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX comments_article_id ON comments (article_id, created_at);
		CREATE INDEX claps_article_id ON claps (article_id);
		CREATE INDEX bookmarks_user_id ON bookmarks (user_id, created_at DESC);

		CREATE TABLE user_follows (
			follower_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			following_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (follower_id, following_id),
			CHECK (follower_id <> following_id)
		);

		CREATE INDEX user_follows_following_id ON user_follows (following_id);
		`,
	)
	if err != nil {
		return oops.New(err, "failed to create engagement tables")
	}

	return nil
}

func (m CreateEverything) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP TABLE user_follows;
		DROP TABLE comments;
		DROP TABLE bookmarks;
		DROP TABLE claps;
		DROP TABLE articles;
		DROP TABLE users;
		`,
	)
	if err != nil {
		return oops.New(err, "failed to drop tables")
	}
	return nil
}
