package blogdata

import (
	"context"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/arsyadal/fastblog/src/migration/migrations"
	"github.com/arsyadal/fastblog/src/migration/types"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/slugs"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
Opens a transaction on TEST_DATABASE_URL with every migration applied to a
fresh schema. Everything is rolled back when the test ends, so the database
is left as it was. Skips if there is no database to talk to.
*/
func testTx(t *testing.T) pgx.Tx {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { conn.Close(ctx) })

	tx, err := conn.Begin(ctx)
	require.Nil(t, err)
	t.Cleanup(func() { tx.Rollback(ctx) })

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = tx.Exec(ctx, "CREATE SCHEMA "+schema)
	require.Nil(t, err)
	_, err = tx.Exec(ctx, "SET LOCAL search_path TO "+schema)
	require.Nil(t, err)

	versions := make([]types.MigrationVersion, 0, len(migrations.All))
	for version := range migrations.All {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Before(versions[j])
	})
	for _, version := range versions {
		require.Nil(t, migrations.All[version].Up(ctx, tx), "migration %s failed", version)
	}

	return tx
}

func testUser(t *testing.T, tx pgx.Tx, username string) *models.User {
	t.Helper()
	user, err := Register(context.Background(), tx, RegisterInput{
		Email:    username + "@example.com",
		Username: username,
		Password: "correct horse battery",
	})
	require.Nil(t, err)
	return user
}

func testDraft(t *testing.T, tx pgx.Tx, authorID uuid.UUID, title string) *models.Article {
	t.Helper()
	article, err := CreateArticle(context.Background(), tx, authorID, CreateArticleInput{
		Title:   title,
		Content: "Some words about " + title,
	})
	require.Nil(t, err)
	return article
}

func TestDuplicateTitlesGetSuffixedSlugs(t *testing.T) {
	tx := testTx(t)
	author := testUser(t, tx, "alice")

	var got []string
	for i := 0; i < 3; i++ {
		article := testDraft(t, tx, author.ID, "Hello, World!")
		assert.True(t, slugs.IsValid(article.Slug), article.Slug)
		got = append(got, article.Slug)
	}
	assert.Equal(t, []string{"hello-world", "hello-world-1", "hello-world-2"}, got)

	untitled := testDraft(t, tx, author.ID, "???")
	assert.Equal(t, "article", untitled.Slug)
}

func TestCreateStatus(t *testing.T) {
	ctx := context.Background()
	tx := testTx(t)
	author := testUser(t, tx, "alice")

	t.Run("draft by default", func(t *testing.T) {
		article := testDraft(t, tx, author.ID, "Draft by default")
		assert.Equal(t, models.ArticleStatusDraft, article.Status)
		assert.Nil(t, article.PublishedAt)
		assert.Equal(t, 1, article.AutoSaveVersion)
		assert.Zero(t, article.ClapsCount)
	})
	t.Run("published on request", func(t *testing.T) {
		article, err := CreateArticle(ctx, tx, author.ID, CreateArticleInput{
			Title:   "Straight to print",
			Content: "Ready to go.",
			Status:  models.ArticleStatusPublished,
		})
		require.Nil(t, err)
		assert.Equal(t, models.ArticleStatusPublished, article.Status)
		assert.NotNil(t, article.PublishedAt)
	})
	t.Run("unknown status", func(t *testing.T) {
		_, err := CreateArticle(ctx, tx, author.ID, CreateArticleInput{
			Title:   "Nope",
			Content: "Nope.",
			Status:  "scheduled",
		})
		assert.True(t, IsValidationError(err), "got %v", err)
	})
}

func TestToggleClapTwiceRestoresCount(t *testing.T) {
	ctx := context.Background()
	tx := testTx(t)
	author := testUser(t, tx, "alice")
	reader := testUser(t, tx, "bob")
	article := testDraft(t, tx, author.ID, "Clap for me")

	first, err := ToggleClap(ctx, tx, article.ID, reader.ID, 5)
	require.Nil(t, err)
	assert.Equal(t, ClapResult{TotalClaps: 1, PersonalCount: 5, IsClapped: true}, first)

	second, err := ToggleClap(ctx, tx, article.ID, reader.ID, 5)
	require.Nil(t, err)
	assert.Equal(t, ClapResult{TotalClaps: 0}, second)

	fetched, err := FetchArticle(ctx, tx, &author.ID, article.ID)
	require.Nil(t, err)
	assert.Equal(t, int64(0), fetched.ClapsCount)

	_, err = ToggleClap(ctx, tx, uuid.New(), reader.ID, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookmarkCountNeverNegative(t *testing.T) {
	ctx := context.Background()
	tx := testTx(t)
	author := testUser(t, tx, "alice")
	reader := testUser(t, tx, "bob")
	article := testDraft(t, tx, author.ID, "Save me for later")

	res, err := Unbookmark(ctx, tx, article.ID, reader.ID)
	require.Nil(t, err)
	assert.Equal(t, UnbookmarkResult{Removed: false, BookmarksCount: 0}, res)

	bm, err := Bookmark(ctx, tx, article.ID, reader.ID)
	require.Nil(t, err)
	assert.Equal(t, BookmarkResult{AlreadyBookmarked: false, BookmarksCount: 1}, bm)

	bm, err = Bookmark(ctx, tx, article.ID, reader.ID)
	require.Nil(t, err)
	assert.Equal(t, BookmarkResult{AlreadyBookmarked: true, BookmarksCount: 1}, bm)

	// A drifted counter still floors at zero when the row goes away.
	_, err = tx.Exec(ctx, `UPDATE articles SET bookmarks_count = 0 WHERE id = $1`, article.ID)
	require.Nil(t, err)

	res, err = Unbookmark(ctx, tx, article.ID, reader.ID)
	require.Nil(t, err)
	assert.Equal(t, UnbookmarkResult{Removed: true, BookmarksCount: 0}, res)

	res, err = Unbookmark(ctx, tx, article.ID, reader.ID)
	require.Nil(t, err)
	assert.Equal(t, UnbookmarkResult{Removed: false, BookmarksCount: 0}, res)
}

func TestAutoSaveVersion(t *testing.T) {
	ctx := context.Background()
	tx := testTx(t)
	author := testUser(t, tx, "alice")
	other := testUser(t, tx, "bob")

	draft, err := AutoSave(ctx, tx, author.ID, AutoSaveInput{Content: "first"})
	require.Nil(t, err)
	assert.Equal(t, 1, draft.AutoSaveVersion)
	assert.Equal(t, "draft", draft.Slug)
	assert.Equal(t, models.ArticleStatusDraft, draft.Status)

	const saves = 3
	for i := 0; i < saves; i++ {
		draft, err = AutoSave(ctx, tx, author.ID, AutoSaveInput{
			ArticleID: &draft.ID,
			Title:     utils.P("Work in progress"),
			Content:   "more",
		})
		require.Nil(t, err)
	}
	assert.Equal(t, 1+saves, draft.AutoSaveVersion)
	assert.Equal(t, "Work in progress", draft.Title)
	assert.Equal(t, "more", draft.Content)
	assert.Equal(t, "draft", draft.Slug, "slugs are not re-derived from later titles")

	_, err = AutoSave(ctx, tx, other.ID, AutoSaveInput{ArticleID: &draft.ID, Content: "mine now"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = PublishArticle(ctx, tx, author.ID, draft.ID)
	require.Nil(t, err)
	_, err = AutoSave(ctx, tx, author.ID, AutoSaveInput{ArticleID: &draft.ID, Content: "too late"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishIsOneWay(t *testing.T) {
	ctx := context.Background()
	tx := testTx(t)
	author := testUser(t, tx, "alice")
	draft := testDraft(t, tx, author.ID, "Going public")

	published, err := PublishArticle(ctx, tx, author.ID, draft.ID)
	require.Nil(t, err)
	assert.Equal(t, models.ArticleStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, draft.Slug, published.Slug)

	_, err = PublishArticle(ctx, tx, author.ID, draft.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	fetched, err := FetchArticle(ctx, tx, nil, draft.ID)
	require.Nil(t, err)
	require.NotNil(t, fetched.PublishedAt)
	assert.True(t, published.PublishedAt.Equal(*fetched.PublishedAt))
	assert.Equal(t, models.ArticleStatusPublished, fetched.Status)
}

func TestNonOwnersCannotMutate(t *testing.T) {
	ctx := context.Background()
	tx := testTx(t)
	author := testUser(t, tx, "alice")
	other := testUser(t, tx, "mallory")
	article := testDraft(t, tx, author.ID, "Mine")

	_, err := UpdateArticle(ctx, tx, other.ID, article.ID, UpdateArticleInput{Title: utils.P("Theirs")})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = PublishArticle(ctx, tx, other.ID, article.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = DeleteArticle(ctx, tx, other.ID, article.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ToggleFeatured(ctx, tx, Actor{UserID: other.ID}, article.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	featured, err := ToggleFeatured(ctx, tx, Actor{UserID: other.ID, IsAdmin: true}, article.ID)
	require.Nil(t, err)
	assert.True(t, featured)

	_, err = UpdateArticle(ctx, tx, author.ID, uuid.New(), UpdateArticleInput{Title: utils.P("Ghost")})
	assert.ErrorIs(t, err, ErrNotFound)

	fetched, err := FetchArticle(ctx, tx, &author.ID, article.ID)
	require.Nil(t, err)
	assert.Equal(t, "Mine", fetched.Title)
	assert.Equal(t, models.ArticleStatusDraft, fetched.Status)

	// Drafts are invisible to everyone but their author.
	_, err = FetchArticle(ctx, tx, &other.ID, article.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Nil(t, DeleteArticle(ctx, tx, author.ID, article.ID))
	_, err = FetchArticle(ctx, tx, &author.ID, article.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
