package blogdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		expected    Page
		offset      int
	}{
		{"defaults", 0, 0, Page{Page: 1, Limit: 20}, 0},
		{"negative", -3, -1, Page{Page: 1, Limit: 20}, 0},
		{"clamped limit", 2, 500, Page{Page: 2, Limit: 100}, 100},
		{"normal", 3, 10, Page{Page: 3, Limit: 10}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(tt.page, tt.limit)
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.offset, p.Offset())
		})
	}
}

func TestValidationError(t *testing.T) {
	var v validator
	v.length("title", "", 1, 200)
	v.length("title", strings.Repeat("x", 300), 1, 200) // first message wins
	v.length("bio", strings.Repeat("é", 501), 0, 500)
	v.between("clap_count", 51, 1, 50)
	err := v.err()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be between 1 and 200 characters", verr.Fields["title"])
	assert.Equal(t, "cannot exceed 500 characters", verr.Fields["bio"])
	assert.Equal(t, "must be between 1 and 50", verr.Fields["clap_count"])
	assert.Equal(t,
		"validation failed: bio: cannot exceed 500 characters; clap_count: must be between 1 and 50; title: must be between 1 and 200 characters",
		err.Error(),
	)

	assert.True(t, IsValidationError(oops.New(err, "wrapped")))
	assert.False(t, IsValidationError(ErrNotFound))

	var empty validator
	empty.length("content", "é", 1, 1)
	assert.Nil(t, empty.err())
}

func TestValidateUserFields(t *testing.T) {
	tests := []struct {
		name   string
		in     RegisterInput
		fields []string
	}{
		{"valid", RegisterInput{Email: "ada@example.com", Username: "ada_l", Password: "hunter22"}, nil},
		{"bad email", RegisterInput{Email: "nope", Username: "ada_l", Password: "hunter22"}, []string{"email"}},
		{"named email", RegisterInput{Email: "Ada <ada@example.com>", Username: "ada_l", Password: "hunter22"}, []string{"email"}},
		{"short username", RegisterInput{Email: "ada@example.com", Username: "ad", Password: "hunter22"}, []string{"username"}},
		{"bad username", RegisterInput{Email: "ada@example.com", Username: "ada-l", Password: "hunter22"}, []string{"username"}},
		{"short password", RegisterInput{Email: "ada@example.com", Username: "ada_l", Password: "short"}, []string{"password"}},
		{"long display name", RegisterInput{Email: "ada@example.com", Username: "ada_l", Password: "hunter22", DisplayName: utils.P(strings.Repeat("a", 101))}, []string{"display_name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.validate()
			if tt.fields == nil {
				assert.Nil(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, field := range tt.fields {
				assert.Contains(t, verr.Fields, field)
			}
		})
	}
}

// Validation happens before any storage access, so a nil connection is fine.
func TestValidationBeforeMutation(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	_, err := ToggleClap(ctx, nil, id, id, 0)
	assert.True(t, IsValidationError(err))
	_, err = ToggleClap(ctx, nil, id, id, models.MaxClapCount+1)
	assert.True(t, IsValidationError(err))

	_, err = CreateArticle(ctx, nil, id, CreateArticleInput{Title: "", Content: "body"})
	assert.True(t, IsValidationError(err))
	_, err = CreateArticle(ctx, nil, id, CreateArticleInput{
		Title:   "Title",
		Content: "body",
		Tags:    []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"},
	})
	assert.True(t, IsValidationError(err))

	_, err = AddComment(ctx, nil, id, id, CommentInput{Content: strings.Repeat("x", models.MaxCommentLength+1)})
	assert.True(t, IsValidationError(err))

	_, err = Follow(ctx, nil, id, id)
	assert.True(t, IsValidationError(err))

	_, err = SearchArticles(ctx, nil, "   ", SearchSortRelevance, NewPage(1, 10))
	assert.True(t, IsValidationError(err))
	_, err = Suggestions(ctx, nil, "")
	assert.True(t, IsValidationError(err))
}

func TestTrendingScore(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	article := &models.Article{
		ClapsCount:    10,
		CommentsCount: 5,
		ReadsCount:    20,
		ViewsCount:    100,
		PublishedAt:   utils.P(now.Add(-2 * time.Hour)),
	}
	assert.InDelta(t, 80.0, TrendingScore(article, now), 0.0001)

	article.PublishedAt = utils.P(now.Add(-25 * time.Hour))
	assert.InDelta(t, 70.0, TrendingScore(article, now), 0.0001)

	article.PublishedAt = nil
	assert.InDelta(t, 70.0, TrendingScore(article, now), 0.0001)

	assert.Contains(t, trendingScoreSQL, "articles.claps_count * 3")
	assert.Contains(t, trendingScoreSQL, "articles.views_count * 0.1")
	assert.Contains(t, trendingScoreSQL, "THEN 10 ELSE 0")
}

func TestTitleOutranksContent(t *testing.T) {
	weightsFor := func(fields []searchField, column string) [4]int {
		for _, f := range fields {
			if f.Column == column {
				return f.Weights
			}
		}
		t.Fatalf("no weights for %s", column)
		return [4]int{}
	}

	// Any title match hits at least the exact tier; content can at best hit
	// all four.
	title := weightsFor(articleSearchFields, "a.title")
	content := weightsFor(articleSearchFields, "a.content")
	contentMax := 0
	for _, w := range content {
		contentMax += w
	}
	assert.Greater(t, title[tierExact], contentMax)

	username := weightsFor(userSearchFields, "u.username")
	bio := weightsFor(userSearchFields, "u.bio")
	assert.Greater(t, username[tierExact], bio[tierExact])
}

func TestSearchPatterns(t *testing.T) {
	t.Run("single word", func(t *testing.T) {
		p := newSearchPatterns("  Golang ")
		assert.Equal(t, [4]string{"%golang%", "% golang %", "golang%", "%golang%"}, p.Tiers)
		assert.False(t, p.MultiWord)
		assert.Len(t, p.args(), 3)
		assert.Equal(t, "LIMIT $4 OFFSET $5", p.limitClause())
	})
	t.Run("multiple words", func(t *testing.T) {
		p := newSearchPatterns("rust  vs GO")
		assert.Equal(t, "%rust vs go%", p.Tiers[tierExact])
		assert.Equal(t, "%rust%vs%go%", p.Tiers[tierMulti])
		assert.True(t, p.MultiWord)
		assert.Len(t, p.args(), 4)
		assert.Equal(t, "LIMIT $5 OFFSET $6", p.limitClause())
	})
	t.Run("escapes LIKE specials", func(t *testing.T) {
		p := newSearchPatterns(`100%_done\`)
		assert.Equal(t, `%100\%\_done\\%`, p.Tiers[tierExact])
	})
}

func TestRelevanceSQL(t *testing.T) {
	fields := []searchField{
		{"a.title", [4]int{15, 0, 10, 3}},
	}
	assert.Equal(t,
		"(CASE WHEN LOWER(COALESCE(a.title, '')) LIKE $1 THEN 15 ELSE 0 END + CASE WHEN LOWER(COALESCE(a.title, '')) LIKE $3 THEN 10 ELSE 0 END)::float8",
		relevanceSQL(fields, false),
	)
	assert.Contains(t, relevanceSQL(fields, true), "LIKE $4 THEN 3")
	assert.Equal(t, "0::float8", relevanceSQL(nil, true))

	// Every parameter the multi-word expression references must be passed.
	full := relevanceSQL(articleSearchFields, true)
	for i := 1; i <= 4; i++ {
		assert.Contains(t, full, fmt.Sprintf("$%d ", i))
	}
	assert.NotContains(t, relevanceSQL(articleSearchFields, false), "$4")
}

func TestParseSorts(t *testing.T) {
	assert.Equal(t, SearchSortClaps, ParseSearchSort("CLAPS"))
	assert.Equal(t, SearchSortRelevance, ParseSearchSort("whatever"))
	assert.Equal(t, ArticleSortPopular, ParseArticleSort("popular"))
	assert.Equal(t, ArticleSortRecent, ParseArticleSort(""))
}

func TestNestComments(t *testing.T) {
	comment := func(parent *uuid.UUID) *CommentWithAuthor {
		return &CommentWithAuthor{Comment: models.Comment{ID: uuid.New(), ParentID: parent}}
	}
	first := comment(nil)
	second := comment(nil)
	reply1 := comment(&first.Comment.ID)
	reply2 := comment(&first.Comment.ID)
	orphan := comment(utils.P(uuid.New()))

	tree := nestComments([]*CommentWithAuthor{first, reply1, second, reply2, orphan})
	require.Len(t, tree, 2)
	assert.Equal(t, first, tree[0])
	assert.Equal(t, second, tree[1])
	assert.Equal(t, []*CommentWithAuthor{reply1, reply2}, first.Replies)
	assert.Empty(t, second.Replies)
}

func TestNewArticleView(t *testing.T) {
	article := &models.Article{
		ID:          uuid.New(),
		Title:       "Hello World",
		Slug:        "hello-world",
		ContentHTML: "<p>" + strings.Repeat("word ", 50) + "</p>",
	}
	author := &PublicUser{ID: uuid.New(), Username: "ada"}

	view := NewArticleView(article, author, nil, "https://fastblog.example")
	assert.Equal(t, "https://fastblog.example/article/hello-world", view.ShareUrl)
	assert.Equal(t, "Hello World", view.ShareTitle)
	assert.Len(t, view.ShareDescription, 160)
	assert.True(t, strings.HasSuffix(view.ShareDescription, "..."))
	assert.NotNil(t, view.Tags)

	asJson, err := json.Marshal(view)
	require.Nil(t, err)
	assert.Contains(t, string(asJson), `"user_interactions":null`)
	assert.Contains(t, string(asJson), `"tags":[]`)

	view = NewArticleView(article, author, &UserInteractions{}, "https://fastblog.example")
	asJson, err = json.Marshal(view)
	require.Nil(t, err)
	assert.Contains(t, string(asJson), `"user_interactions":{"has_clapped":false`)

	article.Excerpt = utils.P("A short excerpt")
	assert.Equal(t, "A short excerpt", NewArticleView(article, author, nil, "").ShareDescription)
}

func TestEngagementRate(t *testing.T) {
	assert.Equal(t, 0.0, EngagementRate(5, 0))
	assert.InDelta(t, 25.0, EngagementRate(25, 100), 0.0001)

	stats := NewArticleStats(&models.Article{ViewsCount: 200, ReadsCount: 50})
	assert.InDelta(t, 25.0, stats.EngagementRate, 0.0001)
}

func TestReconcileResult(t *testing.T) {
	var r ReconcileResult
	for _, step := range reconcileSteps {
		*step.Count(&r) = 1
		assert.Contains(t, step.Query, "---- Reconcile "+step.Name)
	}
	assert.Equal(t, int64(len(reconcileSteps)), r.Total())
}
