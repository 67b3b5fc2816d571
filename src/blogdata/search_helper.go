package blogdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/parsing"
	"github.com/arsyadal/fastblog/src/perf"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

/*
Search scores every row against four LIKE patterns built from the query:

	exact   %q%       the query anywhere
	word    % q %     the query as a whole word
	prefix  q%        the field starts with the query
	multi   %w1%w2%   every word of the query, in order

A field earns the weight of each pattern it matches, so a title containing
the query as a whole word scores exact + word. The multi pattern only counts
for queries of two or more words.
*/
type searchField struct {
	Column  string
	Weights [4]int // exact, word, prefix, multi
}

const (
	tierExact = iota
	tierWord
	tierPrefix
	tierMulti
)

var articleSearchFields = []searchField{
	{"a.title", [4]int{15, 12, 10, 3}},
	{"a.subtitle", [4]int{8, 6, 5, 0}},
	{"a.content", [4]int{6, 4, 2, 2}},
	{"u.username", [4]int{5, 0, 0, 0}},
	{"u.display_name", [4]int{5, 0, 0, 0}},
	{"u.bio", [4]int{3, 0, 0, 0}},
}

var userSearchFields = []searchField{
	{"u.username", [4]int{15, 12, 10, 3}},
	{"u.display_name", [4]int{12, 10, 8, 3}},
	{"u.bio", [4]int{8, 6, 4, 2}},
}

type searchPatterns struct {
	Tiers     [4]string
	MultiWord bool
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func newSearchPatterns(q string) searchPatterns {
	words := strings.Fields(strings.ToLower(q))
	for i, w := range words {
		words[i] = likeEscaper.Replace(w)
	}
	joined := strings.Join(words, " ")

	return searchPatterns{
		Tiers: [4]string{
			"%" + joined + "%",
			"% " + joined + " %",
			joined + "%",
			"%" + strings.Join(words, "%") + "%",
		},
		MultiWord: len(words) > 1,
	}
}

// Postgres rejects parameters the statement never references, so the multi
// pattern is only passed when relevanceSQL uses it.
func (p searchPatterns) args() []any {
	if p.MultiWord {
		return []any{p.Tiers[0], p.Tiers[1], p.Tiers[2], p.Tiers[3]}
	}
	return []any{p.Tiers[0], p.Tiers[1], p.Tiers[2]}
}

func (p searchPatterns) limitClause() string {
	n := len(p.args())
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", n+1, n+2)
}

/*
Builds the relevance expression for a set of fields. The patterns are
expected as query parameters $1 through $4, in tier order.
*/
func relevanceSQL(fields []searchField, multiWord bool) string {
	var terms []string
	for _, f := range fields {
		for tier, weight := range f.Weights {
			if weight == 0 || (tier == tierMulti && !multiWord) {
				continue
			}
			terms = append(terms, fmt.Sprintf(
				"CASE WHEN LOWER(COALESCE(%s, '')) LIKE $%d THEN %d ELSE 0 END",
				f.Column, tier+1, weight,
			))
		}
	}
	if len(terms) == 0 {
		return "0::float8"
	}
	return "(" + strings.Join(terms, " + ") + ")::float8"
}

type SearchSort string

const (
	SearchSortRelevance SearchSort = "relevance"
	SearchSortRecent    SearchSort = "recent"
	SearchSortPopular   SearchSort = "popular"
	SearchSortClaps     SearchSort = "claps"
)

func ParseSearchSort(s string) SearchSort {
	switch SearchSort(strings.ToLower(s)) {
	case SearchSortRecent:
		return SearchSortRecent
	case SearchSortPopular:
		return SearchSortPopular
	case SearchSortClaps:
		return SearchSortClaps
	default:
		return SearchSortRelevance
	}
}

func validateSearchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", invalid("q", "search query is required")
	}
	return q, nil
}

type ArticleSearchHit struct {
	Article models.Article `db:"a"`
	Author  PublicUser     `db:"u"`
	Score   float64        `db:"relevance_score"`
	Excerpt string
}

func SearchArticles(
	ctx context.Context,
	dbConn db.ConnOrTx,
	q string,
	sort SearchSort,
	page Page,
) (Paged[*ArticleSearchHit], error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Search articles").End()

	q, err := validateSearchQuery(q)
	if err != nil {
		return Paged[*ArticleSearchHit]{}, err
	}
	patterns := newSearchPatterns(q)

	var orderBy string
	switch sort {
	case SearchSortRecent:
		orderBy = "a.published_at DESC NULLS LAST"
	case SearchSortPopular:
		orderBy = "a.views_count DESC, scored.relevance_score DESC"
	case SearchSortClaps:
		orderBy = "a.claps_count DESC, scored.relevance_score DESC"
	default:
		orderBy = "scored.relevance_score DESC, a.published_at DESC NULLS LAST"
	}

	scored := `
		---- Search articles
		WITH scored AS (
			SELECT a.id, ` + relevanceSQL(articleSearchFields, patterns.MultiWord) + ` AS relevance_score
			FROM
				articles AS a
				JOIN users AS u ON u.id = a.author_id
			WHERE a.status = 'published'
		)
	`

	hits, err := db.Query[ArticleSearchHit](ctx, dbConn,
		scored+`
		SELECT $columns
		FROM
			scored
			JOIN articles AS a ON a.id = scored.id
			JOIN users AS u ON u.id = a.author_id
		WHERE scored.relevance_score > 0
		ORDER BY `+orderBy+`
		`+patterns.limitClause()+`
		`,
		append(patterns.args(), page.Limit, page.Offset())...,
	)
	if err != nil {
		return Paged[*ArticleSearchHit]{}, oops.New(err, "failed to search articles")
	}

	total, err := db.QueryOneScalar[int64](ctx, dbConn,
		scored+`
		SELECT COUNT(*) FROM scored WHERE relevance_score > 0
		`,
		patterns.args()...,
	)
	if err != nil {
		return Paged[*ArticleSearchHit]{}, oops.New(err, "failed to count article search results")
	}

	for _, hit := range hits {
		hit.Excerpt = parsing.SearchExcerpt(parsing.PlainText(hit.Article.ContentHTML), q)
	}

	return Paged[*ArticleSearchHit]{Items: hits, Total: total, Page: page}, nil
}

type UserSearchHit struct {
	User          PublicUser `db:"u"`
	ArticlesCount int64      `db:"articles_count"`
	Score         float64    `db:"relevance_score"`
}

func SearchUsers(
	ctx context.Context,
	dbConn db.ConnOrTx,
	q string,
	sort SearchSort,
	page Page,
) (Paged[*UserSearchHit], error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Search users").End()

	q, err := validateSearchQuery(q)
	if err != nil {
		return Paged[*UserSearchHit]{}, err
	}
	patterns := newSearchPatterns(q)

	var orderBy string
	switch sort {
	case SearchSortRecent:
		orderBy = "u.created_at DESC"
	case SearchSortPopular:
		orderBy = "u.followers_count DESC, scored.relevance_score DESC"
	default:
		orderBy = "scored.relevance_score DESC, u.followers_count DESC"
	}

	scored := `
		---- Search users
		WITH scored AS (
			SELECT u.id, ` + relevanceSQL(userSearchFields, patterns.MultiWord) + ` AS relevance_score
			FROM users AS u
		)
	`

	hits, err := db.Query[UserSearchHit](ctx, dbConn,
		scored+`
		SELECT $columns
		FROM (
			SELECT
				u.*,
				scored.relevance_score,
				(
					SELECT COUNT(*) FROM articles
					WHERE articles.author_id = u.id AND articles.status = 'published'
				) AS articles_count
			FROM
				scored
				JOIN users AS u ON u.id = scored.id
			WHERE scored.relevance_score > 0
		) AS u
		ORDER BY `+strings.ReplaceAll(orderBy, "scored.", "u.")+`
		`+patterns.limitClause()+`
		`,
		append(patterns.args(), page.Limit, page.Offset())...,
	)
	if err != nil {
		return Paged[*UserSearchHit]{}, oops.New(err, "failed to search users")
	}

	total, err := db.QueryOneScalar[int64](ctx, dbConn,
		scored+`
		SELECT COUNT(*) FROM scored WHERE relevance_score > 0
		`,
		patterns.args()...,
	)
	if err != nil {
		return Paged[*UserSearchHit]{}, oops.New(err, "failed to count user search results")
	}

	return Paged[*UserSearchHit]{Items: hits, Total: total, Page: page}, nil
}

type TagCount struct {
	Tag        string `db:"tag"`
	UsageCount int64  `db:"usage_count"`
}

// Tags on published articles containing q, most used first.
func SearchTags(ctx context.Context, dbConn db.ConnOrTx, q string, limit int) ([]*TagCount, error) {
	q, err := validateSearchQuery(q)
	if err != nil {
		return nil, err
	}

	tags, err := db.Query[TagCount](ctx, dbConn,
		`
		---- Search tags
		SELECT $columns
		FROM (
			SELECT tag, COUNT(*) AS usage_count
			FROM articles, unnest(articles.tags) AS tag
			WHERE
				articles.status = 'published'
				AND LOWER(tag) LIKE $1
			GROUP BY tag
		) AS t
		ORDER BY usage_count DESC, tag ASC
		LIMIT $2
		`,
		"%"+likeEscaper.Replace(strings.ToLower(q))+"%", limit,
	)
	if err != nil {
		return nil, oops.New(err, "failed to search tags")
	}
	return tags, nil
}

const (
	maxTitleSuggestions = 5
	maxNameSuggestions  = 5
)

/*
Autocomplete for the search box: published titles and user names starting
with q, at most five of each, alphabetized.
*/
func Suggestions(ctx context.Context, dbConn db.ConnOrTx, q string) ([]string, error) {
	q, err := validateSearchQuery(q)
	if err != nil {
		return nil, err
	}
	prefix := likeEscaper.Replace(strings.ToLower(q)) + "%"

	suggestions, err := db.QueryScalar[string](ctx, dbConn,
		`
		---- Search suggestions
		SELECT suggestion FROM (
			(
				SELECT title AS suggestion
				FROM articles
				WHERE status = 'published' AND LOWER(title) LIKE $1
				ORDER BY views_count DESC
				LIMIT $2
			)
			UNION
			(
				SELECT COALESCE(display_name, username) AS suggestion
				FROM users
				WHERE LOWER(username) LIKE $1 OR LOWER(COALESCE(display_name, '')) LIKE $1
				ORDER BY followers_count DESC
				LIMIT $3
			)
		) AS s
		ORDER BY suggestion ASC
		LIMIT $4
		`,
		prefix, maxTitleSuggestions, maxNameSuggestions, maxTitleSuggestions+maxNameSuggestions,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch search suggestions")
	}
	return suggestions, nil
}

const (
	globalSearchArticles = 10
	globalSearchUsers    = 5
	globalSearchTags     = 10
)

type GlobalSearchResult struct {
	Articles      []*ArticleSearchHit
	TotalArticles int64
	Users         []*UserSearchHit
	TotalUsers    int64
	Tags          []*TagCount
}

/*
Runs article, user and tag search side by side. Each search takes its own
pool connection, so this needs a pool rather than a transaction.
*/
func GlobalSearch(ctx context.Context, pool *pgxpool.Pool, q string) (*GlobalSearchResult, error) {
	q, err := validateSearchQuery(q)
	if err != nil {
		return nil, err
	}

	var result GlobalSearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		articles, err := SearchArticles(gctx, pool, q, SearchSortRelevance, NewPage(1, globalSearchArticles))
		result.Articles, result.TotalArticles = articles.Items, articles.Total
		return err
	})
	g.Go(func() error {
		users, err := SearchUsers(gctx, pool, q, SearchSortRelevance, NewPage(1, globalSearchUsers))
		result.Users, result.TotalUsers = users.Items, users.Total
		return err
	})
	g.Go(func() error {
		tags, err := SearchTags(gctx, pool, q, globalSearchTags)
		result.Tags = tags
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}
