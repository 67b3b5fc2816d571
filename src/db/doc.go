/*
This package contains lowish-level APIs for making queries against the fastblog Postgres database. It maps query results onto Go types while letting you write arbitrary SQL.

The primary functions are Query, QueryOne and QueryIterator.

Query syntax

Arguments use the normal $1, $2 placeholders and are passed straight through to pgx.

	ids, err := db.QueryScalar[uuid.UUID](ctx, conn,
		`
		SELECT id
		FROM articles
		WHERE
			slug = ANY($1)
			AND status = $2
		`,
		[]string{"hello-world", "second-post"},
		models.ArticleStatusPublished,
	)

(If you want to use a slice in a query, use Postgres arrays instead of IN.)

To query several columns at once, use a struct type with `db:"column_name"` tags and the special $columns placeholder:

	type Article struct {
		ID        uuid.UUID `db:"id"`
		Slug      string    `db:"slug"`
		CreatedAt time.Time `db:"created_at"`
	}
	articles, err := db.Query[Article](ctx, conn, `SELECT $columns FROM articles`)
	// SELECT id, slug, created_at FROM articles

When a JOIN makes column names ambiguous, put the table alias in the placeholder as $columns{alias}. Nested structs tagged with `db:"alias"` pick up the alias of their own table:

	type ArticleAndAuthor struct {
		Article models.Article `db:"a"`
		Author  models.User    `db:"u"`
	}
	rows, err := db.Query[ArticleAndAuthor](ctx, conn, `
		SELECT $columns
		FROM
			articles AS a
			JOIN users AS u ON u.id = a.author_id
	`)
	// SELECT a.id, a.slug, ..., u.id, u.username, ... FROM ...

A comment line of the form "---- Name" anywhere in the query names it for
request perf tracking.
*/
package db
