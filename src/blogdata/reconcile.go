package blogdata

import (
	"context"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/jobs"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReconcileResult struct {
	Claps     int64
	Bookmarks int64
	Comments  int64
	Followers int64
	Following int64
}

func (r ReconcileResult) Total() int64 {
	return r.Claps + r.Bookmarks + r.Comments + r.Followers + r.Following
}

type reconcileStep struct {
	Name  string
	Query string
	Count func(*ReconcileResult) *int64
}

// Each query rewrites a cached counter from its detail rows, touching only
// the rows that have drifted.
var reconcileSteps = []reconcileStep{
	{
		Name: "claps",
		Query: `
		---- Reconcile claps
		UPDATE articles
		SET claps_count = actual.n
		FROM (
			SELECT articles.id, COUNT(claps.id) AS n
			FROM articles LEFT JOIN claps ON claps.article_id = articles.id
			GROUP BY articles.id
		) AS actual
		WHERE articles.id = actual.id AND articles.claps_count != actual.n
		`,
		Count: func(r *ReconcileResult) *int64 { return &r.Claps },
	},
	{
		Name: "bookmarks",
		Query: `
		---- Reconcile bookmarks
		UPDATE articles
		SET bookmarks_count = actual.n
		FROM (
			SELECT articles.id, COUNT(bookmarks.id) AS n
			FROM articles LEFT JOIN bookmarks ON bookmarks.article_id = articles.id
			GROUP BY articles.id
		) AS actual
		WHERE articles.id = actual.id AND articles.bookmarks_count != actual.n
		`,
		Count: func(r *ReconcileResult) *int64 { return &r.Bookmarks },
	},
	{
		Name: "comments",
		Query: `
		---- Reconcile comments
		UPDATE articles
		SET comments_count = actual.n
		FROM (
			SELECT articles.id, COUNT(comments.id) AS n
			FROM articles LEFT JOIN comments ON comments.article_id = articles.id
			GROUP BY articles.id
		) AS actual
		WHERE articles.id = actual.id AND articles.comments_count != actual.n
		`,
		Count: func(r *ReconcileResult) *int64 { return &r.Comments },
	},
	{
		Name: "followers",
		Query: `
		---- Reconcile followers
		UPDATE users
		SET followers_count = actual.n
		FROM (
			SELECT users.id, COUNT(user_follows.follower_id) AS n
			FROM users LEFT JOIN user_follows ON user_follows.following_id = users.id
			GROUP BY users.id
		) AS actual
		WHERE users.id = actual.id AND users.followers_count != actual.n
		`,
		Count: func(r *ReconcileResult) *int64 { return &r.Followers },
	},
	{
		Name: "following",
		Query: `
		---- Reconcile following
		UPDATE users
		SET following_count = actual.n
		FROM (
			SELECT users.id, COUNT(user_follows.following_id) AS n
			FROM users LEFT JOIN user_follows ON user_follows.follower_id = users.id
			GROUP BY users.id
		) AS actual
		WHERE users.id = actual.id AND users.following_count != actual.n
		`,
		Count: func(r *ReconcileResult) *int64 { return &r.Following },
	},
}

/*
Recomputes every cached engagement counter from the rows it summarizes.
Counters only drift if something wrote to the tables outside the ledger, so
in a healthy system this changes nothing.
*/
func ReconcileCounters(ctx context.Context, dbConn db.ConnOrTx) (ReconcileResult, error) {
	var result ReconcileResult

	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return result, oops.New(err, "failed to start reconcile transaction")
	}
	defer tx.Rollback(ctx)

	for _, step := range reconcileSteps {
		tag, err := tx.Exec(ctx, step.Query)
		if err != nil {
			return ReconcileResult{}, oops.New(err, "failed to reconcile %s", step.Name)
		}
		*step.Count(&result) = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return ReconcileResult{}, oops.New(err, "failed to commit reconciled counters")
	}

	if result.Total() > 0 {
		logging.ExtractLogger(ctx).Warn().
			Int64("claps", result.Claps).
			Int64("bookmarks", result.Bookmarks).
			Int64("comments", result.Comments).
			Int64("followers", result.Followers).
			Int64("following", result.Following).
			Msg("fixed drifted counters")
	}
	return result, nil
}

// Runs ReconcileCounters on a cron schedule. An empty schedule turns it off.
func PeriodicallyReconcileCounters(conn *pgxpool.Pool, schedule string) *jobs.Job {
	if schedule == "" {
		return jobs.Noop("counter reconciliation")
	}

	job, err := jobs.Scheduled("counter reconciliation", schedule, func(ctx context.Context) error {
		_, err := ReconcileCounters(ctx, conn)
		return err
	})
	if err != nil {
		logging.Error().Err(err).Msg("counter reconciliation disabled")
		return jobs.Noop("counter reconciliation")
	}
	return job
}
