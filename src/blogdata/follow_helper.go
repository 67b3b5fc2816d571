package blogdata

import (
	"context"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/google/uuid"
)

type FollowResult struct {
	Changed        bool // false if the edge was already in the requested state
	FollowersCount int  // of the followed user, after the change
}

/*
Makes follower follow following. Following yourself is a validation error.
Counts only move when an edge is actually created.
*/
func Follow(ctx context.Context, dbConn db.ConnOrTx, followerID, followingID uuid.UUID) (FollowResult, error) {
	if followerID == followingID {
		return FollowResult{}, invalid("user_id", "you cannot follow yourself")
	}

	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return FollowResult{}, oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := lockUsers(ctx, tx, followerID, followingID); err != nil {
		return FollowResult{}, err
	}

	tag, err := tx.Exec(ctx,
		`
		INSERT INTO user_follows (follower_id, following_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, following_id) DO NOTHING
		`,
		followerID, followingID,
	)
	if err != nil {
		return FollowResult{}, oops.New(err, "failed to insert follow")
	}

	res := FollowResult{Changed: tag.RowsAffected() > 0}
	if res.Changed {
		_, err = tx.Exec(ctx,
			`UPDATE users SET following_count = following_count + 1 WHERE id = $1`,
			followerID,
		)
		if err != nil {
			return FollowResult{}, oops.New(err, "failed to bump following count")
		}
		_, err = tx.Exec(ctx,
			`UPDATE users SET followers_count = followers_count + 1 WHERE id = $1`,
			followingID,
		)
		if err != nil {
			return FollowResult{}, oops.New(err, "failed to bump followers count")
		}
	}

	res.FollowersCount, err = db.QueryOneScalar[int](ctx, tx,
		`SELECT followers_count FROM users WHERE id = $1`,
		followingID,
	)
	if err != nil {
		return FollowResult{}, oops.New(err, "failed to fetch followers count")
	}

	if err := tx.Commit(ctx); err != nil {
		return FollowResult{}, oops.New(err, "failed to commit follow")
	}
	return res, nil
}

// The inverse of Follow. Counts never drop below zero.
func Unfollow(ctx context.Context, dbConn db.ConnOrTx, followerID, followingID uuid.UUID) (FollowResult, error) {
	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return FollowResult{}, oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := lockUsers(ctx, tx, followerID, followingID); err != nil {
		return FollowResult{}, err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM user_follows WHERE follower_id = $1 AND following_id = $2`,
		followerID, followingID,
	)
	if err != nil {
		return FollowResult{}, oops.New(err, "failed to delete follow")
	}

	res := FollowResult{Changed: tag.RowsAffected() > 0}
	if res.Changed {
		_, err = tx.Exec(ctx,
			`UPDATE users SET following_count = GREATEST(following_count - 1, 0) WHERE id = $1`,
			followerID,
		)
		if err != nil {
			return FollowResult{}, oops.New(err, "failed to drop following count")
		}
		_, err = tx.Exec(ctx,
			`UPDATE users SET followers_count = GREATEST(followers_count - 1, 0) WHERE id = $1`,
			followingID,
		)
		if err != nil {
			return FollowResult{}, oops.New(err, "failed to drop followers count")
		}
	}

	res.FollowersCount, err = db.QueryOneScalar[int](ctx, tx,
		`SELECT followers_count FROM users WHERE id = $1`,
		followingID,
	)
	if err != nil {
		return FollowResult{}, oops.New(err, "failed to fetch followers count")
	}

	if err := tx.Commit(ctx); err != nil {
		return FollowResult{}, oops.New(err, "failed to commit unfollow")
	}
	return res, nil
}

// Locks both users in a fixed order so two opposite follows can't deadlock.
// Returns ErrNotFound if the followed user doesn't exist.
func lockUsers(ctx context.Context, tx db.ConnOrTx, followerID, followingID uuid.UUID) error {
	ids, err := db.QueryScalar[uuid.UUID](ctx, tx,
		`
		SELECT id FROM users
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
		`,
		[]uuid.UUID{followerID, followingID},
	)
	if err != nil {
		return oops.New(err, "failed to lock users")
	}
	for _, id := range ids {
		if id == followingID {
			return nil
		}
	}
	return ErrNotFound
}

func IsFollowing(ctx context.Context, dbConn db.ConnOrTx, followerID, followingID uuid.UUID) (bool, error) {
	following, err := db.QueryOneScalar[bool](ctx, dbConn,
		`
		SELECT EXISTS (
			SELECT 1 FROM user_follows
			WHERE follower_id = $1 AND following_id = $2
		)
		`,
		followerID, followingID,
	)
	if err != nil {
		return false, oops.New(err, "failed to check follow")
	}
	return following, nil
}

type FollowDirection int

const (
	Followers FollowDirection = iota // people following the user
	Following                        // people the user follows
)

/*
Pages through a user's followers or followees, most recent edge first.
Returns ErrNotFound if the user doesn't exist.
*/
func FetchFollows(
	ctx context.Context,
	dbConn db.ConnOrTx,
	userID uuid.UUID,
	direction FollowDirection,
	page Page,
) (Paged[*PublicUser], error) {
	if _, err := fetchPublicUser(ctx, dbConn, userID); err != nil {
		return Paged[*PublicUser]{}, err
	}

	matchCol, otherCol := "following_id", "follower_id"
	if direction == Following {
		matchCol, otherCol = "follower_id", "following_id"
	}

	users, err := db.Query[PublicUser](ctx, dbConn,
		`
		---- Fetch follows
		SELECT $columns{u}
		FROM
			user_follows AS f
			JOIN users AS u ON u.id = f.`+otherCol+`
		WHERE f.`+matchCol+` = $1
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
		`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return Paged[*PublicUser]{}, oops.New(err, "failed to fetch follows")
	}

	total, err := db.QueryOneScalar[int64](ctx, dbConn,
		`SELECT COUNT(*) FROM user_follows WHERE `+matchCol+` = $1`,
		userID,
	)
	if err != nil {
		return Paged[*PublicUser]{}, oops.New(err, "failed to count follows")
	}

	return Paged[*PublicUser]{Items: users, Total: total, Page: page}, nil
}
