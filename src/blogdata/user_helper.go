package blogdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arsyadal/fastblog/src/auth"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/perf"
	"github.com/google/uuid"
)

// The parts of a user anyone may see.
type PublicUser struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	DisplayName    *string   `db:"display_name" json:"display_name"`
	AvatarUrl      *string   `db:"avatar_url" json:"avatar_url"`
	Bio            *string   `db:"bio" json:"bio"`
	FollowersCount int       `db:"followers_count" json:"followers_count"`
	IsVerified     bool      `db:"is_verified" json:"is_verified"`
}

func fetchPublicUser(ctx context.Context, dbConn db.ConnOrTx, userID uuid.UUID) (*PublicUser, error) {
	user, err := db.QueryOne[PublicUser](ctx, dbConn,
		`SELECT $columns FROM users WHERE id = $1`,
		userID,
	)
	if errors.Is(err, db.NotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch user")
	}
	return user, nil
}

func fetchPublicUsers(ctx context.Context, dbConn db.ConnOrTx, userIDs []uuid.UUID) (map[uuid.UUID]*PublicUser, error) {
	users, err := db.Query[PublicUser](ctx, dbConn,
		`SELECT $columns FROM users WHERE id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch users")
	}

	result := make(map[uuid.UUID]*PublicUser, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

type UsersQuery struct {
	// Ignored when using FetchUser
	UserIDs   []uuid.UUID // if empty, all users
	Usernames []string    // compared case-insensitively
	Emails    []string
}

/*
Fetches full user records. These include the password hash and email, so
never hand them to anyone but the user themselves.
*/
func FetchUsers(
	ctx context.Context,
	dbConn db.ConnOrTx,
	q UsersQuery,
) ([]*models.User, error) {
	defer perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch users").End()

	usernames := make([]string, len(q.Usernames))
	for i, username := range q.Usernames {
		usernames[i] = strings.ToLower(username)
	}
	emails := make([]string, len(q.Emails))
	for i, email := range q.Emails {
		emails[i] = strings.ToLower(email)
	}

	var qb db.QueryBuilder
	qb.Add(`
		SELECT $columns
		FROM users
		WHERE TRUE
	`)
	if len(q.UserIDs) > 0 {
		qb.Add(`AND id = ANY($?)`, q.UserIDs)
	}
	if len(usernames) > 0 {
		qb.Add(`AND LOWER(username) = ANY($?)`, usernames)
	}
	if len(emails) > 0 {
		qb.Add(`AND LOWER(email) = ANY($?)`, emails)
	}

	users, err := db.Query[models.User](ctx, dbConn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch users")
	}
	return users, nil
}

// Returns ErrNotFound if there is no such user.
func FetchUser(ctx context.Context, dbConn db.ConnOrTx, userID uuid.UUID) (*models.User, error) {
	return fetchOneUser(ctx, dbConn, UsersQuery{UserIDs: []uuid.UUID{userID}})
}

// Returns ErrNotFound if there is no such user.
func FetchUserByUsername(ctx context.Context, dbConn db.ConnOrTx, username string) (*models.User, error) {
	return fetchOneUser(ctx, dbConn, UsersQuery{Usernames: []string{username}})
}

func fetchOneUser(ctx context.Context, dbConn db.ConnOrTx, q UsersQuery) (*models.User, error) {
	users, err := FetchUsers(ctx, dbConn, q)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return users[0], nil
}

type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName *string
}

func (in *RegisterInput) validate() error {
	var v validator
	v.email("email", in.Email)
	v.username("username", in.Username)
	v.length("password", in.Password, 8, 0)
	v.optionalLength("display_name", in.DisplayName, 100)
	return v.err()
}

/*
Creates a new free user. Returns ErrUserExists if the email or username is
taken, ignoring case.
*/
func Register(ctx context.Context, dbConn db.ConnOrTx, in RegisterInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := in.validate(); err != nil {
		return nil, err
	}

	hashed := auth.HashPassword(in.Password)

	user, err := db.QueryOne[models.User](ctx, dbConn,
		`
		---- Register user
		INSERT INTO users (id, email, username, password_hash, display_name, user_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING $columns
		`,
		uuid.New(), in.Email, in.Username, hashed.String(), in.DisplayName, models.UserTypeFree,
	)
	if db.IsUniqueViolation(err, "") {
		return nil, ErrUserExists
	} else if err != nil {
		return nil, oops.New(err, "failed to create user")
	}
	return user, nil
}

/*
Checks a login, which may be an email or a username. Every failure looks the
same to the caller: ErrInvalidCredentials.
*/
func Authenticate(ctx context.Context, dbConn db.ConnOrTx, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	q := UsersQuery{Usernames: []string{login}}
	if strings.Contains(login, "@") {
		q = UsersQuery{Emails: []string{login}}
	}
	user, err := fetchOneUser(ctx, dbConn, q)
	if errors.Is(err, ErrNotFound) {
		// Burn the same time a real check would
		auth.HashPassword(password)
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPasswordString(password, user.PasswordHash)
	if err != nil {
		return nil, oops.New(err, "failed to check password for user %s", user.Username)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

type ProfileInput struct {
	DisplayName *string
	Bio         *string
	AvatarUrl   *string
}

func UpdateProfile(ctx context.Context, dbConn db.ConnOrTx, userID uuid.UUID, in ProfileInput) (*models.User, error) {
	var v validator
	v.optionalLength("display_name", in.DisplayName, 100)
	v.optionalLength("bio", in.Bio, 500)
	if in.AvatarUrl != nil && *in.AvatarUrl != "" {
		v.check(strings.HasPrefix(*in.AvatarUrl, "http://") || strings.HasPrefix(*in.AvatarUrl, "https://"), "avatar_url", "invalid avatar URL")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	user, err := db.QueryOne[models.User](ctx, dbConn,
		`
		---- Update profile
		UPDATE users
		SET
			display_name = COALESCE($2, display_name),
			bio = COALESCE($3, bio),
			avatar_url = COALESCE($4, avatar_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING $columns
		`,
		userID, in.DisplayName, in.Bio, in.AvatarUrl,
	)
	if errors.Is(err, db.NotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to update profile")
	}
	return user, nil
}

// Sets or clears (with nil) the avatar. Returns the previous URL, or "" if
// there wasn't one.
func SetAvatarUrl(ctx context.Context, dbConn db.ConnOrTx, userID uuid.UUID, url *string) (string, error) {
	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return "", oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	previous, err := db.QueryOneScalar[string](ctx, tx,
		`SELECT COALESCE(avatar_url, '') FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	)
	if errors.Is(err, db.NotFound) {
		return "", ErrNotFound
	} else if err != nil {
		return "", oops.New(err, "failed to fetch current avatar")
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET avatar_url = $2, updated_at = NOW() WHERE id = $1`,
		userID, url,
	)
	if err != nil {
		return "", oops.New(err, "failed to set avatar")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", oops.New(err, "failed to commit avatar")
	}
	return previous, nil
}

// A public profile plus a few aggregates.
type UserProfile struct {
	User               models.User
	ArticlesCount      int64
	TotalClapsReceived int64
}

func FetchUserProfile(ctx context.Context, dbConn db.ConnOrTx, user *models.User) (*UserProfile, error) {
	type aggregates struct {
		ArticlesCount int64 `db:"articles_count"`
		TotalClaps    int64 `db:"total_claps"`
	}
	agg, err := db.QueryOne[aggregates](ctx, dbConn,
		`
		---- Profile aggregates
		SELECT $columns
		FROM (
			SELECT
				COUNT(*) AS articles_count,
				COALESCE(SUM(claps_count), 0)::bigint AS total_claps
			FROM articles
			WHERE author_id = $1 AND status = 'published'
		) AS agg
		`,
		user.ID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch profile aggregates")
	}
	return &UserProfile{
		User:               *user,
		ArticlesCount:      agg.ArticlesCount,
		TotalClapsReceived: agg.TotalClaps,
	}, nil
}

// Grants or revokes admin powers. There is no HTTP route for this.
func MarkAdmin(ctx context.Context, dbConn db.ConnOrTx, username string, isAdmin bool) error {
	tag, err := dbConn.Exec(ctx,
		`UPDATE users SET is_admin = $2, updated_at = $3 WHERE LOWER(username) = LOWER($1)`,
		username, isAdmin, time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to update admin flag")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
