package models

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	UserTypeFree        UserType = "free"
	UserTypeMember      UserType = "member"
	UserTypeWriter      UserType = "writer"
	UserTypePublication UserType = "publication"
)

func (t UserType) Valid() bool {
	switch t {
	case UserTypeFree, UserTypeMember, UserTypeWriter, UserTypePublication:
		return true
	}
	return false
}

type User struct {
	ID uuid.UUID `db:"id"`

	Email        string `db:"email"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`

	DisplayName *string `db:"display_name"`
	Bio         *string `db:"bio"`
	AvatarUrl   *string `db:"avatar_url"`

	UserType   UserType `db:"user_type"`
	IsVerified bool     `db:"is_verified"`
	IsAdmin    bool     `db:"is_admin"`

	FollowersCount int `db:"followers_count"`
	FollowingCount int `db:"following_count"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (u *User) BestName() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}

func (u *User) IsMember() bool {
	return u.UserType == UserTypeMember || u.UserType == UserTypeWriter
}
