// Package slugs turns article titles into unique URL slugs.
package slugs

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/google/uuid"
)

const (
	FallbackDraft   = "draft"
	FallbackArticle = "article"

	// Name of the UNIQUE constraint on articles.slug. Inserts that lose a
	// race for a slug fail on this and should allocate again.
	UniqueConstraint = "articles_slug_key"

	// How many times to allocate and insert before giving up.
	MaxAttempts = 5
)

var (
	reWhitespace = regexp.MustCompile(`\s`)
	reDashes     = regexp.MustCompile(`-+`)
	reValid      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Slugify lowercases the title, turns whitespace into dashes, drops
// everything that isn't an ASCII letter, digit or dash, and collapses and
// trims the dashes. The result may be empty.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = reWhitespace.ReplaceAllString(s, "-")
	s = strings.Map(func(r rune) rune {
		if r == '-' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, s)
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Base returns the slug for a title, or fallback if the title has nothing
// sluggable in it.
func Base(title, fallback string) string {
	if s := Slugify(title); s != "" {
		return s
	}
	return fallback
}

func IsValid(slug string) bool {
	return reValid.MatchString(slug)
}

// Candidate returns the n-th slug to try for a base: base, base-1, base-2...
func Candidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

/*
Allocate finds the first free slug for the title. Articles with excludeID
don't count as taken, so an article can keep or re-derive its own slug.

The check is not atomic with the caller's insert. Callers must treat a unique
violation on UniqueConstraint as a signal to allocate again.
*/
func Allocate(ctx context.Context, conn db.ConnOrTx, title, fallback string, excludeID *uuid.UUID) (string, error) {
	base := Base(title, fallback)
	for n := 0; ; n++ {
		candidate := Candidate(base, n)
		taken, err := db.QueryOneScalar[bool](ctx, conn,
			`
			---- Check slug
			SELECT EXISTS (
				SELECT 1 FROM articles
				WHERE slug = $1 AND ($2::uuid IS NULL OR id != $2)
			)
			`,
			candidate,
			excludeID,
		)
		if err != nil {
			return "", oops.New(err, "failed to check slug availability")
		}
		if !taken {
			return candidate, nil
		}
	}
}
