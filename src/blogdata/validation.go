package blogdata

import (
	"fmt"
	"net/mail"
	"regexp"
	"unicode/utf8"
)

type validator struct {
	fields map[string]string
}

func (v *validator) fail(field, format string, args ...any) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = fmt.Sprintf(format, args...)
	}
}

func (v *validator) length(field, s string, min, max int) {
	n := utf8.RuneCountInString(s)
	switch {
	case min > 0 && n < min && max > 0:
		v.fail(field, "must be between %d and %d characters", min, max)
	case min > 0 && n < min:
		if min == 1 {
			v.fail(field, "cannot be empty")
		} else {
			v.fail(field, "must be at least %d characters", min)
		}
	case max > 0 && n > max:
		if min > 0 {
			v.fail(field, "must be between %d and %d characters", min, max)
		} else {
			v.fail(field, "cannot exceed %d characters", max)
		}
	}
}

func (v *validator) optionalLength(field string, s *string, max int) {
	if s != nil {
		v.length(field, *s, 0, max)
	}
}

func (v *validator) maxItems(field string, items []string, max int) {
	if len(items) > max {
		v.fail(field, "cannot have more than %d items", max)
	}
}

func (v *validator) between(field string, n, min, max int) {
	if n < min || n > max {
		v.fail(field, "must be between %d and %d", min, max)
	}
}

func (v *validator) check(cond bool, field, message string) {
	if !cond {
		v.fail(field, "%s", message)
	}
}

var reUsername = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (v *validator) username(field, s string) {
	v.length(field, s, 3, 30)
	if !reUsername.MatchString(s) {
		v.fail(field, "can only contain letters, numbers, and underscores")
	}
}

func (v *validator) email(field, s string) {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		v.fail(field, "invalid email format")
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
