package db

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	type CustomInt int
	type S struct {
		I   int        `db:"I"`
		PI  *int       `db:"PI"`
		CI  CustomInt  `db:"CI"`
		PCI *CustomInt `db:"PCI"`
		B   bool       `db:"B"`
		PB  *bool      `db:"PB"`

		NoTag int
	}
	type Nested struct {
		S  S  `db:"S"`
		PS *S `db:"PS"`

		NoTag S
	}

	cols, paths := getColumnNamesAndPaths(reflect.TypeOf(Nested{}), nil, nil)
	var names []string
	for _, c := range cols {
		names = append(names, c.String())
	}
	assert.Equal(t, []string{
		"S.I", "S.PI",
		"S.CI", "S.PCI",
		"S.B", "S.PB",
		"PS.I", "PS.PI",
		"PS.CI", "PS.PCI",
		"PS.B", "PS.PB",
	}, names)
	assert.Equal(t, []fieldPath{
		{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5},
		{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 4}, {1, 5},
	}, paths)

	testStruct := Nested{}
	for i, path := range paths {
		val, field := followPathThroughStructs(reflect.ValueOf(&testStruct), path)
		assert.True(t, val.IsValid())
		assert.True(t, strings.Contains(names[i], field.Name))
	}
	assert.NotNil(t, testStruct.PS, "following a path through a nil pointer should allocate it")
}

func TestCompileQuery(t *testing.T) {
	type Author struct {
		ID       uuid.UUID `db:"id"`
		Username string    `db:"username"`
	}
	type Row struct {
		ID        uuid.UUID `db:"id"`
		Tags      []string  `db:"tags"`
		CreatedAt time.Time `db:"created_at"`
		Author    Author    `db:"u"`
	}

	compiled := compileQuery("SELECT $columns{a} FROM articles AS a JOIN users AS u ON u.id = a.author_id", reflect.TypeOf(Row{}))
	assert.Equal(t,
		"SELECT a.id, a.tags, a.created_at, a_u.id, a_u.username FROM articles AS a JOIN users AS u ON u.id = a.author_id",
		compiled.query,
	)
	assert.Len(t, compiled.fieldPaths, 5)

	compiled = compileQuery("SELECT $columns FROM articles", reflect.TypeOf(Author{}))
	assert.Equal(t, "SELECT id, username FROM articles", compiled.query)

	plain := compileQuery("SELECT count(*) FROM claps", reflect.TypeOf(int64(0)))
	assert.Equal(t, "SELECT count(*) FROM claps", plain.query)
	assert.Nil(t, plain.fieldPaths)

	assert.Panics(t, func() {
		compileQuery("SELECT $columns FROM articles", reflect.TypeOf(""))
	})
	assert.Panics(t, func() {
		compileQuery("SELECT $columns FROM articles", reflect.TypeOf(time.Time{}))
	})
}

func TestTypeIsQueryable(t *testing.T) {
	type ArticleStatus string
	assert.True(t, typeIsQueryable(reflect.TypeOf(ArticleStatus(""))))
	assert.True(t, typeIsQueryable(reflect.TypeOf(uuid.UUID{})))
	assert.True(t, typeIsQueryable(reflect.TypeOf(time.Time{})))
	assert.True(t, typeIsQueryable(reflect.TypeOf([]string{})))
	assert.True(t, typeIsQueryable(reflect.TypeOf(float64(0))))
	assert.False(t, typeIsQueryable(reflect.TypeOf(struct{ A int }{})))
	assert.False(t, typeIsQueryable(reflect.TypeOf(map[string]int{})))
}

func TestSetValueFromDB(t *testing.T) {
	type ArticleStatus string

	var i int
	setValueFromDB(reflect.ValueOf(&i).Elem(), reflect.ValueOf(int32(42)))
	assert.Equal(t, 42, i)

	var status ArticleStatus
	setValueFromDB(reflect.ValueOf(&status).Elem(), reflect.ValueOf("published"))
	assert.Equal(t, ArticleStatus("published"), status)

	var id uuid.UUID
	raw := [16]byte{1, 2, 3}
	setValueFromDB(reflect.ValueOf(&id).Elem(), reflect.ValueOf(raw))
	assert.Equal(t, uuid.UUID(raw), id)

	var tags []string
	setValueFromDB(reflect.ValueOf(&tags).Elem(), reflect.ValueOf([]any{"go", "postgres"}))
	assert.Equal(t, []string{"go", "postgres"}, tags)

	var f float64
	setValueFromDB(reflect.ValueOf(&f).Elem(), reflect.ValueOf(int64(3)))
	assert.Equal(t, 3.0, f)

	assert.Panics(t, func() {
		var s string
		setValueFromDB(reflect.ValueOf(&s).Elem(), reflect.ValueOf(int64(3)))
	})
}

func TestQueryBuilder(t *testing.T) {
	var qb QueryBuilder
	qb.Add("SELECT $columns FROM articles WHERE TRUE")
	qb.Add("AND status = $?", "published")
	qb.Add("AND (title ILIKE $? OR content ILIKE $?)", "%go%", "%go%")

	assert.Equal(t, "SELECT $columns FROM articles WHERE TRUE\nAND status = $1\nAND (title ILIKE $2 OR content ILIKE $3)\n", qb.String())
	assert.Equal(t, []any{"published", "%go%", "%go%"}, qb.Args())

	assert.Panics(t, func() {
		qb.Add("AND author_id = $?")
	})
}

func TestGetQueryName(t *testing.T) {
	name, ok := GetQueryName("\n---- Fetch trending articles\nSELECT 1")
	assert.True(t, ok)
	assert.Equal(t, "Fetch trending articles", name)

	_, ok = GetQueryName("SELECT 1")
	assert.False(t, ok)
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "articles_slug_key"}
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "articles_slug_key"))
	assert.False(t, IsUniqueViolation(err, "users_email_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("nope"), ""))
}
