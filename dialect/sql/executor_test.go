package sql_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/dialect"
	"github.com/syssam/deepview/dialect/sql"
	"github.com/syssam/deepview/query"
	"github.com/syssam/deepview/schema"
)

// blogGraph declares the schema shared by the executor and store tests:
// posts reference their author, comments hang off posts through a
// reverse relation and tags attach through a join table.
func blogGraph(t *testing.T) *schema.Graph {
	t.Helper()
	g, err := schema.NewGraph(
		&schema.EntityType{
			Name:   "User",
			Fields: []schema.Field{{Name: "name", Type: schema.TypeString}},
			Relations: []schema.Relation{
				{Name: "posts", Kind: schema.Reverse, Target: "Post", Column: "author_id"},
			},
		},
		&schema.EntityType{
			Name:   "Post",
			Fields: []schema.Field{{Name: "title", Type: schema.TypeString}},
			Relations: []schema.Relation{
				{Name: "author", Kind: schema.ToOne, Target: "User"},
				{Name: "comments", Kind: schema.Reverse, Target: "Comment"},
				{Name: "tags", Kind: schema.ToMany, Target: "Tag"},
			},
		},
		&schema.EntityType{
			Name:   "Comment",
			Fields: []schema.Field{{Name: "body", Type: schema.TypeString}},
		},
		&schema.EntityType{
			Name:   "Tag",
			Fields: []schema.Field{{Name: "label", Type: schema.TypeString}},
		},
	)
	require.NoError(t, err)
	return g
}

func mockDriver(t *testing.T, d string) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return sql.OpenDB(d, db), mock
}

func TestExecutorFetchRoots(t *testing.T) {
	g := blogGraph(t)
	post, _ := g.Type("Post")

	t.Run("bare", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectQuery(`SELECT t0.* FROM "posts" t0`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
				AddRow(1, "first", 10).
				AddRow(2, "second", nil))
		recs, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, &query.Plan{})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, int64(1), recs[0]["id"])
		assert.Equal(t, "first", recs[0]["title"])
		assert.Nil(t, recs[1]["author_id"])
	})

	t.Run("filter_and_order_through_relation", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectQuery(`SELECT t0.* FROM "posts" t0 JOIN "users" t1 ON t0."author_id" = t1."id" WHERE t1."name" = ? ORDER BY t0."title" DESC`).
			WithArgs("ann").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).AddRow(1, "first", 10))
		plan := &query.Plan{
			Filters: []query.Filter{{Field: "author.name", Value: "ann"}},
			OrderBy: []query.Order{{Field: "title", Desc: true}},
		}
		recs, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, plan)
		require.NoError(t, err)
		require.Len(t, recs, 1)
	})

	t.Run("filter_on_relation_compares_identity", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectQuery(`SELECT t0.* FROM "posts" t0 JOIN "users" t1 ON t0."author_id" = t1."id" WHERE t1."id" = ?`).
			WithArgs("10").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		plan := &query.Plan{Filters: []query.Filter{{Field: "author", Value: "10"}}}
		_, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, plan)
		require.NoError(t, err)
	})

	t.Run("many_join_is_distinct", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectQuery(`SELECT DISTINCT t0.* FROM "posts" t0 JOIN "comments" t1 ON t1."post_id" = t0."id" WHERE t1."body" = ?`).
			WithArgs("nice").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		plan := &query.Plan{Filters: []query.Filter{{Field: "comments.body", Value: "nice"}}}
		_, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, plan)
		require.NoError(t, err)
	})

	t.Run("postgres_placeholders", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectQuery(`SELECT t0.* FROM "posts" t0 WHERE t0."title" = $1`).
			WithArgs("first").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		plan := &query.Plan{Filters: []query.Filter{{Field: "title", Value: "first"}}}
		_, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, plan)
		require.NoError(t, err)
	})

	t.Run("unknown_filter_path", func(t *testing.T) {
		drv, _ := mockDriver(t, dialect.SQLite)
		plan := &query.Plan{Filters: []query.Filter{{Field: "editor.name", Value: "x"}}}
		_, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, plan)
		assert.True(t, deepview.IsSchemaError(err))
	})
}

func TestExecutorEagerLoad(t *testing.T) {
	g := blogGraph(t)
	post, _ := g.Type("Post")
	drv, mock := mockDriver(t, dialect.SQLite)

	mock.ExpectQuery(`SELECT t0.* FROM "posts" t0`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow(1, "first", 10).
			AddRow(2, "second", 10))
	// Relations load in lexical segment order: author, comments, tags.
	mock.ExpectQuery(`SELECT * FROM "users" WHERE "id" IN (?)`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(10, "ann"))
	mock.ExpectQuery(`SELECT * FROM "comments" WHERE "post_id" IN (?, ?)`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "post_id"}).
			AddRow(100, "nice", 1).
			AddRow(101, "meh", 1))
	mock.ExpectQuery(`SELECT "post_id", "tag_id" FROM "posts_tags" WHERE "post_id" IN (?, ?)`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "tag_id"}).
			AddRow(1, 7).
			AddRow(2, 7))
	mock.ExpectQuery(`SELECT * FROM "tags" WHERE "id" IN (?)`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).AddRow(7, "go"))

	plan := &query.Plan{EagerLoad: []string{"author", "comments", "tags"}}
	recs, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, plan)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	author, ok := recs[0]["author"].(deepview.Record)
	require.True(t, ok)
	assert.Equal(t, "ann", author["name"])
	// Both posts share the author record.
	assert.Equal(t, recs[0]["author"], recs[1]["author"])

	comments, ok := recs[0]["comments"].([]deepview.Record)
	require.True(t, ok)
	require.Len(t, comments, 2)
	assert.Equal(t, "nice", comments[0]["body"])
	assert.Empty(t, recs[1]["comments"])

	tags, ok := recs[0]["tags"].([]deepview.Record)
	require.True(t, ok)
	require.Len(t, tags, 1)
	assert.Equal(t, "go", tags[0]["label"])
	assert.Len(t, recs[1]["tags"], 1)
}

func TestExecutorEagerLoadNested(t *testing.T) {
	g := blogGraph(t)
	post, _ := g.Type("Post")
	drv, mock := mockDriver(t, dialect.SQLite)

	mock.ExpectQuery(`SELECT t0.* FROM "posts" t0`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "author_id"}).AddRow(1, 10))
	mock.ExpectQuery(`SELECT * FROM "users" WHERE "id" IN (?)`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(10, "ann"))
	// The second segment batches over the loaded users.
	mock.ExpectQuery(`SELECT * FROM "posts" WHERE "author_id" IN (?)`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow(1, "first", 10).
			AddRow(3, "third", 10))

	plan := &query.Plan{EagerLoad: []string{"author.posts"}}
	recs, err := sql.NewExecutor(drv, g).Fetch(context.Background(), post, plan)
	require.NoError(t, err)
	author := recs[0]["author"].(deepview.Record)
	assert.Equal(t, int64(10), author["id"])
	posts, ok := author["posts"].([]deepview.Record)
	require.True(t, ok)
	require.Len(t, posts, 2)
	assert.Equal(t, "third", posts[1]["title"])
}

func TestExecutorFetchOne(t *testing.T) {
	g := blogGraph(t)
	post, _ := g.Type("Post")

	t.Run("found", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectQuery(`SELECT t0.* FROM "posts" t0 WHERE t0."id" = ?`).
			WithArgs("1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(1, "first"))
		rec, err := sql.NewExecutor(drv, g).FetchOne(context.Background(), post, 1, &query.Plan{})
		require.NoError(t, err)
		assert.Equal(t, "first", rec["title"])
	})

	t.Run("missing", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectQuery(`SELECT t0.* FROM "posts" t0 WHERE t0."id" = ?`).
			WithArgs("9").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		_, err := sql.NewExecutor(drv, g).FetchOne(context.Background(), post, 9, &query.Plan{})
		assert.True(t, deepview.IsNotFound(err))
	})
}
