package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/schema"
)

func TestNewGraph(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		g, err := schema.NewGraph(
			&schema.EntityType{
				Name: "User",
				Fields: []schema.Field{
					{Name: "name", Type: schema.TypeString},
					{Name: "email", Type: schema.TypeString, Unique: true},
				},
				Relations: []schema.Relation{
					{Name: "posts", Kind: schema.Reverse, Target: "Post"},
				},
			},
			&schema.EntityType{
				Name: "Post",
				Fields: []schema.Field{
					{Name: "title", Type: schema.TypeString},
				},
				Relations: []schema.Relation{
					{Name: "author", Kind: schema.ToOne, Target: "User"},
				},
			},
		)
		require.NoError(t, err)

		user, ok := g.Type("User")
		require.True(t, ok)
		assert.Equal(t, "users", user.Table)

		f, ok := user.Field("email")
		require.True(t, ok)
		assert.True(t, f.Unique)

		post, _ := g.Type("Post")
		rel, ok := post.Relation("author")
		require.True(t, ok)
		assert.Equal(t, "author_id", rel.Column)
		assert.Equal(t, user, g.Target(rel))

		rel, ok = user.Relation("posts")
		require.True(t, ok)
		assert.Equal(t, "user_id", rel.Column)
	})

	t.Run("undeclared_target", func(t *testing.T) {
		_, err := schema.NewGraph(&schema.EntityType{
			Name:      "Post",
			Relations: []schema.Relation{{Name: "author", Kind: schema.ToOne, Target: "User"}},
		})
		require.Error(t, err)
		assert.True(t, deepview.IsSchemaError(err))
		assert.Contains(t, err.Error(), `targets undeclared entity "User"`)
	})

	t.Run("duplicate_entity", func(t *testing.T) {
		_, err := schema.NewGraph(
			&schema.EntityType{Name: "User"},
			&schema.EntityType{Name: "User"},
		)
		require.Error(t, err)
		assert.True(t, deepview.IsSchemaError(err))
	})

	t.Run("duplicate_relation", func(t *testing.T) {
		_, err := schema.NewGraph(&schema.EntityType{
			Name: "User",
			Relations: []schema.Relation{
				{Name: "posts", Kind: schema.Reverse, Target: "User"},
				{Name: "posts", Kind: schema.Reverse, Target: "User"},
			},
		})
		require.Error(t, err)
		assert.True(t, deepview.IsSchemaError(err))
	})

	t.Run("relation_shadows_field", func(t *testing.T) {
		_, err := schema.NewGraph(&schema.EntityType{
			Name:      "User",
			Fields:    []schema.Field{{Name: "boss", Type: schema.TypeString}},
			Relations: []schema.Relation{{Name: "boss", Kind: schema.ToOne, Target: "User"}},
		})
		require.Error(t, err)
		assert.True(t, deepview.IsSchemaError(err))
	})

	t.Run("table_override", func(t *testing.T) {
		g, err := schema.NewGraph(&schema.EntityType{Name: "Person", Table: "people_records"})
		require.NoError(t, err)
		p, _ := g.Type("Person")
		assert.Equal(t, "people_records", p.Table)
	})
}

func TestKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "to_one", schema.ToOne.String())
	assert.Equal(t, "to_many", schema.ToMany.String())
	assert.Equal(t, "reverse", schema.Reverse.String())
	assert.False(t, schema.ToOne.Many())
	assert.True(t, schema.ToMany.Many())
	assert.True(t, schema.Reverse.Many())
}

func TestSegments(t *testing.T) {
	t.Parallel()

	assert.Nil(t, schema.Segments(""))
	assert.Equal(t, []string{"author"}, schema.Segments("author"))
	assert.Equal(t, []string{"comments", "author", "profile"}, schema.Segments("comments.author.profile"))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	g := blogGraph(t)
	post, _ := g.Type("Post")

	rels, ok := g.Resolve(post, "comments.author")
	require.True(t, ok)
	require.Len(t, rels, 2)
	assert.Equal(t, "Comment", rels[0].Target)
	assert.Equal(t, "User", rels[1].Target)

	_, ok = g.Resolve(post, "comments.nonexistent")
	assert.False(t, ok)
}
