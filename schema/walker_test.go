package schema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/deepview/schema"
)

// blogGraph declares a cyclic schema: Post -> User -> Profile -> User,
// Post <-> Comment, User <-> Post.
func blogGraph(t *testing.T) *schema.Graph {
	t.Helper()
	g, err := schema.NewGraph(
		&schema.EntityType{
			Name: "User",
			Fields: []schema.Field{
				{Name: "name", Type: schema.TypeString},
				{Name: "email", Type: schema.TypeString, Unique: true},
			},
			Relations: []schema.Relation{
				{Name: "posts", Kind: schema.Reverse, Target: "Post"},
				{Name: "profile", Kind: schema.ToOne, Target: "Profile"},
			},
		},
		&schema.EntityType{
			Name:   "Post",
			Fields: []schema.Field{{Name: "title", Type: schema.TypeString}},
			Relations: []schema.Relation{
				{Name: "author", Kind: schema.ToOne, Target: "User"},
				{Name: "comments", Kind: schema.Reverse, Target: "Comment"},
			},
		},
		&schema.EntityType{
			Name:   "Comment",
			Fields: []schema.Field{{Name: "body", Type: schema.TypeString}},
			Relations: []schema.Relation{
				{Name: "author", Kind: schema.ToOne, Target: "User"},
				{Name: "post", Kind: schema.ToOne, Target: "Post"},
			},
		},
		&schema.EntityType{
			Name:   "Profile",
			Fields: []schema.Field{{Name: "bio", Type: schema.TypeString}},
			Relations: []schema.Relation{
				{Name: "user", Kind: schema.ToOne, Target: "User"},
			},
		},
	)
	require.NoError(t, err)
	return g
}

func TestPaths(t *testing.T) {
	t.Parallel()

	t.Run("acyclic_chain", func(t *testing.T) {
		g, err := schema.NewGraph(
			&schema.EntityType{Name: "A", Relations: []schema.Relation{{Name: "b", Kind: schema.ToOne, Target: "B"}}},
			&schema.EntityType{Name: "B", Relations: []schema.Relation{{Name: "c", Kind: schema.ToOne, Target: "C"}}},
			&schema.EntityType{Name: "C"},
		)
		require.NoError(t, err)
		a, _ := g.Type("A")
		assert.Equal(t, []string{"b", "b.c"}, g.Paths(a))
	})

	t.Run("cyclic_blog", func(t *testing.T) {
		g := blogGraph(t)
		post, _ := g.Type("Post")
		assert.Equal(t, []string{
			"author",
			"author.profile",
			"comments",
			"comments.author",
			"comments.author.profile",
		}, g.Paths(post))
	})

	t.Run("self_reference", func(t *testing.T) {
		g, err := schema.NewGraph(&schema.EntityType{
			Name: "Employee",
			Relations: []schema.Relation{
				{Name: "manager", Kind: schema.ToOne, Target: "Employee"},
				{Name: "reports", Kind: schema.Reverse, Target: "Employee"},
			},
		})
		require.NoError(t, err)
		emp, _ := g.Type("Employee")
		assert.Equal(t, []string{"manager", "reports"}, g.Paths(emp))
	})

	t.Run("no_relations", func(t *testing.T) {
		g, err := schema.NewGraph(&schema.EntityType{Name: "Tag"})
		require.NoError(t, err)
		tag, _ := g.Type("Tag")
		assert.Empty(t, g.Paths(tag))
	})

	t.Run("path_length_bounded_by_type_count", func(t *testing.T) {
		g := blogGraph(t)
		for _, typ := range g.Types() {
			for _, p := range g.Paths(typ) {
				assert.LessOrEqual(t, len(schema.Segments(p)), len(g.Types()),
					"path %q from %s exceeds entity count", p, typ.Name)
			}
		}
	})

	t.Run("no_repeated_type_along_path", func(t *testing.T) {
		g := blogGraph(t)
		for _, typ := range g.Types() {
			for _, p := range g.Paths(typ) {
				rels, ok := g.Resolve(typ, p)
				require.True(t, ok, "path %q must resolve from %s", p, typ.Name)
				seen := map[string]int{}
				for _, r := range rels[:len(rels)-1] {
					seen[r.Target]++
				}
				for target, n := range seen {
					assert.Equal(t, 1, n, "type %s repeats as ancestor on %q", target, p)
				}
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		g := blogGraph(t)
		post, _ := g.Type("Post")
		first := g.Paths(post)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, g.Paths(post))
		}
	})
}

func TestFieldPaths(t *testing.T) {
	t.Parallel()

	g := blogGraph(t)
	post, _ := g.Type("Post")
	fields := g.FieldPaths(post)

	for _, want := range []string{
		"title",
		"author",
		"author.name",
		"author.email",
		"author.profile.bio",
		"comments.body",
		"comments.author.name",
	} {
		assert.Contains(t, fields, want)
	}
	assert.NotContains(t, fields, "nonexistent_field")
	// Paths never revisit an ancestor type, so the scalar fields of a
	// revisited type are not reachable either.
	for _, f := range fields {
		assert.False(t, strings.HasPrefix(f, "comments.post."), "unexpected field %q", f)
	}
}
