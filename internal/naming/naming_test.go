package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"User", "User"},
		{"BlogPost", "Blog Post"},
		{"firstName", "First Name"},
		{"first_name", "First Name"},
		{"HTTPServer", "HTTP Server"},
		{"post2Tag", "Post2 Tag"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Humanize(tt.input))
		})
	}
}

func TestPluralize(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"User", "Users"},
		{"Category", "Categories"},
		{"Person", "People"},
		{"Blog Post", "Blog Posts"},
		{"Status", "Statuses"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.Pluralize(tt.input))
		})
	}
}

func TestPluralizeWithOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PluralOverrides["Staff"] = "Staffers"
	namer := New(cfg, nil)
	assert.Equal(t, "Staffers", namer.Pluralize("Staff"))
}

func TestListNames(t *testing.T) {
	namer := Default()
	names, err := namer.ListNames("BlogPost", "", UIOverrides{})
	require.NoError(t, err)

	assert.Equal(t, "BlogPosts", names.PluralGraphQL)
	assert.Equal(t, "Blog Posts", names.Label)
	assert.Equal(t, "Blog Post", names.Singular)
	assert.Equal(t, "blog-posts", names.Path)
	assert.Equal(t, "allBlogPosts", names.GQL.ListQueryName)
	assert.Equal(t, "allBlogPostsCount", names.GQL.ListQueryCountName)
	assert.Equal(t, "SortBlogPostsBy", names.GQL.ListSortName)
	assert.Equal(t, "createBlogPosts", names.GQL.CreateManyMutationName)
	assert.Equal(t, "BlogPostWhereUniqueInput", names.GQL.WhereUniqueInputName)
}

func TestListNamesRejectsPluralEqualToKey(t *testing.T) {
	namer := Default()
	_, err := namer.ListNames("Sheep", "", UIOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "please specify graphql.plural")

	names, err := namer.ListNames("Sheep", "Flock", UIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "allFlock", names.GQL.ListQueryName)
}

func TestListNamesValidatesPath(t *testing.T) {
	namer := Default()
	_, err := namer.ListNames("User", "", UIOverrides{Path: "Not Valid"})
	require.Error(t, err)
}

func TestReservedListKeys(t *testing.T) {
	for _, key := range []string{"Query", "String", "__Type", "9Lives", "has space"} {
		assert.Error(t, ValidateListKey(key), key)
	}
	assert.NoError(t, ValidateListKey("User"))
	assert.Error(t, ValidateFieldKey("User", "AND"))
}

func TestCollisionAcrossLists(t *testing.T) {
	namer := Default()
	_, err := namer.ListNames("User", "", UIOverrides{})
	require.NoError(t, err)
	// The output type of UserWhereInput is User's where input.
	_, err = namer.ListNames("UserWhereInput", "UserWhereInputs", UIOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")

	namer.Reset()
	_, err = namer.ListNames("UserWhereInput", "UserWhereInputs", UIOverrides{})
	require.NoError(t, err)
}
