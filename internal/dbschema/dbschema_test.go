package dbschema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/fields"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/sqlutil"
)

func blogSchema(t *testing.T) *Schema {
	t.Helper()
	ls, err := lists.Initialise(schema.Config{Lists: map[string]schema.ListConfig{
		"User": {Fields: schema.Fields(
			schema.F("name", fields.Text(fields.TextConfig{})),
			schema.F("email", fields.Text(fields.TextConfig{IsUnique: true})),
			schema.F("posts", fields.Relationship(fields.RelationshipConfig{Ref: "Post.author", Many: true})),
		)},
		"Post": {Fields: schema.Fields(
			schema.F("title", fields.Text(fields.TextConfig{})),
			schema.F("status", fields.Select(fields.SelectConfig{
				DataType: fields.SelectEnum,
				Options:  []fields.SelectOption{{Label: "Draft", Value: "draft"}, {Label: "Published", Value: "published"}},
			})),
			schema.F("views", fields.Integer(fields.IntegerConfig{})),
			schema.F("author", fields.Relationship(fields.RelationshipConfig{Ref: "User.posts"})),
			schema.F("tags", fields.Relationship(fields.RelationshipConfig{Ref: "Tag.posts", Many: true})),
		)},
		"Tag": {Fields: schema.Fields(
			schema.F("name", fields.Text(fields.TextConfig{})),
			schema.F("posts", fields.Relationship(fields.RelationshipConfig{Ref: "Post.tags", Many: true})),
		)},
	}}, lists.Options{})
	require.NoError(t, err)
	s, err := Build(ls)
	require.NoError(t, err)
	return s
}

func TestBuildModels(t *testing.T) {
	s := blogSchema(t)

	post, ok := s.Model("Post")
	require.True(t, ok)
	var names []string
	for _, c := range post.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "title", "status", "views", "authorId"}, names)

	fk, _ := post.Column("authorId")
	assert.Equal(t, "User", fk.References)
	assert.False(t, fk.Unique)

	author, ok := post.Relation("author")
	require.True(t, ok)
	assert.Equal(t, "User___posts___Post___author", author.Name)
	assert.Equal(t, "authorId", author.ForeignKey)

	user, _ := s.Model("User")
	posts, _ := user.Relation("posts")
	assert.True(t, posts.Many)
	assert.Equal(t, "authorId", posts.TargetForeignKey)
	_, hasFK := user.Column("postsId")
	assert.False(t, hasFK)

	require.Len(t, s.Junctions, 1)
	assert.Equal(t, &JunctionTable{Name: "_Tag___posts___Post___tags", A: "Post", B: "Tag"}, s.Junctions[0])

	require.Len(t, s.Enums, 1)
	assert.Equal(t, "Post_status", s.Enums[0].Name)
	assert.Equal(t, []string{"draft", "published"}, s.Enums[0].Values)
}

func TestPrisma(t *testing.T) {
	out := blogSchema(t).Prisma("postgresql")

	assert.Contains(t, out, "provider = \"postgresql\"")
	assert.Contains(t, out, "model Post {\n  id String @id @default(uuid())\n  title String?\n  status Post_status?\n  views Int?\n")
	assert.Contains(t, out, `author User? @relation("User___posts___Post___author", fields: [authorId], references: [id])`)
	assert.Contains(t, out, "authorId String?\n")
	assert.Contains(t, out, `posts Post[] @relation("User___posts___Post___author")`)
	assert.Contains(t, out, `tags Tag[] @relation("Tag___posts___Post___tags")`)
	assert.Contains(t, out, "email String? @unique")
	assert.Contains(t, out, "enum Post_status {\n  draft\n  published\n}")
}

func TestSQLPerDialect(t *testing.T) {
	s := blogSchema(t)

	pg := strings.Join(s.SQL(sqlutil.PostgreSQL), ";\n")
	assert.Contains(t, pg, `CREATE TABLE "Post" (`)
	assert.Contains(t, pg, `"id" TEXT NOT NULL PRIMARY KEY`)
	assert.Contains(t, pg, `"status" TEXT CHECK ("status" IN ('draft', 'published'))`)
	assert.Contains(t, pg, `ALTER TABLE "Post" ADD CONSTRAINT "Post_authorId_fkey" FOREIGN KEY ("authorId") REFERENCES "User" ("id") ON DELETE SET NULL`)
	assert.Contains(t, pg, `CREATE TABLE "_Tag___posts___Post___tags"`)

	my := strings.Join(s.SQL(sqlutil.MySQL), ";\n")
	assert.Contains(t, my, "`email` VARCHAR(191) UNIQUE")
	assert.Contains(t, my, "`views` INT")

	lite := s.SQL(sqlutil.SQLite)
	require.Len(t, lite, 4)
	assert.Contains(t, lite[0], `FOREIGN KEY ("authorId") REFERENCES "User" ("id") ON DELETE SET NULL`)
	for _, stmt := range lite {
		assert.NotContains(t, stmt, "ALTER TABLE")
	}
}
