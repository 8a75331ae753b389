package schema

import (
	"testing"
)

const testSchema = `
// Comment line should be ignored
datasource db {
  provider = "postgresql"
  url      = env("DATABASE_URL")
}

generator goclient {
  provider = "go"
  output   = "./dbclient"
}

model User {
	id        String   @id @default(uuid()) @db.Uuid
	email     String   @unique
	name      String
	age       Int?
	createdAt DateTime @default(now())
	posts     Post[]
}

model Post {
	id       Int    @id @default(autoincrement())
	title    String
	author   User   @relation(fields: [authorId], references: [id])
	authorId String @db.Uuid

	@@unique([title, authorId])
	@@index([authorId])
}
`

func TestParse_FullSchema(t *testing.T) {
	sch, err := Parse([]byte(testSchema))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if sch.Datasource.Provider != "postgresql" {
		t.Errorf("Datasource.Provider = %q, want %q", sch.Datasource.Provider, "postgresql")
	}
	if sch.Datasource.URL != `env("DATABASE_URL")` {
		t.Errorf("Datasource.URL = %q, want the env reference kept verbatim", sch.Datasource.URL)
	}

	if len(sch.Generators) != 1 {
		t.Fatalf("expected 1 generator block, got %d", len(sch.Generators))
	}
	if g := sch.Generators[0]; g.Target != "go" || g.Output != "./dbclient" {
		t.Errorf("generator block parsed incorrectly: %+v", g)
	}

	if len(sch.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(sch.Models))
	}

	user := sch.Model("User")
	if user == nil {
		t.Fatal("User model not found")
	}
	if len(user.Fields) != 5 {
		t.Fatalf("expected 5 scalar fields for User, got %d", len(user.Fields))
	}
	if pk := user.PrimaryKey(); pk == nil || pk.Name != "id" || pk.Type != "uuid.UUID" {
		t.Errorf("User primary key parsed incorrectly: %+v", pk)
	}
	if f := user.Field("email"); f == nil || !f.Unique {
		t.Errorf("User.email should be unique: %+v", f)
	}
	if f := user.Field("age"); f == nil || !f.Optional || f.Type != "int" {
		t.Errorf("User.age parsed incorrectly: %+v", f)
	}
	if f := user.Field("createdAt"); f == nil || f.Default == nil || *f.Default != "now()" {
		t.Errorf("User.createdAt default parsed incorrectly: %+v", f)
	}
	if rel := user.Relation("posts"); rel == nil || !rel.List || rel.Model != "Post" {
		t.Errorf("User.posts relation parsed incorrectly: %+v", rel)
	}

	post := sch.Model("Post")
	if post == nil {
		t.Fatal("Post model not found")
	}
	rel := post.Relation("author")
	if rel == nil {
		t.Fatal("Post.author relation not found")
	}
	if rel.Model != "User" || rel.List {
		t.Errorf("Post.author should be a to-one relation to User: %+v", rel)
	}
	if len(rel.Fields) != 1 || rel.Fields[0] != "authorId" {
		t.Errorf("Post.author fields = %v, want [authorId]", rel.Fields)
	}
	if len(rel.References) != 1 || rel.References[0] != "id" {
		t.Errorf("Post.author references = %v, want [id]", rel.References)
	}
	if f := post.Field("id"); f == nil || !f.AutoIncrement {
		t.Errorf("Post.id should be auto-increment: %+v", f)
	}
}

func TestParse_UniqueSelectorSets(t *testing.T) {
	sch, err := Parse([]byte(testSchema))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	user := sch.Model("User")
	if !user.HasUniqueSet([]string{"id"}) {
		t.Error("User should accept id as a selector")
	}
	if !user.HasUniqueSet([]string{"email"}) {
		t.Error("User should accept email as a selector")
	}
	if user.HasUniqueSet([]string{"name"}) {
		t.Error("User should not accept name as a selector")
	}

	post := sch.Model("Post")
	if !post.HasUniqueSet([]string{"title", "authorId"}) {
		t.Error("Post should accept the compound (title, authorId) selector")
	}
	if !post.HasUniqueSet([]string{"authorId", "title"}) {
		t.Error("selector matching should be order-insensitive")
	}
	if post.HasUniqueSet([]string{"title"}) {
		t.Error("Post should not accept title alone as a selector")
	}
	if len(post.Indexes) != 1 || len(post.Indexes[0]) != 1 || post.Indexes[0][0] != "authorId" {
		t.Errorf("Post indexes parsed incorrectly: %v", post.Indexes)
	}
}

func TestParse_Validation(t *testing.T) {
	noID := `
model Thing {
	name String
}
`
	if _, err := Parse([]byte(noID)); err == nil {
		t.Error("expected error for model without @id")
	}

	badRelation := `
model Thing {
	id    Int     @id
	other Missing @relation(fields: [otherId], references: [id])
	otherId Int
}
`
	if _, err := Parse([]byte(badRelation)); err == nil {
		t.Error("expected error for relation to unknown model")
	}

	if _, err := Parse([]byte("nothing here")); err == nil {
		t.Error("expected error for empty schema")
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"id":        "id",
		"authorId":  "author_id",
		"createdAt": "created_at",
		"User":      "user",
		"OrderItem": "order_item",
	}
	for in, want := range cases {
		if got := SnakeCase(in); got != want {
			t.Errorf("SnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
