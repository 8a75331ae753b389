package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillorm/quill/pkg/schema"
)

const stubSchema = `
datasource db {
  provider = "postgresql"
  url      = "postgres://localhost/app"
}

model User {
  id        String   @id @db.Uuid @default(uuid())
  email     String   @unique
  createdAt DateTime @default(now())
  posts     Post[]
}

model Post {
  id       Int   @id @default(autoincrement())
  title    String
  author   User? @relation(fields: [authorId], references: [id])
  authorId String? @db.Uuid

  @@unique([title, authorId])
}
`

func parseStubSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Parse([]byte(stubSchema))
	require.NoError(t, err)
	return sch
}

func introspectEmpty(mock sqlmock.Sqlmock, tables ...string) {
	for range tables {
		mock.ExpectQuery(`SELECT column_name, udt_name`).
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "udt_name"}))
	}
}

func TestEnsureStubs_NewTables(t *testing.T) {
	dir := t.TempDir()
	sch := parseStubSchema(t)

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	introspectEmpty(mock, "user", "post")

	require.NoError(t, EnsureStubs(sqlx.NewDb(mockDB, "sqlmock"), sch, dir, nil))
	require.NoError(t, mock.ExpectationsWereMet())

	userUp, err := os.ReadFile(filepath.Join(dir, "0001_User.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(userUp), `CREATE TABLE "user" (`)
	assert.Contains(t, string(userUp), `"id" UUID PRIMARY KEY DEFAULT uuid_generate_v4()`)
	assert.Contains(t, string(userUp), `"email" TEXT NOT NULL UNIQUE`)
	assert.Contains(t, string(userUp), `"created_at" TIMESTAMP NOT NULL DEFAULT now()`)

	userDown, err := os.ReadFile(filepath.Join(dir, "0001_User.down.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(userDown), `DROP TABLE "user";`)

	postUp, err := os.ReadFile(filepath.Join(dir, "0002_Post.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(postUp), `"id" SERIAL PRIMARY KEY`)
	assert.Contains(t, string(postUp), `UNIQUE ("title", "author_id")`)
	assert.Contains(t, string(postUp), `FOREIGN KEY ("author_id") REFERENCES "user"("id")`)
}

func TestEnsureStubs_AlterTable(t *testing.T) {
	dir := t.TempDir()
	sch := parseStubSchema(t)

	// stubs for both tables already exist, so only diffs are generated
	for _, base := range []string{"0001_User", "0002_Post"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, base+".up.sql"), []byte("-- noop"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, base+".down.sql"), []byte("-- noop"), 0o644))
	}

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	// user table is missing created_at and carries a stale column
	mock.ExpectQuery(`SELECT column_name, udt_name`).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "udt_name"}).
			AddRow("id", "uuid").
			AddRow("email", "text").
			AddRow("legacy", "text"))
	// post table matches the declared fields
	mock.ExpectQuery(`SELECT column_name, udt_name`).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "udt_name"}).
			AddRow("id", "int4").
			AddRow("title", "text").
			AddRow("author_id", "uuid"))

	require.NoError(t, EnsureStubs(sqlx.NewDb(mockDB, "sqlmock"), sch, dir, nil))
	require.NoError(t, mock.ExpectationsWereMet())

	up, err := os.ReadFile(filepath.Join(dir, "0003_User.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(up), `ALTER TABLE "user" ADD COLUMN "created_at" TIMESTAMP DEFAULT now();`)
	assert.Contains(t, string(up), `ALTER TABLE "user" DROP COLUMN "legacy";`)

	// no diff for post, so no fourth stub
	_, err = os.Stat(filepath.Join(dir, "0004_Post.up.sql"))
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureStubs_ImplicitJoinTable(t *testing.T) {
	dir := t.TempDir()
	sch, err := schema.Parse([]byte(`
datasource db {
  provider = "postgresql"
  url      = "postgres://localhost/app"
}

model Post {
  id   Int    @id @default(autoincrement())
  tags Tag[]
}

model Tag {
  id    Int    @id @default(autoincrement())
  posts Post[]
}
`))
	require.NoError(t, err)

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	introspectEmpty(mock, "post", "tag")

	require.NoError(t, EnsureStubs(sqlx.NewDb(mockDB, "sqlmock"), sch, dir, nil))
	require.NoError(t, mock.ExpectationsWereMet())

	up, err := os.ReadFile(filepath.Join(dir, "0003_post_tag.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(up), `CREATE TABLE "post_tag" (`)
	assert.Contains(t, string(up), `PRIMARY KEY ("post_id", "tag_id")`)
	assert.Contains(t, string(up), `REFERENCES "post"("id")`)
	assert.Contains(t, string(up), `REFERENCES "tag"("id")`)

	down, err := os.ReadFile(filepath.Join(dir, "0003_post_tag.down.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(down), `DROP TABLE "post_tag";`)
}
