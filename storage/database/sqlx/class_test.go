package sqlxrepos_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/storage/database"
	sqlxrepos "github.com/shuleapp/shule/storage/database/sqlx"
	"github.com/shuleapp/shule/testutil"
)

// openTestDB connects to the database configured by the TEST_DATABASE_* env vars
// and empties it. The test is skipped when TEST_DATABASE_HOST is not set.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() || os.Getenv("TEST_DATABASE_HOST") == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()

	require.NoError(t, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	_, err = db.ExecContext(ctx, "TRUNCATE users, classes, subjects CASCADE")
	require.NoError(t, err)
	return db
}

func createLink(t *testing.T, ctx context.Context, repo class.Repository, exec core.DBExecutor) class.Link {
	t.Helper()
	cls, err := repo.CreateClass(ctx, class.Class{Name: "Form 1", GradeLevel: 1}, exec)
	require.NoError(t, err)
	subj, err := repo.CreateSubject(ctx, class.Subject{Name: "Math " + uuid.NewString()[:8]}, exec)
	require.NoError(t, err)
	link, err := repo.CreateLink(ctx, class.Link{ClassID: cls.ID, SubjectID: subj.ID}, exec)
	require.NoError(t, err)
	return link
}

func TestClassRepository_SetLinkTeacher(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewClassRepository(db)
	tchr := testutil.CreateTeacher(t, sqlxrepos.NewUserRepository(db), sqlxrepos.NewTeacherRepository(db), "Jane Doe", "jane@shule.test")

	t.Run("failure keeps the transaction usable", func(t *testing.T) {
		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		link := createLink(t, ctx, repo, tx)

		// unknown teacher: FK violation
		assert.Error(t, repo.SetLinkTeacher(ctx, link.ID, uuid.NewString(), tx))
		// invalid id never reaches the database
		assert.Error(t, repo.SetLinkTeacher(ctx, link.ID, "not-a-uuid", tx))

		require.NoError(t, repo.SetLinkTeacher(ctx, link.ID, tchr.UserID, tx))
		links, err := repo.ListLinks(ctx, link.ClassID, tx)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, tchr.UserID, links[0].TeacherID)

		require.NoError(t, tx.Commit())

		links, err = repo.ListLinks(ctx, link.ClassID)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, tchr.UserID, links[0].TeacherID)
	})

	t.Run("outside a transaction", func(t *testing.T) {
		link := createLink(t, ctx, repo, nil)
		assert.Error(t, repo.SetLinkTeacher(ctx, link.ID, uuid.NewString()))
		require.NoError(t, repo.SetLinkTeacher(ctx, link.ID, tchr.UserID))

		links, err := repo.ListLinksByTeacher(ctx, tchr.UserID)
		require.NoError(t, err)
		assert.Len(t, links, 2)
	})
}

func TestClassRepository_SupportsLinkTeacher(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cached := sqlxrepos.NewClassRepository(db)
	ok, err := cached.SupportsLinkTeacher(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// drop class_subjects.teacher_id
	require.NoError(t, goose.DownToContext(ctx, db.DB, "migrations", 1))
	t.Cleanup(func() { require.NoError(t, database.Migrate(ctx, db)) })

	ok, err = cached.SupportsLinkTeacher(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "answer is kept for the life of the repository")

	repo := sqlxrepos.NewClassRepository(db)
	ok, err = repo.SupportsLinkTeacher(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// links still work without the column
	link := createLink(t, ctx, repo, nil)
	links, err := repo.ListLinks(ctx, link.ClassID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Empty(t, links[0].TeacherID)

	links, err = repo.ListLinksByTeacher(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, links)
}
