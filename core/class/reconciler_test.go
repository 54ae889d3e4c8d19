package class_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/storage/database/inmem"
	"github.com/shuleapp/shule/testutil"
)

var errBoom = errors.New("boom")

// failingRepo makes the named repository methods fail with errBoom.
type failingRepo struct {
	class.Repository
	failOn map[string]bool
}

func (r *failingRepo) fail(method string) error {
	if r.failOn[method] {
		return errBoom
	}
	return nil
}

func (r *failingRepo) ListLinks(ctx context.Context, classID string, exec ...core.DBExecutor) ([]class.Link, error) {
	if err := r.fail("ListLinks"); err != nil {
		return nil, err
	}
	return r.Repository.ListLinks(ctx, classID, exec...)
}

func (r *failingRepo) GetSubjectByName(ctx context.Context, name string, exec ...core.DBExecutor) (class.Subject, error) {
	if err := r.fail("GetSubjectByName"); err != nil {
		return class.Subject{}, err
	}
	return r.Repository.GetSubjectByName(ctx, name, exec...)
}

func (r *failingRepo) CreateSubject(ctx context.Context, subj class.Subject, exec ...core.DBExecutor) (class.Subject, error) {
	if err := r.fail("CreateSubject"); err != nil {
		return class.Subject{}, err
	}
	return r.Repository.CreateSubject(ctx, subj, exec...)
}

func (r *failingRepo) CreateLink(ctx context.Context, link class.Link, exec ...core.DBExecutor) (class.Link, error) {
	if err := r.fail("CreateLink"); err != nil {
		return class.Link{}, err
	}
	return r.Repository.CreateLink(ctx, link, exec...)
}

func (r *failingRepo) SetLinkTeacher(ctx context.Context, linkID, teacherID string, exec ...core.DBExecutor) error {
	if err := r.fail("SetLinkTeacher"); err != nil {
		return err
	}
	return r.Repository.SetLinkTeacher(ctx, linkID, teacherID, exec...)
}

func (r *failingRepo) DeleteLink(ctx context.Context, linkID string, exec ...core.DBExecutor) error {
	if err := r.fail("DeleteLink"); err != nil {
		return err
	}
	return r.Repository.DeleteLink(ctx, linkID, exec...)
}

type fixture struct {
	db         *inmemdb.DB
	repo       *failingRepo
	logger     *testutil.Logger
	reconciler *class.Reconciler
	classID    string
	t1, t2, t3 string
}

func setup(t *testing.T) *fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	tchrRepo := inmemdb.NewTeacherRepository(db)

	f := &fixture{
		db:     db,
		repo:   &failingRepo{Repository: inmemdb.NewClassRepository(db), failOn: map[string]bool{}},
		logger: &testutil.Logger{},
		t1:     testutil.CreateTeacher(t, usrRepo, tchrRepo, "Teacher One", "one@shule.test").UserID,
		t2:     testutil.CreateTeacher(t, usrRepo, tchrRepo, "Teacher Two", "two@shule.test").UserID,
		t3:     testutil.CreateTeacher(t, usrRepo, tchrRepo, "Teacher Three", "three@shule.test").UserID,
	}
	f.reconciler = class.NewReconciler(f.repo, f.logger)

	cls, err := f.repo.CreateClass(context.Background(), class.Class{Name: "Form 1", GradeLevel: 1})
	require.NoError(t, err)
	f.classID = cls.ID
	return f
}

func (f *fixture) reconcile(desired ...class.SubjectAssignment) error {
	return f.reconciler.Reconcile(context.Background(), f.classID, desired, class.ReconcileOptions{Prune: true})
}

// links returns the links of the class as {subject name: teacher id}.
func (f *fixture) links(t *testing.T) map[string]string {
	links, err := f.repo.ListLinks(context.Background(), f.classID)
	require.NoError(t, err)
	res := make(map[string]string, len(links))
	for _, l := range links {
		res[l.SubjectName] = l.TeacherID
	}
	return res
}

func (f *fixture) subjects(t *testing.T) []string {
	subjects, err := f.repo.QuerySubjects(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(subjects))
	for _, s := range subjects {
		names = append(names, s.Name)
	}
	return names
}

func TestReconcile(t *testing.T) {
	t.Run("creates links and subjects", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(
			class.SubjectAssignment{Name: "Math", TeacherID: f.t1},
			class.SubjectAssignment{Name: " Science ", TeacherID: f.t2},
		))
		assert.Equal(t, map[string]string{"Math": f.t1, "Science": f.t2}, f.links(t))
		assert.ElementsMatch(t, []string{"Math", "Science"}, f.subjects(t))
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := setup(t)
		desired := []class.SubjectAssignment{{Name: "Math", TeacherID: f.t1}, {Name: "History"}}
		require.NoError(t, f.reconcile(desired...))
		first := f.links(t)
		firstLinks, err := f.repo.ListLinks(context.Background(), f.classID)
		require.NoError(t, err)

		require.NoError(t, f.reconcile(desired...))
		assert.Equal(t, first, f.links(t))
		secondLinks, err := f.repo.ListLinks(context.Background(), f.classID)
		require.NoError(t, err)
		assert.ElementsMatch(t, firstLinks, secondLinks)
		assert.Len(t, f.subjects(t), 2)
	})

	t.Run("matches existing subjects in any casing", func(t *testing.T) {
		f := setup(t)
		_, err := f.repo.CreateSubject(context.Background(), class.Subject{Name: "Mathematics"})
		require.NoError(t, err)

		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "MATHEMATICS", TeacherID: f.t1}))
		assert.Equal(t, map[string]string{"Mathematics": f.t1}, f.links(t))
		assert.Equal(t, []string{"Mathematics"}, f.subjects(t))
	})

	t.Run("updates teacher in place and prunes the rest", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(
			class.SubjectAssignment{Name: "Math", TeacherID: f.t1},
			class.SubjectAssignment{Name: "Science", TeacherID: f.t2},
		))
		before, err := f.repo.ListLinks(context.Background(), f.classID)
		require.NoError(t, err)

		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "Math", TeacherID: f.t3}))
		assert.Equal(t, map[string]string{"Math": f.t3}, f.links(t))
		assert.ElementsMatch(t, []string{"Math", "Science"}, f.subjects(t), "no subject is created or removed")

		after, err := f.repo.ListLinks(context.Background(), f.classID)
		require.NoError(t, err)
		require.Len(t, after, 1)
		for _, l := range before {
			if l.SubjectName == "Math" {
				assert.Equal(t, l.ID, after[0].ID, "the link is updated, not recreated")
			}
		}
	})

	t.Run("link without teacher", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "History"}))
		assert.Equal(t, map[string]string{"History": ""}, f.links(t))
		assert.Equal(t, []string{"History"}, f.subjects(t))
	})

	t.Run("entry without teacher keeps the current one", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "Math", TeacherID: f.t1}))
		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "math"}))
		assert.Equal(t, map[string]string{"Math": f.t1}, f.links(t))
	})

	t.Run("duplicates collapse, last teacher wins", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(
			class.SubjectAssignment{Name: "Math", TeacherID: f.t1},
			class.SubjectAssignment{Name: "math", TeacherID: f.t2},
		))
		assert.Equal(t, map[string]string{"Math": f.t2}, f.links(t))
		assert.Equal(t, []string{"Math"}, f.subjects(t))
	})

	t.Run("empty names are skipped", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(
			class.SubjectAssignment{Name: "", TeacherID: f.t1},
			class.SubjectAssignment{Name: "   ", TeacherID: f.t2},
		))
		assert.Empty(t, f.links(t))
		assert.Empty(t, f.subjects(t))
	})

	t.Run("empty list removes every link", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "Math"}, class.SubjectAssignment{Name: "Art"}))
		require.NoError(t, f.reconcile())
		assert.Empty(t, f.links(t))
		assert.Len(t, f.subjects(t), 2, "subjects are shared and stay")
	})

	t.Run("additive mode keeps extra links", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "Math", TeacherID: f.t1}))
		err := f.reconciler.Reconcile(context.Background(), f.classID,
			[]class.SubjectAssignment{{Name: "Art", TeacherID: f.t2}}, class.ReconcileOptions{Prune: false})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Math": f.t1, "Art": f.t2}, f.links(t))
	})
}

func TestReconcile_teacherIsBestEffort(t *testing.T) {
	t.Run("failed teacher update is logged and swallowed", func(t *testing.T) {
		f := setup(t)
		f.repo.failOn["SetLinkTeacher"] = true

		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "Math", TeacherID: f.t1}))
		assert.Equal(t, map[string]string{"Math": ""}, f.links(t))
		assert.Equal(t, 1, f.logger.Count("warning"), f.logger.String())
	})

	t.Run("unknown teacher is logged and swallowed", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.reconcile(class.SubjectAssignment{Name: "Math", TeacherID: "not-a-teacher"}))
		assert.Equal(t, map[string]string{"Math": ""}, f.links(t))
		assert.Equal(t, 1, f.logger.Count("warning"), f.logger.String())
	})

	t.Run("schema without teacher column", func(t *testing.T) {
		f := setup(t)
		f.db.LinkTeacher = false

		require.NoError(t, f.reconcile(
			class.SubjectAssignment{Name: "Math", TeacherID: f.t1},
			class.SubjectAssignment{Name: "Art", TeacherID: f.t2},
		))
		assert.Equal(t, map[string]string{"Math": "", "Art": ""}, f.links(t))
		assert.Equal(t, 1, f.logger.Count("warning"), "one warning per reconciliation: %s", f.logger.String())
	})
}

func TestReconcile_persistenceErrors(t *testing.T) {
	tests := []struct {
		name     string
		failOn   string
		seed     []class.SubjectAssignment
		wantStep string
	}{
		{name: "listing links", failOn: "ListLinks", wantStep: class.StepLinkLookup},
		{name: "looking up subject", failOn: "GetSubjectByName", wantStep: class.StepSubjectLookup},
		{name: "creating subject", failOn: "CreateSubject", wantStep: class.StepSubjectCreation},
		{name: "creating link", failOn: "CreateLink", wantStep: class.StepLinkCreation},
		{
			name:     "deleting link",
			failOn:   "DeleteLink",
			seed:     []class.SubjectAssignment{{Name: "Latin"}},
			wantStep: class.StepLinkDeletion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.seed != nil {
				require.NoError(t, f.reconcile(tt.seed...))
			}
			f.repo.failOn[tt.failOn] = true

			err := f.reconcile(class.SubjectAssignment{Name: "Math", TeacherID: f.t1})
			require.Error(t, err)
			assert.True(t, core.IsPersistence(err))

			var perr *core.PersistenceError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantStep, perr.Step)
			assert.Equal(t, errBoom, perr.Err)
			assert.Equal(t, tt.wantStep+": boom", err.Error())
		})
	}
}

func TestReconcile_partialApplication(t *testing.T) {
	f := setup(t)
	_, err := f.repo.CreateSubject(context.Background(), class.Subject{Name: "Math"})
	require.NoError(t, err)
	f.repo.failOn["CreateSubject"] = true

	err = f.reconcile(
		class.SubjectAssignment{Name: "Math", TeacherID: f.t1},
		class.SubjectAssignment{Name: "Chemistry", TeacherID: f.t2},
	)
	require.Error(t, err)

	// the in-memory store has no transactions: the first entry stays applied
	assert.Equal(t, map[string]string{"Math": f.t1}, f.links(t))

	// retrying once the store recovers completes the reconciliation
	f.repo.failOn["CreateSubject"] = false
	require.NoError(t, f.reconcile(
		class.SubjectAssignment{Name: "Math", TeacherID: f.t1},
		class.SubjectAssignment{Name: "Chemistry", TeacherID: f.t2},
	))
	assert.Equal(t, map[string]string{"Math": f.t1, "Chemistry": f.t2}, f.links(t))
}
