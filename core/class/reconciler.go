package class

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
)

// steps reported by PersistenceError
const (
	StepSubjectLookup   = "subject lookup"
	StepSubjectCreation = "subject creation"
	StepLinkLookup      = "link lookup"
	StepLinkCreation    = "link creation"
	StepLinkUpdate      = "link update"
	StepLinkDeletion    = "link deletion"
)

// ReconcileOptions tunes a reconciliation. With Prune unset, links missing from
// the desired list are kept.
type ReconcileOptions struct {
	Prune bool
}

// Reconciler makes the persisted subject links of a class match a desired list,
// updating links in place instead of deleting and recreating them.
type Reconciler struct {
	repo   Repository
	logger core.Logger
}

func NewReconciler(repo Repository, logger core.Logger) *Reconciler {
	return &Reconciler{repo: repo, logger: logger}
}

type desiredEntry struct {
	name      string
	teacherID string
}

// collapse trims names, drops empty ones and merges entries whose names differ only
// in case: the first spelling names the subject and the last supplied teacher wins.
func collapse(desired []SubjectAssignment) ([]string, map[string]*desiredEntry) {
	keys := make([]string, 0, len(desired))
	entries := make(map[string]*desiredEntry, len(desired))
	for _, d := range desired {
		key := normalizeName(d.Name)
		if key == "" {
			continue
		}
		teacherID := core.CleanString(d.TeacherID)
		if e, ok := entries[key]; ok {
			if teacherID != "" {
				e.teacherID = teacherID
			}
			continue
		}
		keys = append(keys, key)
		entries[key] = &desiredEntry{name: core.CleanString(d.Name), teacherID: teacherID}
	}
	return keys, entries
}

// Reconcile applies desired to the links of classID. Any store failure is returned
// as a *core.PersistenceError naming the step; steps applied before it stay applied
// unless exec is a transaction that the caller rolls back.
func (r *Reconciler) Reconcile(ctx context.Context, classID string, desired []SubjectAssignment, opts ReconcileOptions, exec ...core.DBExecutor) error {
	keys, entries := collapse(desired)

	current, err := r.repo.ListLinks(ctx, classID, exec...)
	if err != nil {
		return core.NewPersistenceError(StepLinkLookup, err)
	}
	links := make(map[string]Link, len(current))
	for _, l := range current {
		links[normalizeName(l.SubjectName)] = l
	}

	withTeacher := r.supportsTeacher(ctx, entries, exec)

	for _, key := range keys {
		entry := entries[key]

		if link, ok := links[key]; ok {
			if withTeacher && entry.teacherID != "" && entry.teacherID != link.TeacherID {
				r.setTeacher(ctx, link, entry.teacherID, exec)
			}
			continue
		}

		subj, err := r.findOrCreateSubject(ctx, entry.name, exec)
		if err != nil {
			return err
		}

		link, err := r.repo.CreateLink(ctx, Link{ClassID: classID, SubjectID: subj.ID, SubjectName: subj.Name}, exec...)
		if err != nil {
			return core.NewPersistenceError(StepLinkCreation, err)
		}
		links[key] = link

		if withTeacher && entry.teacherID != "" {
			r.setTeacher(ctx, link, entry.teacherID, exec)
		}
	}

	if !opts.Prune {
		return nil
	}
	for key, link := range links {
		if _, ok := entries[key]; ok {
			continue
		}
		if err = r.repo.DeleteLink(ctx, link.ID, exec...); err != nil {
			return core.NewPersistenceError(StepLinkDeletion, err)
		}
	}
	return nil
}

func (r *Reconciler) findOrCreateSubject(ctx context.Context, name string, exec []core.DBExecutor) (Subject, error) {
	subj, err := r.repo.GetSubjectByName(ctx, name, exec...)
	if err == nil {
		return subj, nil
	}
	if errors.Cause(err) != ErrSubjectNotFound {
		return Subject{}, core.NewPersistenceError(StepSubjectLookup, err)
	}

	subj, err = r.repo.CreateSubject(ctx, Subject{Name: name}, exec...)
	if err != nil {
		return Subject{}, core.NewPersistenceError(StepSubjectCreation, err)
	}
	return subj, nil
}

// supportsTeacher is only asked when some entry carries a teacher.
func (r *Reconciler) supportsTeacher(ctx context.Context, entries map[string]*desiredEntry, exec []core.DBExecutor) bool {
	var wanted bool
	for _, e := range entries {
		if e.teacherID != "" {
			wanted = true
			break
		}
	}
	if !wanted {
		return false
	}

	ok, err := r.repo.SupportsLinkTeacher(ctx, exec...)
	if err != nil {
		r.logger.Warn("class.Reconciler: checking link teacher support", err)
		return false
	}
	if !ok {
		r.logger.Warn("class.Reconciler: class_subjects has no teacher column, teacher ids ignored")
	}
	return ok
}

// setTeacher is best-effort: a failed teacher update leaves the link in place.
func (r *Reconciler) setTeacher(ctx context.Context, link Link, teacherID string, exec []core.DBExecutor) {
	if err := r.repo.SetLinkTeacher(ctx, link.ID, teacherID, exec...); err != nil {
		r.logger.Warn("class.Reconciler: "+StepLinkUpdate, core.NewPersistenceError(StepLinkUpdate, err), map[string]interface{}{
			"link_id":    link.ID,
			"teacher_id": teacherID,
		})
	}
}
