package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
)

const dateLayout = "2006-01-02"

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// nullDate parses a YYYY-MM-DD date; empty or invalid dates are NULL.
func nullDate(s string) null.Time {
	if s == "" {
		return null.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

func dateString(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(dateLayout)
}

func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		list = append(list, ord.String())
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// qualified prefixes the ordering fields with a table alias.
func qualified(alias string, ordering []core.DBOrdering) []core.DBOrdering {
	res := make([]core.DBOrdering, len(ordering))
	for i, ord := range ordering {
		res[i] = core.DBOrdering{Field: alias + "." + ord.Field, Ascending: ord.Ascending}
	}
	return res
}

// where collects SQL conditions written with "?" bindvars and their args.
// Slice args are expanded by sqlx.In and the query is rebound for the driver by bind.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// bind expands IN clauses of q and rebinds it for exec's driver.
func bind(exec core.DBExecutor, q string, args []interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "binding query")
	}
	return exec.Rebind(q), args, nil
}
