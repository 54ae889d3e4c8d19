package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/announcement"
	"github.com/shuleapp/shule/core/attendance"
	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/core/fee"
	"github.com/shuleapp/shule/core/grade"
	"github.com/shuleapp/shule/core/student"
	"github.com/shuleapp/shule/core/teacher"
	"github.com/shuleapp/shule/core/user"
)

// DB is a non-transactional in-memory store. Every repository of this package shares one DB.
type DB struct {
	mutex sync.RWMutex

	users         map[string]*user.User
	teachers      map[string]*teacher.Teacher
	students      map[string]*student.Student
	classes       map[string]*class.Class
	subjects      map[string]*class.Subject
	links         map[string]*class.Link
	grades        map[string]*grade.Grade
	attendance    map[string]*attendance.Record
	fees          map[string]*fee.Record
	announcements map[string]*announcement.Announcement

	// LinkTeacher mimics a schema where class links have a teacher column.
	LinkTeacher bool
}

func Open() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		teachers:      make(map[string]*teacher.Teacher),
		students:      make(map[string]*student.Student),
		classes:       make(map[string]*class.Class),
		subjects:      make(map[string]*class.Subject),
		links:         make(map[string]*class.Link),
		grades:        make(map[string]*grade.Grade),
		attendance:    make(map[string]*attendance.Record),
		fees:          make(map[string]*fee.Record),
		announcements: make(map[string]*announcement.Announcement),
		LinkTeacher:   true,
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortByName[T any](items []T, name func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(name(items[i])) < strings.ToLower(name(items[j]))
	})
}

// applyOrdering sorts items by ordering, the first entry being the primary key.
// less compares two items on a single field.
func applyOrdering[T any](items []T, ordering []core.DBOrdering, less func(a, b T, field string) bool) {
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		sort.SliceStable(items, func(a, b int) bool {
			if ord.Ascending {
				return less(items[a], items[b], ord.Field)
			}
			return less(items[b], items[a], ord.Field)
		})
	}
}

// userOrZero must be called with the lock held.
func (db *DB) userOrZero(id string) user.User {
	if u, ok := db.users[id]; ok {
		return *u
	}
	return user.User{}
}
