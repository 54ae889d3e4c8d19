package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core/announcement"
	"github.com/shuleapp/shule/core/attendance"
	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/core/dashboard"
	"github.com/shuleapp/shule/core/fee"
	"github.com/shuleapp/shule/core/grade"
	"github.com/shuleapp/shule/core/student"
	"github.com/shuleapp/shule/core/teacher"
	"github.com/shuleapp/shule/core/user"
	"github.com/shuleapp/shule/testutil"
)

// school is a small populated school: one class, one subject, two students with a parent.
type school struct {
	*testEnv
	admin, recep, parent user.User
	tchr                 teacher.Teacher
	cls                  class.Class
	math                 class.Subject
	alice, bob           student.Student
}

func newSchool(t *testing.T) *school {
	env := newTestEnv(t)
	s := &school{testEnv: env}
	s.admin = env.createUser(t, "Admin", "admin@shule.test", user.RoleAdmin)
	s.recep = env.createUser(t, "Recep", "recep@shule.test", user.RoleReceptionist)
	s.parent = env.createUser(t, "Parent", "parent@shule.test", user.RoleParent)
	s.tchr = testutil.CreateTeacher(t, env.usrRepo, env.tchRepo, "Jane Doe", "jane@shule.test")

	rec := env.do(t, httpTest{
		method: http.MethodPost, path: "/api/classes", token: env.token(t, s.admin),
		body: marshalObj(t, class.NewClass{
			Name:           "Form 1",
			GradeLevel:     1,
			ClassTeacherID: s.tchr.UserID,
			Subjects:       []class.SubjectAssignment{{Name: "Math", TeacherID: s.tchr.UserID}},
		}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	unmarshal(t, rec, &s.cls)
	s.math = class.Subject{ID: s.cls.Subjects[0].SubjectID, Name: s.cls.Subjects[0].SubjectName}

	s.alice = s.createStudent(t, "Alice", "alice@shule.test", "S-001", s.parent.ID)
	s.bob = s.createStudent(t, "Bob", "bob@shule.test", "S-002", "")
	return s
}

func (s *school) createStudent(t *testing.T, name, email, number, parentID string) student.Student {
	t.Helper()
	ns := student.NewStudent{StudentNumber: number, ClassID: s.cls.ID, ParentID: parentID}
	ns.Name, ns.Email, ns.Password = name, email, testPassword

	rec := s.do(t, httpTest{method: http.MethodPost, path: "/api/students", token: s.token(t, s.recep), body: marshalObj(t, ns)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st student.Student
	unmarshal(t, rec, &st)
	return st
}

func Test_studentApi(t *testing.T) {
	s := newSchool(t)

	t.Run("welcome mails", func(t *testing.T) {
		assert.Len(t, s.mailSvc.SentMessages(), 2)
	})
	t.Run("duplicate number", func(t *testing.T) {
		ns := student.NewStudent{StudentNumber: "S-001"}
		ns.Name, ns.Email, ns.Password = "Carl", "carl@shule.test", testPassword
		rec := s.do(t, httpTest{method: http.MethodPost, path: "/api/students", token: s.token(t, s.admin), body: marshalObj(t, ns)})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"student_number":"a student with this number already exists"}`, rec.Body.String())

		_, err := s.usrRepo.GetUserByEmail(context.Background(), "carl@shule.test")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
	t.Run("students cannot list students", func(t *testing.T) {
		rec := s.do(t, httpTest{path: "/api/students", token: s.token(t, s.alice.User)})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("teacher lists the class", func(t *testing.T) {
		rec := s.do(t, httpTest{path: "/api/students?class_id=" + s.cls.ID, token: s.token(t, s.tchr.User)})
		require.Equal(t, http.StatusOK, rec.Code)
		var list []student.Student
		unmarshal(t, rec, &list)
		assert.Len(t, list, 2)
	})
	t.Run("update", func(t *testing.T) {
		rec := s.do(t, httpTest{
			method: http.MethodPut, path: "/api/students/" + s.bob.UserID, token: s.token(t, s.recep),
			body: []byte(`{"medical_info":"asthma"}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var st student.Student
		unmarshal(t, rec, &st)
		assert.Equal(t, "asthma", st.MedicalInfo)
	})
}

func Test_gradeApi(t *testing.T) {
	s := newSchool(t)
	tchrToken := s.token(t, s.tchr.User)

	give := func(st student.Student, marks float64) {
		rec := s.do(t, httpTest{
			method: http.MethodPost, path: "/api/grades", token: tchrToken,
			body: marshalObj(t, grade.NewGrade{
				StudentID: st.UserID, SubjectID: s.math.ID, ExamType: "midterm",
				MarksObtained: marks, TotalMarks: 100, ExamDate: "2026-03-01",
			}),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	give(s.alice, 91)
	give(s.bob, 48)

	query := func(t *testing.T, usr user.User) []grade.Grade {
		rec := s.do(t, httpTest{path: "/api/grades", token: s.token(t, usr)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var grades []grade.Grade
		unmarshal(t, rec, &grades)
		return grades
	}

	t.Run("staff see all", func(t *testing.T) {
		assert.Len(t, query(t, s.admin), 2)
	})
	t.Run("ordering", func(t *testing.T) {
		for ordering, want := range map[string][]float64{
			"marks_obtained":  {48, 91},
			"-marks_obtained": {91, 48},
		} {
			rec := s.do(t, httpTest{path: "/api/grades?ordering=" + ordering, token: s.token(t, s.admin)})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var grades []grade.Grade
			unmarshal(t, rec, &grades)
			require.Len(t, grades, 2)
			assert.Equal(t, want, []float64{grades[0].MarksObtained, grades[1].MarksObtained}, ordering)
		}
	})
	t.Run("students see their own", func(t *testing.T) {
		grades := query(t, s.bob.User)
		require.Len(t, grades, 1)
		assert.Equal(t, 48, grades[0].Percentage)
		assert.Equal(t, "Math", grades[0].SubjectName)
	})
	t.Run("parents see their children", func(t *testing.T) {
		grades := query(t, s.parent)
		require.Len(t, grades, 1)
		assert.Equal(t, s.alice.UserID, grades[0].StudentID)
		assert.Equal(t, s.tchr.UserID, grades[0].TeacherID)
	})
	t.Run("students cannot grade", func(t *testing.T) {
		rec := s.do(t, httpTest{method: http.MethodPost, path: "/api/grades", token: s.token(t, s.alice.User), body: []byte(`{}`)})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("marks above total", func(t *testing.T) {
		rec := s.do(t, httpTest{
			method: http.MethodPost, path: "/api/grades", token: tchrToken,
			body: marshalObj(t, grade.NewGrade{StudentID: s.bob.UserID, SubjectID: s.math.ID, ExamType: "quiz", MarksObtained: 12, TotalMarks: 10}),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("other teachers cannot delete", func(t *testing.T) {
		other := testutil.CreateTeacher(t, s.usrRepo, s.tchRepo, "John Roe", "john@shule.test")
		g := query(t, s.admin)[0]
		rec := s.do(t, httpTest{method: http.MethodDelete, path: "/api/grades/" + g.ID, token: s.token(t, other.User)})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(t, httpTest{method: http.MethodDelete, path: "/api/grades/" + g.ID, token: tchrToken})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func Test_attendanceApi(t *testing.T) {
	s := newSchool(t)
	tchrToken := s.token(t, s.tchr.User)

	mark := func(statuses ...string) *attendance.MarkClass {
		mc := &attendance.MarkClass{ClassID: s.cls.ID, Date: "2026-03-02"}
		for i, st := range []student.Student{s.alice, s.bob} {
			mc.Records = append(mc.Records, attendance.Mark{StudentID: st.UserID, Status: statuses[i]})
		}
		return mc
	}

	rec := s.do(t, httpTest{method: http.MethodPost, path: "/api/attendance", token: tchrToken, body: marshalObj(t, mark("present", "absent"))})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// marking again replaces the previous marks
	rec = s.do(t, httpTest{method: http.MethodPost, path: "/api/attendance", token: tchrToken, body: marshalObj(t, mark("present", "late"))})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, httpTest{path: "/api/attendance?date=2026-03-02", token: s.token(t, s.admin)})
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []attendance.Record
	unmarshal(t, rec, &recs)
	assert.Len(t, recs, 2)

	rec = s.do(t, httpTest{path: "/api/attendance", token: s.token(t, s.bob.User)})
	recs = nil
	unmarshal(t, rec, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.StatusLate, recs[0].Status)

	rec = s.do(t, httpTest{path: "/api/attendance/summary?class_id=" + s.cls.ID, token: s.token(t, s.recep)})
	require.Equal(t, http.StatusOK, rec.Code)
	var sum attendance.Summary
	unmarshal(t, rec, &sum)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 50, sum.Rate)

	rec = s.do(t, httpTest{method: http.MethodPost, path: "/api/attendance", token: tchrToken, body: marshalObj(t, mark("present", "sleeping"))})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_feeApi(t *testing.T) {
	s := newSchool(t)
	recepToken := s.token(t, s.recep)

	create := func(st student.Student, amount float64) fee.Record {
		rec := s.do(t, httpTest{
			method: http.MethodPost, path: "/api/fees", token: recepToken,
			body: marshalObj(t, fee.NewRecord{StudentID: st.UserID, Amount: amount, DueDate: "2026-01-31", FeeType: "tuition", AcademicYear: "2026"}),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var r fee.Record
		unmarshal(t, rec, &r)
		return r
	}
	aliceFee := create(s.alice, 500)
	create(s.bob, 120)

	rec := s.do(t, httpTest{
		method: http.MethodPut, path: "/api/fees/" + aliceFee.ID, token: recepToken,
		body: []byte(`{"status":"paid","paid_date":"2026-01-15"}`),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, httpTest{path: "/api/fees/totals", token: s.token(t, s.admin)})
	require.Equal(t, http.StatusOK, rec.Code)
	var totals fee.Totals
	unmarshal(t, rec, &totals)
	assert.Equal(t, fee.Totals{Total: 620, Collected: 500, Pending: 120}, totals)

	// parents only see their children's fees
	rec = s.do(t, httpTest{path: "/api/fees", token: s.token(t, s.parent)})
	var recs []fee.Record
	unmarshal(t, rec, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, aliceFee.ID, recs[0].ID)

	t.Run("ordering", func(t *testing.T) {
		tests := []struct {
			ordering string
			want     []float64
		}{
			{ordering: "amount", want: []float64{120, 500}},
			{ordering: "-amount", want: []float64{500, 120}},
			{ordering: "status,-amount", want: []float64{500, 120}}, // paid < pending
		}
		for _, tt := range tests {
			rec := s.do(t, httpTest{path: "/api/fees?ordering=" + tt.ordering, token: s.token(t, s.admin)})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var recs []fee.Record
			unmarshal(t, rec, &recs)
			require.Len(t, recs, 2)
			assert.Equal(t, tt.want, []float64{recs[0].Amount, recs[1].Amount}, tt.ordering)
		}

		// unknown fields are ignored
		rec := s.do(t, httpTest{path: "/api/fees?ordering=student_id,-nope", token: s.token(t, s.admin)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
	t.Run("bad status", func(t *testing.T) {
		rec := s.do(t, httpTest{method: http.MethodPut, path: "/api/fees/" + aliceFee.ID, token: recepToken, body: []byte(`{"status":"waived"}`)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("parents cannot create", func(t *testing.T) {
		rec := s.do(t, httpTest{method: http.MethodPost, path: "/api/fees", token: s.token(t, s.parent), body: []byte(`{}`)})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("export", func(t *testing.T) {
		rec := s.do(t, httpTest{path: "/api/fees/export", token: recepToken})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.NotEmpty(t, rec.Body.Bytes())
	})
}

func Test_announcementApi(t *testing.T) {
	s := newSchool(t)
	s.mailSvc.Reset()
	adminToken := s.token(t, s.admin)

	post := func(na announcement.NewAnnouncement) announcement.Announcement {
		rec := s.do(t, httpTest{method: http.MethodPost, path: "/api/announcements", token: adminToken, body: marshalObj(t, na)})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var a announcement.Announcement
		unmarshal(t, rec, &a)
		return a
	}
	post(announcement.NewAnnouncement{Title: "Sports day", Content: "Friday"})
	urgent := post(announcement.NewAnnouncement{
		Title: "Closed", Content: "Storm", IsUrgent: true, TargetRoles: []string{user.RoleParent},
	})

	sent := s.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Bcc, 1)
	assert.Equal(t, s.parent.Email, sent[0].Bcc[0].Address)

	count := func(usr user.User) int {
		rec := s.do(t, httpTest{path: "/api/announcements", token: s.token(t, usr)})
		require.Equal(t, http.StatusOK, rec.Code)
		var list []announcement.Announcement
		unmarshal(t, rec, &list)
		return len(list)
	}
	assert.Equal(t, 2, count(s.parent))
	assert.Equal(t, 1, count(s.tchr.User))

	rec := s.do(t, httpTest{method: http.MethodDelete, path: "/api/announcements/" + urgent.ID, token: s.token(t, s.recep)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, httpTest{method: http.MethodDelete, path: "/api/announcements/" + urgent.ID, token: adminToken})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, count(s.parent))

	rec = s.do(t, httpTest{method: http.MethodPost, path: "/api/announcements", token: adminToken, body: []byte(`{"title":"x","content":"y","target_roles":["janitor"]}`)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_dashboardApi(t *testing.T) {
	s := newSchool(t)

	stats := func(usr user.User) dashboard.Stats {
		rec := s.do(t, httpTest{path: "/api/dashboard", token: s.token(t, usr)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var st dashboard.Stats
		unmarshal(t, rec, &st)
		return st
	}

	admin := stats(s.admin)
	require.NotNil(t, admin.Students)
	assert.Equal(t, 2, *admin.Students)
	require.NotNil(t, admin.Teachers)
	assert.Equal(t, 1, *admin.Teachers)
	require.NotNil(t, admin.Classes)
	assert.Equal(t, 1, *admin.Classes)

	tchr := stats(s.tchr.User)
	require.NotNil(t, tchr.Classes)
	assert.Equal(t, 1, *tchr.Classes)
	assert.Len(t, tchr.SubjectLinks, 1)

	parent := stats(s.parent)
	require.NotNil(t, parent.Children)
	assert.Equal(t, 1, *parent.Children)
	assert.Nil(t, parent.Students)
}

func Test_chatApi_disabled(t *testing.T) {
	env := newTestEnv(t)
	usr := env.createUser(t, "Hero", "hero@shule.test", user.RoleStudent)
	token := env.token(t, usr)

	rec := env.do(t, httpTest{method: http.MethodPost, path: "/api/chat", token: token, body: []byte(`{"message":"  "}`)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httpTest{method: http.MethodPost, path: "/api/chat", token: token, body: []byte(`{"message":"When is the exam?"}`)})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"error"`)
}
