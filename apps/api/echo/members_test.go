package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myschool/backend/apps/api/echo"
	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/testutil"
)

func decodeUsers(t *testing.T, body []byte) []string {
	t.Helper()
	var users []user.User
	if err := json.Unmarshal(body, &users); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", body, err)
	}
	emails := make([]string, 0, len(users))
	for _, usr := range users {
		emails = append(emails, usr.Email)
	}
	return emails
}

func Test_memberApi_create(t *testing.T) {
	_, app := setup(t)
	yy := time.Now().Format("06")

	newMember := func(email string) payload {
		return payload{
			"firstName":     "Minerva",
			"lastName":      "McGonagall",
			"email":         email,
			"contactNumber": "08012345678",
		}
	}

	t.Run("no password needed", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/api/teachers", marchallObj(t, newMember("minerva@school.com")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		resp := decodeSuccess(t, rec, &usr)
		assert.Equal(t, "Teacher added successfully", resp.Message)
		assert.False(t, resp.Error)
		assert.Equal(t, user.RoleTeacher, usr.Role)
		assert.NotEmpty(t, usr.ID)
	})

	t.Run("route decides the user type", func(t *testing.T) {
		body := with(newMember("pomona@school.com"), "userType", "Student")
		rec := serve(app, http.MethodPost, "/api/admins", marchallObj(t, body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		decodeSuccess(t, rec, &usr)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.False(t, usr.IsStudent())
	})

	t.Run("students get roll numbers", func(t *testing.T) {
		for i, want := range []string{yy + "0822-001", yy + "0822-002"} {
			body := with(with(newMember(string(rune('a'+i))+"@school.com"), "classLevel", 8), "classType", "Arts")
			rec := serve(app, http.MethodPost, "/api/students", marchallObj(t, body))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			var usr user.User
			resp := decodeSuccess(t, rec, &usr)
			assert.Equal(t, "Student added successfully", resp.Message)
			require.True(t, usr.IsStudent())
			assert.Equal(t, want, usr.RollNumber)
			assert.Equal(t, classroom.Arts, usr.ClassType)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/api/teachers", marchallObj(t, newMember("Minerva@school.com")))
		checkError(t, rec, http.StatusConflict, echoapi.ErrorResponse{Error: user.ErrEmailExists.Error(), Code: user.CodeDuplicateEmail})
	})

	t.Run("student without class", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/api/students", marchallObj(t, newMember("nolevel@school.com")))
		checkError(t, rec, http.StatusBadRequest, echoapi.ErrorResponse{Error: user.ErrMissingField.Error(), Code: user.CodeMissingField})
	})

	t.Run("short optional password", func(t *testing.T) {
		body := with(newMember("short@school.com"), "password", "123")
		rec := serve(app, http.MethodPost, "/api/parents", marchallObj(t, body))
		checkError(t, rec, http.StatusBadRequest, echoapi.ErrorResponse{Error: user.ErrPasswordTooShort.Error(), Code: user.CodePasswordTooShort})
	})
}

func Test_memberApi_query(t *testing.T) {
	env, app := setup(t)

	now := time.Now()
	enr := func(rn string, level int, typ classroom.ClassType) *user.Enrollment {
		return &user.Enrollment{RollNumber: rn, ClassLevel: level, ClassType: typ}
	}
	testutil.CreateUser(t, env.Repo, user.RoleStudent, "Harry", "Potter", "harry@school.com", "", enr("250911-001", 9, classroom.Science), now)
	testutil.CreateUser(t, env.Repo, user.RoleStudent, "Hermione", "Granger", "hermione@school.com", "", enr("250911-002", 9, classroom.Science), now.Add(time.Hour))
	testutil.CreateUser(t, env.Repo, user.RoleStudent, "Ron", "Weasley", "ron@school.com", "", enr("250922-001", 9, classroom.Arts), now.Add(2*time.Hour))
	testutil.CreateUser(t, env.Repo, user.RoleStudent, "Ginny", "Weasley", "ginny@school.com", "", enr("250500-001", 5, classroom.General), now.Add(3*time.Hour))
	testutil.CreateUser(t, env.Repo, user.RoleTeacher, "Severus", "Snape", "severus@school.com", "", nil)

	path := func(coll, search, ordering string, level int, typ string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if level != 0 {
			v.Add("classLevel", strconv.Itoa(level))
		}
		if typ != "" {
			v.Add("classType", typ)
		}
		return "/api/" + coll + "?" + v.Encode()
	}

	tests := []struct {
		name       string
		path       string
		wantEmails []string
	}{
		{"all, insertion order", path("students", "", "", 0, ""),
			[]string{"harry@school.com", "hermione@school.com", "ron@school.com", "ginny@school.com"}},
		{"other collection", path("teachers", "", "", 0, ""), []string{"severus@school.com"}},
		{"empty collection", path("parents", "", "", 0, ""), []string{}},
		{"search", path("students", "WEASLEY", "", 0, ""), []string{"ron@school.com", "ginny@school.com"}},
		{"class level", path("students", "", "", 9, ""),
			[]string{"harry@school.com", "hermione@school.com", "ron@school.com"}},
		{"class level and type", path("students", "", "", 9, "11"), []string{"harry@school.com", "hermione@school.com"}},
		{"ordering", path("students", "", "lastName,-firstName", 0, ""),
			[]string{"hermione@school.com", "harry@school.com", "ron@school.com", "ginny@school.com"}},
		{"ordering by roll number desc", path("students", "", "-rollNumber", 0, ""),
			[]string{"ron@school.com", "hermione@school.com", "harry@school.com", "ginny@school.com"}},
		{"unknown ordering field is ignored", path("students", "", "password", 0, ""),
			[]string{"harry@school.com", "hermione@school.com", "ron@school.com", "ginny@school.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, http.MethodGet, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantEmails, decodeUsers(t, rec.Body.Bytes()))
		})
	}

	t.Run("bad class level", func(t *testing.T) {
		rec := serve(app, http.MethodGet, "/api/students?classLevel=nine")
		checkError(t, rec, http.StatusBadRequest, echoapi.ErrorResponse{Error: "invalid query parameters"})

		var resp echoapi.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Fields, "query")
	})
}

func Test_memberApi_retrieve(t *testing.T) {
	env, app := setup(t)
	parent := testutil.CreateUser(t, env.Repo, user.RoleParent, "Arthur", "Weasley", "arthur@school.com", "", nil)

	tests := []httpTest{
		{name: "found", path: "/api/parents/" + parent.ID, wantCode: http.StatusOK, wantData: marchallObj(t, parent)},
		{name: "other collection", path: "/api/teachers/" + parent.ID, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: user.ErrNotFound.Error()})},
		{name: "unknown", path: "/api/parents/unknown", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: user.ErrNotFound.Error()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, http.MethodGet, tt.path))
		})
	}
}

func Test_memberApi_update(t *testing.T) {
	env, app := setup(t)
	student := testutil.CreateUser(t, env.Repo, user.RoleStudent, "Neville", "Longbottom", "neville@school.com", "",
		&user.Enrollment{RollNumber: "250811-001", ClassLevel: 8, ClassType: classroom.Science})
	teacher := testutil.CreateUser(t, env.Repo, user.RoleTeacher, "Pomona", "Sprout", "pomona@school.com", "", nil)

	t.Run("body id", func(t *testing.T) {
		body := payload{"id": student.ID, "firstName": " Nev ", "email": "other@school.com", "classLevel": 10}
		rec := serve(app, http.MethodPut, "/api/students", marchallObj(t, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		resp := decodeSuccess(t, rec, &usr)
		assert.Equal(t, "Student updated successfully", resp.Message)
		assert.Equal(t, "Nev", usr.FirstName)
		assert.Equal(t, "neville@school.com", usr.Email)
		assert.Equal(t, "250811-001", usr.RollNumber)
		assert.Equal(t, 10, usr.ClassLevel)
		assert.Equal(t, classroom.Science, usr.ClassType, "the track is kept")
	})

	t.Run("class change", func(t *testing.T) {
		body := payload{"classLevel": "9", "classType": "Arts"}
		rec := serve(app, http.MethodPut, "/api/students/"+student.ID, marchallObj(t, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decodeSuccess(t, rec, &usr)
		assert.Equal(t, 9, usr.ClassLevel)
		assert.Equal(t, classroom.Arts, usr.ClassType)
		assert.Equal(t, "250811-001", usr.RollNumber)

		rec = serve(app, http.MethodGet, "/api/students?classType=22")
		assert.Equal(t, []string{"neville@school.com"}, decodeUsers(t, rec.Body.Bytes()))
	})

	t.Run("path id", func(t *testing.T) {
		body := payload{"contactNumber": "09087654321", "password": "herbology1"}
		rec := serve(app, http.MethodPut, "/api/students/"+student.ID, marchallObj(t, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = serve(app, http.MethodGet, "/api/students/"+student.ID)
		var usr user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
		assert.Equal(t, "09087654321", usr.ContactNumber)

		got, err := env.UserSvc.GetByID(context.Background(), user.RoleStudent, student.ID)
		require.NoError(t, err)
		assert.NoError(t, got.CheckPassword("herbology1"))
	})

	tests := []struct {
		name     string
		path     string
		body     payload
		wantCode int
		want     echoapi.ErrorResponse
	}{
		{"missing id", "/api/students", payload{"firstName": "X"}, 400,
			echoapi.ErrorResponse{Error: user.ErrMissingField.Error(), Code: user.CodeMissingField}},
		{"unknown id", "/api/students/unknown", payload{"firstName": "X"}, 404,
			echoapi.ErrorResponse{Error: user.ErrNotFound.Error()}},
		{"wrong collection", "/api/parents/" + student.ID, payload{"firstName": "X"}, 404,
			echoapi.ErrorResponse{Error: user.ErrNotFound.Error()}},
		{"blank name", "/api/students/" + student.ID, payload{"lastName": "  "}, 400,
			echoapi.ErrorResponse{Error: user.ErrMissingField.Error(), Code: user.CodeMissingField}},
		{"bad contact number", "/api/students/" + student.ID, payload{"contactNumber": "12"}, 400,
			echoapi.ErrorResponse{Error: user.ErrInvalidContactNumber.Error(), Code: user.CodeInvalidContactNumber}},
		{"nothing to update", "/api/students/" + student.ID, payload{}, 400,
			echoapi.ErrorResponse{Error: user.ErrNothingToUpdate.Error()}},
		{"bad class level", "/api/students/" + student.ID, payload{"classLevel": 11}, 400,
			echoapi.ErrorResponse{Error: user.ErrInvalidClassLevel.Error(), Code: user.CodeInvalidClassLevel}},
		{"blank class type", "/api/students/" + student.ID, payload{"classType": " "}, 400,
			echoapi.ErrorResponse{Error: user.ErrMissingField.Error(), Code: user.CodeMissingField}},
		{"class of a teacher", "/api/teachers/" + teacher.ID, payload{"classLevel": 9}, 400,
			echoapi.ErrorResponse{Error: user.ErrNotAStudent.Error()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkError(t, serve(app, http.MethodPut, tt.path, marchallObj(t, tt.body)), tt.wantCode, tt.want)
		})
	}
}

func Test_memberApi_destroy(t *testing.T) {
	env, app := setup(t)
	t1 := testutil.CreateUser(t, env.Repo, user.RoleTeacher, "Remus", "Lupin", "remus@school.com", "", nil)
	t2 := testutil.CreateUser(t, env.Repo, user.RoleTeacher, "Sybill", "Trelawney", "sybill@school.com", "", nil)

	deleted := marchallObj(t, payload{"message": "Teacher deleted successfully", "error": false})
	notFound := marchallObj(t, echoapi.ErrorResponse{Error: user.ErrNotFound.Error()})
	tests := []httpTest{
		{name: "missing id", method: http.MethodDelete, path: "/api/teachers", body: marchallObj(t, payload{}),
			wantCode: http.StatusBadRequest},
		{name: "body id", method: http.MethodDelete, path: "/api/teachers", body: marchallObj(t, payload{"id": t1.ID}),
			wantCode: http.StatusOK, wantData: deleted},
		{name: "already deleted", method: http.MethodDelete, path: "/api/teachers", body: marchallObj(t, payload{"id": t1.ID}),
			wantCode: http.StatusNotFound, wantData: notFound},
		{name: "wrong collection", method: http.MethodDelete, path: "/api/admins/" + t2.ID,
			wantCode: http.StatusNotFound, wantData: notFound},
		{name: "path id", method: http.MethodDelete, path: "/api/teachers/" + t2.ID,
			wantCode: http.StatusOK, wantData: deleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt.method, tt.path, tt.body))
		})
	}

	rec := serve(app, http.MethodGet, "/api/teachers")
	assert.Equal(t, []string{}, decodeUsers(t, rec.Body.Bytes()))
}
