package rostersvc_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/services/roster"
	"github.com/myschool/backend/testutil"
)

func newRosterService(env *testutil.Env) *rostersvc.Service {
	return rostersvc.NewService(env.UserSvc, user.NewValidator(), env.Logger)
}

func spreadsheet(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestService_Import(t *testing.T) {
	env := testutil.NewEnv()
	svc := newRosterService(env)
	ctx := context.Background()

	file := spreadsheet(t,
		[]interface{}{"first name", "Last Name", "EMAIL", "Contact Number", "Class Level", "Class Type", "Notes"},
		[]interface{}{"Ada", "Lovelace", "ada@school.com", "08012345678", 9, "Science", "ok"},
		[]interface{}{"Alan", "Turing", "alan@school.com", "08012345679", "10", "33"},
		[]interface{}{"Bad", "Email", "bad-email", "08012345670", 9, "Arts"},
		[]interface{}{"Ada", "Again", "ada@school.com", "08012345671", 9, "Arts"},
		[]interface{}{"No", "Level", "nolevel@school.com", "08012345672", "", "Arts"},
		[]interface{}{"Little", "One", "little@school.com", "08012345673", 2, "General"},
	)

	res, err := svc.Import(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, []rostersvc.RowError{
		{Row: 4, Error: "InvalidEmailFormat: invalid email format"},
		{Row: 5, Error: "DuplicateEmail: a user with this email already exists"},
		{Row: 6, Error: "MissingField: all fields are required"},
	}, res.Failed)

	students, err := env.UserSvc.Query(ctx, user.RoleStudent, nil)
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, "Ada", students[0].FirstName)
	assert.Equal(t, 9, students[0].ClassLevel)
	assert.NotEmpty(t, students[0].RollNumber)
	assert.Nil(t, students[0].PasswordHash)
}

func TestService_ImportRejectsBadFiles(t *testing.T) {
	env := testutil.NewEnv()
	svc := newRosterService(env)
	ctx := context.Background()

	tests := []struct {
		name string
		file *bytes.Buffer
	}{
		{name: "not a spreadsheet", file: bytes.NewBufferString("first,last\n")},
		{name: "empty sheet", file: spreadsheet(t)},
		{name: "missing columns", file: spreadsheet(t, []interface{}{"First Name", "Email"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import(ctx, tt.file)
			var verr *core.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestService_ExportThenImport(t *testing.T) {
	src := testutil.NewEnv()
	ctx := context.Background()
	for _, nu := range []user.NewUser{
		testutil.NewStudent("Ada", "ada@school.com", 9, "Science"),
		testutil.NewStudent("Bob", "bob@school.com", 3, "General"),
		testutil.NewStudent("Cy", "cy@school.com", 10, "Arts"),
	} {
		_, err := src.UserSvc.Create(ctx, nu)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, newRosterService(src).Export(ctx, &buf, nil))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows("Students")
	require.NoError(t, err)
	_ = f.Close()
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Roll Number", "First Name", "Last Name", "Email", "Contact Number", "Class Level", "Class Type"}, rows[0])
	assert.Equal(t, "Ada", rows[1][1])
	assert.Equal(t, "08012345678", rows[1][4])
	assert.Equal(t, "9", rows[1][5])
	assert.Equal(t, "Science", rows[1][6])

	dst := testutil.NewEnv()
	res, err := newRosterService(dst).Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Empty(t, res.Failed)

	students, err := dst.UserSvc.Query(ctx, user.RoleStudent, nil)
	require.NoError(t, err)
	require.Len(t, students, 3)
	for i, stud := range students {
		assert.Equal(t, rows[i+1][0], stud.RollNumber)
	}
}
