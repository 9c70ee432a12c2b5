package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/testutil"
)

func validTeacher() user.NewUser {
	return user.NewUser{
		FirstName:     "Jane",
		LastName:      "Doe",
		Email:         "jane@school.com",
		Password:      "password123",
		UserType:      "Teacher",
		ContactNumber: "08012345678",
	}
}

func TestNewUser_Validate(t *testing.T) {
	env := testutil.NewEnv()
	v := user.NewValidator()
	testutil.CreateUser(t, env.Repo, user.RoleTeacher, "Old", "Timer", "taken@school.com", "", nil)

	with := func(mod func(nu *user.NewUser)) user.NewUser {
		nu := validTeacher()
		mod(&nu)
		return nu
	}

	tests := []struct {
		name         string
		data         user.NewUser
		registration bool
		wantCode     string
		wantField    string
	}{
		{name: "valid teacher", data: validTeacher(), registration: true},
		{
			name:         "valid student",
			data:         testutil.NewStudent("Ada", "ada@school.com", 9, "Science"),
			registration: true,
		},
		{
			name:         "valid junior student",
			data:         testutil.NewStudent("Bo", "bo@school.com", 3, "General"),
			registration: true,
		},
		{
			name: "member without password",
			data: with(func(nu *user.NewUser) { nu.Password = "" }),
		},
		{
			name:         "missing first name",
			data:         with(func(nu *user.NewUser) { nu.FirstName = "  " }),
			registration: true,
			wantCode:     user.CodeMissingField,
			wantField:    "firstName",
		},
		{
			name:         "missing password on registration",
			data:         with(func(nu *user.NewUser) { nu.Password = "" }),
			registration: true,
			wantCode:     user.CodeMissingField,
			wantField:    "password",
		},
		{
			name:         "invalid email",
			data:         with(func(nu *user.NewUser) { nu.Email = "jane.school.com" }),
			registration: true,
			wantCode:     user.CodeInvalidEmailFormat,
			wantField:    "email",
		},
		{
			name: "invalid email wins over short password",
			data: with(func(nu *user.NewUser) {
				nu.Email = "jane@school"
				nu.Password = "short"
			}),
			registration: true,
			wantCode:     user.CodeInvalidEmailFormat,
		},
		{
			name:         "short password",
			data:         with(func(nu *user.NewUser) { nu.Password = "1234567" }),
			registration: true,
			wantCode:     user.CodePasswordTooShort,
			wantField:    "password",
		},
		{
			name:         "password of exactly 8 characters",
			data:         with(func(nu *user.NewUser) { nu.Password = "12345678" }),
			registration: true,
		},
		{
			name:         "short password on member creation",
			data:         with(func(nu *user.NewUser) { nu.Password = "1234567" }),
			wantCode:     user.CodePasswordTooShort,
			wantField:    "password",
		},
		{
			name:         "contact number too short",
			data:         with(func(nu *user.NewUser) { nu.ContactNumber = "0801234567" }),
			registration: true,
			wantCode:     user.CodeInvalidContactNumber,
			wantField:    "contactNumber",
		},
		{
			name:         "contact number too long",
			data:         with(func(nu *user.NewUser) { nu.ContactNumber = "080123456789" }),
			registration: true,
			wantCode:     user.CodeInvalidContactNumber,
			wantField:    "contactNumber",
		},
		{
			name:         "contact number of exactly 11 digits",
			data:         with(func(nu *user.NewUser) { nu.ContactNumber = "08012345678" }),
			registration: true,
		},
		{
			name:         "contact number not numeric",
			data:         with(func(nu *user.NewUser) { nu.ContactNumber = "0801234567a" }),
			registration: true,
			wantCode:     user.CodeInvalidContactNumber,
		},
		{
			name:         "unknown user type",
			data:         with(func(nu *user.NewUser) { nu.UserType = "Principal" }),
			registration: true,
			wantCode:     user.CodeInvalidUserType,
			wantField:    "userType",
		},
		{
			name: "student without class type",
			data: func() user.NewUser {
				nu := testutil.NewStudent("Ada", "ada@school.com", 9, "")
				return nu
			}(),
			registration: true,
			wantCode:     user.CodeMissingField,
			wantField:    "classType",
		},
		{
			name:         "student without class level",
			data:         testutil.NewStudent("Ada", "ada@school.com", 0, "Arts"),
			registration: true,
			wantCode:     user.CodeMissingField,
			wantField:    "classLevel",
		},
		{
			name:         "student class level out of range",
			data:         testutil.NewStudent("Ada", "ada@school.com", 11, "Arts"),
			registration: true,
			wantCode:     user.CodeInvalidClassLevel,
			wantField:    "classLevel",
		},
		{
			name:         "student class level not a number",
			data:         testutil.NewStudent("Ada", "ada@school.com", -1, "Arts"),
			registration: true,
			wantCode:     user.CodeInvalidClassLevel,
		},
		{
			name:         "duplicate email",
			data:         with(func(nu *user.NewUser) { nu.Email = " Taken@School.com " }),
			registration: true,
			wantCode:     user.CodeDuplicateEmail,
			wantField:    "email",
		},
		{
			name: "same email in another collection",
			data: with(func(nu *user.NewUser) {
				nu.Email = "taken@school.com"
				nu.UserType = "Parent"
			}),
			registration: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.data
			if tt.registration {
				nu.RequirePassword()
			}
			err := nu.Validate(context.Background(), v, env.UserSvc)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var code string
			var flds []core.FieldError
			switch e := errors.Cause(err).(type) {
			case *core.ValidationError:
				code, flds = e.Code, e.Fields
			case *core.ConflictError:
				code, flds = e.Code, e.Fields
			default:
				t.Fatalf("Validate() unexpected error type %T: %v", err, err)
			}
			assert.Equal(t, tt.wantCode, code)
			if tt.wantField != "" {
				fields := make([]string, 0, len(flds))
				for _, fe := range flds {
					fields = append(fields, fe.Field)
				}
				assert.Contains(t, fields, tt.wantField)
			}
		})
	}
}

func TestNewUser_ValidateNormalizes(t *testing.T) {
	env := testutil.NewEnv()
	nu := validTeacher()
	nu.FirstName = "  Jane "
	nu.Email = "  Jane@School.COM "
	nu.ContactNumber = " 08012345678 "

	require.NoError(t, nu.Validate(context.Background(), user.NewValidator(), env.UserSvc))
	assert.Equal(t, "Jane", nu.FirstName)
	assert.Equal(t, "jane@school.com", nu.Email)
	assert.Equal(t, "08012345678", nu.ContactNumber)
}

func TestFlexInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		data string
		want user.FlexInt
	}{
		{data: `9`, want: 9},
		{data: `"9"`, want: 9},
		{data: `" 10 "`, want: 10},
		{data: `""`, want: 0},
		{data: `null`, want: 0},
		{data: `"nine"`, want: -1},
		{data: `9.5`, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			var fi user.FlexInt
			assert.NoError(t, fi.UnmarshalJSON([]byte(tt.data)))
			assert.Equal(t, tt.want, fi)
		})
	}
}

func TestUpdateUser_Validate(t *testing.T) {
	v := user.NewValidator()
	empty, bad, good := "", "123", " 08099999999 "

	uu := user.UpdateUser{FirstName: &empty}
	err := uu.Validate(v)
	require.Error(t, err)
	assert.Equal(t, user.CodeMissingField, errors.Cause(err).(*core.ValidationError).Code)

	uu = user.UpdateUser{ContactNumber: &bad}
	err = uu.Validate(v)
	require.Error(t, err)
	assert.Equal(t, user.CodeInvalidContactNumber, errors.Cause(err).(*core.ValidationError).Code)

	uu = user.UpdateUser{Password: "short"}
	err = uu.Validate(v)
	require.Error(t, err)
	assert.Equal(t, user.CodePasswordTooShort, errors.Cause(err).(*core.ValidationError).Code)

	badLevel, blankType := user.FlexInt(0), "  "
	uu = user.UpdateUser{ClassLevel: &badLevel}
	err = uu.Validate(v)
	require.Error(t, err)
	assert.Equal(t, user.CodeInvalidClassLevel, errors.Cause(err).(*core.ValidationError).Code)

	uu = user.UpdateUser{ClassType: &blankType}
	err = uu.Validate(v)
	require.Error(t, err)
	assert.Equal(t, user.CodeMissingField, errors.Cause(err).(*core.ValidationError).Code)

	uu = user.UpdateUser{ContactNumber: &good}
	assert.NoError(t, uu.Validate(v))
	assert.Equal(t, "08099999999", *uu.ContactNumber)
	assert.NoError(t, (&user.UpdateUser{}).Validate(v))
}
