package user

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
)

// Role decides which collection a user record lives in.
type Role string

// Roles
const (
	RoleAdmin   Role = "Admin"
	RoleTeacher Role = "Teacher"
	RoleStudent Role = "Student"
	RoleParent  Role = "Parent"
)

var (
	AllRoles = []Role{RoleAdmin, RoleTeacher, RoleParent, RoleStudent}

	roleCollections = map[Role]string{
		RoleAdmin:   "admins",
		RoleTeacher: "teachers",
		RoleStudent: "students",
		RoleParent:  "parents",
	}
)

// ParseRole returns the Role named `s`.
func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(s))
	if _, ok := roleCollections[role]; !ok {
		return "", ErrInvalidUserType
	}
	return role, nil
}

// RoleForCollection returns the Role stored in collection `coll`.
func RoleForCollection(coll string) (Role, bool) {
	for role, c := range roleCollections {
		if c == coll {
			return role, true
		}
	}
	return "", false
}

// Collection returns the name of the collection (or table) holding the Role's records.
func (r Role) Collection() string {
	return roleCollections[r]
}

func (r Role) IsValid() bool {
	_, ok := roleCollections[r]
	return ok
}

// Enrollment holds the student-only fields of a User.
type Enrollment struct {
	RollNumber string              `json:"id"`
	ClassLevel int                 `json:"classLevel"`
	ClassType  classroom.ClassType `json:"classType"`
}

type User struct {
	ID             string `json:"_id"`
	Role           Role   `json:"userType"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	ContactNumber  string `json:"contactNumber"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	*Enrollment
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	if len(u.PasswordHash) == 0 {
		return ErrInvalidCredentials
	}
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool {
	return u.Enrollment != nil
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Profile returns the public projection of the User.
func (u User) Profile() Profile {
	p := Profile{
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		ContactNumber:  u.ContactNumber,
		ProfilePicture: u.ProfilePicture,
		UserType:       u.Role,
	}
	if u.Enrollment != nil {
		enr := *u.Enrollment
		p.Enrollment = &enr
	}
	return p
}

// Profile is what a User may see of their own record.
type Profile struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	ContactNumber  string `json:"contactNumber"`
	ProfilePicture string `json:"profilePicture"`
	UserType       Role   `json:"userType"`
	*Enrollment
}

// FlexInt accepts both JSON numbers and numeric strings.
// A non-numeric string decodes to -1 so that it fails range validation instead of binding.
type FlexInt int

func (fi *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*fi = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "unmarshalling FlexInt")
		}
		s = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*fi = -1
		return nil
	}
	*fi = FlexInt(n)
	return nil
}

// NewUser contains information needed to create a new User.
// UserType is taken from the payload on registration and from the route on member creation.
type NewUser struct {
	FirstName      string  `json:"firstName" validate:"required"`
	LastName       string  `json:"lastName" validate:"required"`
	Email          string  `json:"email" validate:"required,emailfmt"`
	Password       string  `json:"password" validate:"omitempty,pwdminlen"`
	UserType       string  `json:"userType" validate:"required,role"`
	ContactNumber  string  `json:"contactNumber" validate:"required,contactnum"`
	ClassLevel     FlexInt `json:"classLevel" validate:"required_if=UserType Student,omitempty,classlevel"`
	ClassType      string  `json:"classType" validate:"required_if=UserType Student"`
	ProfilePicture string  `json:"profilePicture"`

	// set for self-registration: a password is then mandatory
	requirePassword bool
}

// RequirePassword marks the NewUser as a self-registration.
func (nu *NewUser) RequirePassword() { nu.requirePassword = true }

func (nu *NewUser) clean() {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.UserType = core.CleanString(nu.UserType)
	nu.ContactNumber = core.CleanString(nu.ContactNumber)
	nu.ClassType = core.CleanString(nu.ClassType)
	nu.ProfilePicture = strings.TrimSpace(nu.ProfilePicture)
}

// Validate cleans the NewUser then runs the registration checks in order:
// required fields, email format, password length, contact number, user type, class level,
// then email uniqueness among the records of the same user type.
func (nu *NewUser) Validate(ctx context.Context, v *Validator, svc Service) error {
	nu.clean()
	if err := v.Struct(nu); err != nil {
		return err
	}
	role, _ := ParseRole(nu.UserType)
	return svc.CheckUniqueness(ctx, role, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Email and roll number never change. ClassLevel and ClassType only apply to students.
type UpdateUser struct {
	ID             string   `json:"id"`
	FirstName      *string  `json:"firstName" validate:"omitempty,notblank"`
	LastName       *string  `json:"lastName" validate:"omitempty,notblank"`
	ContactNumber  *string  `json:"contactNumber" validate:"omitempty,contactnum"`
	ProfilePicture *string  `json:"profilePicture"`
	Password       string   `json:"password" validate:"omitempty,pwdminlen"`
	ClassLevel     *FlexInt `json:"classLevel" validate:"omitempty,classlevel"`
	ClassType      *string  `json:"classType" validate:"omitempty,notblank"`
}

func (uu *UpdateUser) Validate(v *Validator) error {
	for _, s := range []*string{uu.FirstName, uu.LastName, uu.ContactNumber, uu.ClassType} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	uu.ID = core.CleanString(uu.ID)
	return v.Struct(uu)
}

// IsEmpty reports whether the UpdateUser changes nothing.
func (uu *UpdateUser) IsEmpty() bool {
	return uu.FirstName == nil && uu.LastName == nil && uu.ContactNumber == nil &&
		uu.ProfilePicture == nil && uu.Password == "" && !uu.changesClass()
}

func (uu *UpdateUser) changesClass() bool {
	return uu.ClassLevel != nil || uu.ClassType != nil
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"userType" validate:"required,role"`
}

func (lr *LoginRequest) Validate(v *Validator) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	lr.UserType = core.CleanString(lr.UserType)
	return v.Struct(lr)
}

type PasswordResetRequest struct {
	Email    string `json:"email" validate:"required,emailfmt"`
	UserType string `json:"userType" validate:"required,role"`
}

func (pr *PasswordResetRequest) Validate(v *Validator) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	pr.UserType = core.CleanString(pr.UserType)
	return v.Struct(pr)
}

type ResetUserPassword struct {
	Token    string `json:"token" validate:"required"`
	UID      string `json:"uid" validate:"required"`
	UserType string `json:"userType" validate:"required,role"`
	Password string `json:"password" validate:"required,pwdminlen"`
}

func (rp *ResetUserPassword) Validate(v *Validator) error {
	rp.UserType = core.CleanString(rp.UserType)
	return v.Struct(rp)
}

// QueryFilter applies AND on its set fields.
type QueryFilter struct {
	Search     string `query:"search"` // case-insensitive match on first name, last name or email
	ClassLevel int    `query:"classLevel"`
	ClassType  string `query:"classType"` // wire code
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.ClassLevel == 0 && qf.ClassType == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassType = core.CleanString(qf.ClassType)
}

// GetFilter selects a single User by ID or, when ID is empty, by Email.
type GetFilter struct {
	ID    string
	Email string
}

// Ordering fields accepted by Repository.QueryUsers.
const (
	OrderByFirstName  = "firstName"
	OrderByLastName   = "lastName"
	OrderByEmail      = "email"
	OrderByCreatedAt  = "createdAt"
	OrderByRollNumber = "rollNumber"
)

var OrderingFields = []string{OrderByFirstName, OrderByLastName, OrderByEmail, OrderByCreatedAt, OrderByRollNumber}
