package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNothingToUpdate    = errors.New("no updatable field provided")
	ErrNotAStudent        = errors.New("class level and class type only apply to students")
)

const defaultMaxRollRetries = 5

type (
	// Repository stores the records of every Role, each in its own collection.
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when a record of `role` already uses `email`.
		CheckEmailUniqueness(ctx context.Context, role Role, email string) error
		// CreateUser returns ErrEmailExists or classroom.ErrRollNumberTaken on unique key violations.
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, role Role, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, role Role, filter GetFilter) (User, error)
		// UpdateUser only writes the mutable fields: names, contact number, profile picture, password
		// and, for students, class level and class type. The roll number is kept.
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, role Role, id string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, role Role, email string) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, role Role, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, role Role, id string) (User, error)
		GetByEmail(ctx context.Context, role Role, email string) (User, error)
		Profile(ctx context.Context, email, userType string) (Profile, error)
		Authenticate(ctx context.Context, lr LoginRequest) (User, error)
		Update(ctx context.Context, role Role, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, role Role, id string) error
		RequestPasswordReset(ctx context.Context, role Role, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		repo       Repository
		alloc      *classroom.Allocator
		mailSvc    core.EmailService
		logger     core.Logger
		tokens     tokenGenerator
		maxRetries int
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	alloc *classroom.Allocator,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) Service {
	maxRetries := conf.Roll.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRollRetries
	}
	return &service{
		repo:    repo,
		alloc:   alloc,
		mailSvc: mailSvc,
		logger:  logger,
		tokens: tokenGenerator{
			secret:  conf.SecretKey,
			timeout: conf.PasswordResetTimeoutDelta,
			now:     time.Now,
		},
		maxRetries: maxRetries,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, role Role, email string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, role, email); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return duplicateEmailError()
		}
		return err
	}
	return nil
}

func duplicateEmailError() error {
	return core.NewConflictError(
		ErrEmailExists,
		CodeDuplicateEmail,
		core.FieldError{Field: "email", Error: ErrEmailExists.Error()},
	)
}

// Create stores a validated NewUser. Students get a freshly allocated roll number;
// allocation is retried when a concurrent enrolment took the same number.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	role, err := ParseRole(nu.UserType)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Role:           role,
		FirstName:      nu.FirstName,
		LastName:       nu.LastName,
		Email:          nu.Email,
		ContactNumber:  nu.ContactNumber,
		ProfilePicture: nu.ProfilePicture,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if nu.Password != "" {
		if err := usr.SetPassword(nu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}

	var created User
	if role == RoleStudent {
		created, err = svc.enroll(ctx, usr, int(nu.ClassLevel), nu.ClassType)
	} else {
		created, err = svc.repo.CreateUser(ctx, usr)
	}
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, duplicateEmailError()
		}
		return User{}, err
	}

	svc.sendWelcomeMail(created)
	return created, nil
}

func (svc *service) enroll(ctx context.Context, usr User, level int, typeName string) (User, error) {
	for attempt := 1; ; attempt++ {
		rn, err := svc.alloc.Allocate(ctx, level, typeName)
		if err != nil {
			if errors.Cause(err) == classroom.ErrInvalidClassLevel {
				return User{}, core.NewCodedValidationError(
					ErrInvalidClassLevel,
					CodeInvalidClassLevel,
					core.FieldError{Field: "classLevel", Error: ErrInvalidClassLevel.Error()},
				)
			}
			return User{}, err
		}
		usr.Enrollment = &Enrollment{
			RollNumber: rn.String(),
			ClassLevel: rn.Level,
			ClassType:  rn.Type,
		}

		created, err := svc.repo.CreateUser(ctx, usr)
		if errors.Cause(err) == classroom.ErrRollNumberTaken && attempt < svc.maxRetries {
			svc.logger.Warn(fmt.Sprintf("roll number %s taken, retrying (attempt %d)", rn, attempt))
			continue
		}
		if err != nil {
			return User{}, errors.Wrapf(err, "enrolling student with roll number %s", rn)
		}
		return created, nil
	}
}

func (svc *service) Query(ctx context.Context, role Role, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, role, filter, ordering...)
}

func (svc *service) GetByID(ctx context.Context, role Role, id string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, role, GetFilter{ID: core.CleanString(id)})
	return usr, notFound(err)
}

func (svc *service) GetByEmail(ctx context.Context, role Role, email string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, role, GetFilter{Email: core.CleanString(email, true /* lower */)})
	return usr, notFound(err)
}

func notFound(err error) error {
	if err != nil && errors.Cause(err) == ErrNotFound {
		return core.NewNotFoundError(ErrNotFound)
	}
	return err
}

func (svc *service) Profile(ctx context.Context, email, userType string) (Profile, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" || core.CleanString(userType) == "" {
		return Profile{}, core.NewCodedValidationError(ErrMissingField, CodeMissingField)
	}
	role, err := ParseRole(userType)
	if err != nil {
		return Profile{}, core.NewCodedValidationError(
			ErrInvalidUserType,
			CodeInvalidUserType,
			core.FieldError{Field: "userType", Error: roleText},
		)
	}
	usr, err := svc.GetByEmail(ctx, role, email)
	if err != nil {
		return Profile{}, err
	}
	return usr.Profile(), nil
}

// Authenticate checks the credentials of a validated LoginRequest.
// Unknown emails and wrong passwords fail alike.
func (svc *service) Authenticate(ctx context.Context, lr LoginRequest) (User, error) {
	role, err := ParseRole(lr.UserType)
	if err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUser(ctx, role, GetFilter{Email: lr.Email})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(ErrInvalidCredentials)
		}
		return User{}, err
	}
	if err := usr.CheckPassword(lr.Password); err != nil {
		return User{}, core.NewValidationError(ErrInvalidCredentials)
	}
	return usr, nil
}

func (svc *service) Update(ctx context.Context, role Role, id string, uu UpdateUser) (User, error) {
	if uu.IsEmpty() {
		return User{}, core.NewValidationError(ErrNothingToUpdate)
	}
	usr, err := svc.GetByID(ctx, role, id)
	if err != nil {
		return User{}, err
	}

	if uu.FirstName != nil {
		usr.FirstName = *uu.FirstName
	}
	if uu.LastName != nil {
		usr.LastName = *uu.LastName
	}
	if uu.ContactNumber != nil {
		usr.ContactNumber = *uu.ContactNumber
	}
	if uu.ProfilePicture != nil {
		usr.ProfilePicture = *uu.ProfilePicture
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	if uu.changesClass() {
		if !usr.IsStudent() {
			return User{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "classLevel", Error: ErrNotAStudent.Error()})
		}
		enr := *usr.Enrollment
		if uu.ClassLevel != nil {
			enr.ClassLevel = int(*uu.ClassLevel)
		}
		// the current track is kept unless a new one is given
		track := enr.ClassType.String()
		if uu.ClassType != nil {
			track = *uu.ClassType
		}
		enr.ClassType = classroom.TypeFor(enr.ClassLevel, track)
		usr.Enrollment = &enr
	}
	usr.UpdatedAt = time.Now().UTC()

	updated, err := svc.repo.UpdateUser(ctx, usr)
	return updated, notFound(err)
}

func (svc *service) Delete(ctx context.Context, role Role, id string) error {
	return notFound(svc.repo.DeleteUser(ctx, role, core.CleanString(id)))
}

func (svc *service) RequestPasswordReset(ctx context.Context, role Role, email string) error {
	usr, err := svc.GetByEmail(ctx, role, email)
	if err != nil {
		return err
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	role, err := ParseRole(rp.UserType)
	if err != nil {
		return err
	}
	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.repo.GetUser(ctx, role, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func recipient(usr User) []mail.Address {
	return []mail.Address{{Name: usr.FullName(), Address: usr.Email}}
}

func (svc *service) sendWelcomeMail(usr User) {
	data := struct {
		FirstName  string
		Email      string
		Role       Role
		RollNumber string
	}{FirstName: usr.FirstName, Email: usr.Email, Role: usr.Role}
	if usr.IsStudent() {
		data.RollNumber = usr.RollNumber
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           recipient(usr),
		Subject:      "Welcome to the school portal",
		TemplateName: "welcome",
		TemplateData: data,
	})
}

func (svc *service) sendPasswordResetMail(usr User) error {
	token, err := svc.tokens.MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           recipient(usr),
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: struct {
			FirstName string
			Role      Role
			UID       string
			Token     string
		}{FirstName: usr.FirstName, Role: usr.Role, UID: EncodeUID(usr), Token: token},
	})
	return nil
}
