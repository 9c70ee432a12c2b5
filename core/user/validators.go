package user

import (
	"fmt"
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
)

// Validation failure codes, reported in this order of precedence.
const (
	CodeMissingField         = "MissingField"
	CodeInvalidEmailFormat   = "InvalidEmailFormat"
	CodePasswordTooShort     = "PasswordTooShort"
	CodeInvalidContactNumber = "InvalidContactNumber"
	CodeInvalidUserType      = "InvalidUserType"
	CodeInvalidClassLevel    = "InvalidClassLevel"
	CodeDuplicateEmail       = "DuplicateEmail"
)

var (
	ErrMissingField         = errors.New("all fields are required")
	ErrInvalidEmailFormat   = errors.New("invalid email format")
	ErrPasswordTooShort     = errors.Errorf("password must be at least %d characters long", pwdMinLen)
	ErrInvalidContactNumber = errors.Errorf("contact number must be %d digits", contactNumLen)
	ErrInvalidUserType      = errors.New("invalid user type, allowed: Admin, Teacher, Parent, Student")
	ErrInvalidClassLevel    = classroom.ErrInvalidClassLevel
)

var (
	requiredTag  = "required"
	notBlankTag  = "notblank"
	notBlankText = "this field is required"

	emailFmtTag   = "emailfmt"
	emailFmtText  = "invalid email format"
	emailFmtRegex = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	contactNumLen   = 11
	contactNumTag   = "contactnum"
	contactNumText  = fmt.Sprintf("contact number must be exactly %d digits", contactNumLen)
	contactNumRegex = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, contactNumLen))

	roleTag  = "role"
	roleText = "invalid user type, allowed: Admin, Teacher, Parent, Student"

	classLevelTag  = "classlevel"
	classLevelText = fmt.Sprintf("class level must be between %d and %d", classroom.MinLevel, classroom.MaxLevel)
)

type reason struct {
	code string
	err  error
}

// tagReasons is ordered by precedence: the first failing tag in this list names the failure.
var tagReasons = []struct {
	tags   []string
	reason reason
}{
	{[]string{requiredTag, "required_if", notBlankTag}, reason{CodeMissingField, ErrMissingField}},
	{[]string{emailFmtTag}, reason{CodeInvalidEmailFormat, ErrInvalidEmailFormat}},
	{[]string{pwdMinLenTag}, reason{CodePasswordTooShort, ErrPasswordTooShort}},
	{[]string{contactNumTag}, reason{CodeInvalidContactNumber, ErrInvalidContactNumber}},
	{[]string{roleTag}, reason{CodeInvalidUserType, ErrInvalidUserType}},
	{[]string{classLevelTag}, reason{CodeInvalidClassLevel, ErrInvalidClassLevel}},
}

// Validator checks inbound user payloads and reports failures as coded core.ValidationError.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator() *Validator {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	_ = validate.RegisterValidation(notBlankTag, validators.NotBlank)
	_ = validate.RegisterValidation(emailFmtTag, emailFmtValidation)
	_ = validate.RegisterValidation(pwdMinLenTag, pwdMinLenValidation)
	_ = validate.RegisterValidation(contactNumTag, contactNumValidation)
	_ = validate.RegisterValidation(roleTag, roleValidation)
	_ = validate.RegisterValidation(classLevelTag, classLevelValidation)
	validate.RegisterStructValidation(newUserStructValidation, NewUser{})

	core.RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText, true)
	core.RegisterCustomTranslation(validate, translator, emailFmtTag, emailFmtText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, contactNumTag, contactNumText)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
	core.RegisterCustomTranslation(validate, translator, classLevelTag, classLevelText)

	return &Validator{validate: validate, translator: translator}
}

// Struct validates `s` and tags the failure with the code of its highest-precedence check.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validating struct")
	}
	rsn := reasonOf(verrs)
	return core.NewCodedValidationError(rsn.err, rsn.code, core.TranslateFieldErrors(verrs, v.translator)...)
}

// Var validates a single value against `tag`, reporting it under `field`.
func (v *Validator) Var(field string, value interface{}, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validating var")
	}
	rsn := reasonOf(verrs)
	flds := core.TranslateFieldErrors(verrs, v.translator)
	for i := range flds {
		flds[i].Field = field
	}
	return core.NewCodedValidationError(rsn.err, rsn.code, flds...)
}

func reasonOf(verrs validator.ValidationErrors) reason {
	failed := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		failed[fe.Tag()] = true
	}
	for _, tr := range tagReasons {
		for _, tag := range tr.tags {
			if failed[tag] {
				return tr.reason
			}
		}
	}
	// unmapped tags (e.g. "len") are still input errors
	return reason{CodeMissingField, errors.New(verrs[0].Error())}
}

// Custom Validators

func emailFmtValidation(fl validator.FieldLevel) bool {
	return emailFmtRegex.MatchString(fl.Field().String())
}

func pwdMinLenValidation(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) >= pwdMinLen
}

func contactNumValidation(fl validator.FieldLevel) bool {
	return contactNumRegex.MatchString(fl.Field().String())
}

func roleValidation(fl validator.FieldLevel) bool {
	_, err := ParseRole(fl.Field().String())
	return err == nil
}

func classLevelValidation(fl validator.FieldLevel) bool {
	return classroom.ValidLevel(int(fl.Field().Int()))
}

// newUserStructValidation requires a password on self-registration.
func newUserStructValidation(sl validator.StructLevel) {
	nu, ok := sl.Current().Interface().(NewUser)
	if !ok {
		return
	}
	if nu.requirePassword && nu.Password == "" {
		sl.ReportError(nu.Password, "password", "Password", requiredTag, "")
	}
}
