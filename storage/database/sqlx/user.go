package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/storage/database"
)

const (
	commonColumns  = "id, first_name, last_name, email, contact_number, profile_picture, password_hash, created_at, updated_at"
	studentColumns = commonColumns + ", roll_number, class_level, class_type"
)

var orderingColumns = map[string]string{
	user.OrderByFirstName:  "first_name",
	user.OrderByLastName:   "last_name",
	user.OrderByEmail:      "email",
	user.OrderByCreatedAt:  "created_at",
	user.OrderByRollNumber: "roll_number",
}

type userRow struct {
	ID             string         `db:"id"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	Email          string         `db:"email"`
	ContactNumber  string         `db:"contact_number"`
	ProfilePicture string         `db:"profile_picture"`
	PasswordHash   []byte         `db:"password_hash"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	RollNumber     sql.NullString `db:"roll_number"`
	ClassLevel     sql.NullInt32  `db:"class_level"`
	ClassType      sql.NullString `db:"class_type"`
}

func (r userRow) toUser(role user.Role) (user.User, error) {
	usr := user.User{
		ID:             r.ID,
		Role:           role,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		ContactNumber:  r.ContactNumber,
		ProfilePicture: r.ProfilePicture,
		PasswordHash:   r.PasswordHash,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if role == user.RoleStudent {
		typ, err := classroom.DecodeClassType(r.ClassType.String)
		if err != nil {
			return user.User{}, errors.Wrapf(err, "reading student %s", r.ID)
		}
		usr.Enrollment = &user.Enrollment{
			RollNumber: r.RollNumber.String,
			ClassLevel: int(r.ClassLevel.Int32),
			ClassType:  typ,
		}
	}
	return usr, nil
}

func columns(role user.Role) string {
	if role == user.RoleStudent {
		return studentColumns
	}
	return commonColumns
}

// trapNoRowsErr maps sql.ErrNoRows to user.ErrNotFound.
func trapNoRowsErr(err error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return err
}

type userRepository struct {
	db *sqlx.DB
}

var (
	_ user.Repository        = (*userRepository)(nil)
	_ classroom.LatestFinder = (*userRepository)(nil)
)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, role user.Role, email string) error {
	var found bool
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE email = $1)", role.Collection())
	if err := repo.db.GetContext(ctx, &found, q, email); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()

	args := []interface{}{
		usr.ID, usr.FirstName, usr.LastName, usr.Email, usr.ContactNumber, usr.ProfilePicture,
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	}
	if usr.IsStudent() {
		args = append(args, usr.RollNumber, usr.ClassLevel, usr.ClassType.Code())
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		usr.Role.Collection(), columns(usr.Role), strings.Join(placeholders, ", "),
	)

	if _, err := repo.db.ExecContext(ctx, q, args...); err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			if strings.Contains(constraint, "roll_number") {
				return user.User{}, classroom.ErrRollNumberTaken
			}
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, role user.Role, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + escapeLike(filter.Search) + "%")
			conds = append(conds, fmt.Sprintf("(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR email ILIKE %[1]s)", p))
		}
		if filter.ClassLevel != 0 || filter.ClassType != "" {
			if role != user.RoleStudent {
				return []user.User{}, nil
			}
			if filter.ClassLevel != 0 {
				conds = append(conds, "class_level = "+arg(filter.ClassLevel))
			}
			if filter.ClassType != "" {
				conds = append(conds, "class_type = "+arg(filter.ClassType))
			}
		}
	}

	q := fmt.Sprintf("SELECT %s FROM %s", columns(role), role.Collection())
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + orderBy(role, ordering)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		usr, err := r.toUser(role)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func orderBy(role user.Role, ordering []core.DBOrdering) string {
	terms := make([]string, 0, len(ordering)+1)
	for _, o := range ordering {
		col, ok := orderingColumns[o.Field]
		if !ok || (col == "roll_number" && role != user.RoleStudent) {
			continue
		}
		terms = append(terms, core.DBOrdering{Field: col, Ascending: o.Ascending}.String())
	}
	// insertion order
	terms = append(terms, "created_at ASC", "id ASC")
	return strings.Join(terms, ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (repo *userRepository) GetUser(ctx context.Context, role user.Role, filter user.GetFilter) (user.User, error) {
	var (
		cond string
		arg  interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, arg = "id = $1", filter.ID
	case filter.Email != "":
		cond, arg = "email = $1", filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", columns(role), role.Collection(), cond)
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(errors.Wrap(err, "getting user"))
	}
	return row.toUser(role)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := uuid.Parse(usr.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}

	args := []interface{}{usr.ID, usr.FirstName, usr.LastName, usr.ContactNumber, usr.ProfilePicture, usr.UpdatedAt}
	set := "first_name = $2, last_name = $3, contact_number = $4, profile_picture = $5, updated_at = $6"
	if len(usr.PasswordHash) > 0 {
		args = append(args, usr.PasswordHash)
		set += fmt.Sprintf(", password_hash = $%d", len(args))
	}
	if usr.IsStudent() {
		args = append(args, usr.ClassLevel, usr.ClassType.Code())
		set += fmt.Sprintf(", class_level = $%d, class_type = $%d", len(args)-1, len(args))
	}
	q := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $1 RETURNING %s",
		usr.Role.Collection(), set, columns(usr.Role),
	)

	var row userRow
	err := repo.db.QueryRowxContext(ctx, q, args...).StructScan(&row)
	if err != nil {
		return user.User{}, trapNoRowsErr(errors.Wrap(err, "updating user"))
	}
	return row.toUser(usr.Role)
}

func (repo *userRepository) DeleteUser(ctx context.Context, role user.Role, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", role.Collection()), id)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

// LatestRollNumber returns the roll number of the last student inserted in bucket `b`.
func (repo *userRepository) LatestRollNumber(ctx context.Context, b classroom.Bucket) (string, error) {
	var rollNumber string
	err := repo.db.GetContext(
		ctx, &rollNumber,
		"SELECT roll_number FROM students WHERE roll_number LIKE $1 ORDER BY created_at DESC, roll_number DESC LIMIT 1",
		b.Key()+"-%",
	)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return rollNumber, errors.Wrap(err, "finding latest roll number")
}
