package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
)

type userRepository struct {
	db *userTables
}

var (
	_ user.Repository        = (*userRepository)(nil)
	_ classroom.LatestFinder = (*userRepository)(nil)
)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.users}
}

func (repo *userRepository) rows(role user.Role) []*userRow {
	table := repo.db.tables[role]
	rows := make([]*userRow, 0, len(table))
	for _, row := range table {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].rowID < rows[j].rowID })
	return rows
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, role user.Role, email string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, row := range repo.db.tables[role] {
		if row.usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	table, ok := repo.db.tables[usr.Role]
	if !ok {
		return user.User{}, user.ErrInvalidUserType
	}
	// unique keys
	for _, row := range table {
		if row.usr.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
		if usr.IsStudent() && row.usr.IsStudent() && row.usr.RollNumber == usr.RollNumber {
			return user.User{}, classroom.ErrRollNumberTaken
		}
	}

	usr.ID = uuid.New().String()
	if usr.Enrollment != nil {
		enr := *usr.Enrollment
		usr.Enrollment = &enr
	}
	repo.db.lastRowID++
	table[usr.ID] = &userRow{rowID: repo.db.lastRowID, usr: usr}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, role user.Role, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := repo.rows(role)
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		if matches(row.usr, filter) {
			users = append(users, row.usr)
		}
	}
	if len(ordering) > 0 {
		sort.SliceStable(users, func(i, j int) bool { return less(users[i], users[j], ordering) })
	}
	return users, nil
}

func matches(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil || filter.IsEmpty() {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(usr.FirstName), search) ||
			strings.Contains(strings.ToLower(usr.LastName), search) ||
			strings.Contains(usr.Email, search)) {
			return false
		}
	}
	if filter.ClassLevel != 0 && (!usr.IsStudent() || usr.ClassLevel != filter.ClassLevel) {
		return false
	}
	if filter.ClassType != "" && (!usr.IsStudent() || usr.ClassType.Code() != filter.ClassType) {
		return false
	}
	return true
}

func less(a, b user.User, ordering []core.DBOrdering) bool {
	for _, o := range ordering {
		cmp := compare(a, b, o.Field)
		if cmp == 0 {
			continue
		}
		if o.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

func compare(a, b user.User, field string) int {
	switch field {
	case user.OrderByFirstName:
		return strings.Compare(a.FirstName, b.FirstName)
	case user.OrderByLastName:
		return strings.Compare(a.LastName, b.LastName)
	case user.OrderByEmail:
		return strings.Compare(a.Email, b.Email)
	case user.OrderByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case user.OrderByRollNumber:
		var ra, rb string
		if a.IsStudent() {
			ra = a.RollNumber
		}
		if b.IsStudent() {
			rb = b.RollNumber
		}
		return strings.Compare(ra, rb)
	}
	return 0
}

func (repo *userRepository) GetUser(_ context.Context, role user.Role, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	table := repo.db.tables[role]
	if filter.ID != "" {
		if row, ok := table[filter.ID]; ok {
			return row.usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, row := range table {
			if row.usr.Email == filter.Email {
				return row.usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.tables[usr.Role][usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	// only save mutable fields
	orig := &row.usr
	orig.FirstName = usr.FirstName
	orig.LastName = usr.LastName
	orig.ContactNumber = usr.ContactNumber
	orig.ProfilePicture = usr.ProfilePicture
	if orig.IsStudent() && usr.IsStudent() {
		orig.Enrollment = &user.Enrollment{
			RollNumber: orig.RollNumber,
			ClassLevel: usr.ClassLevel,
			ClassType:  usr.ClassType,
		}
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	orig.UpdatedAt = usr.UpdatedAt
	return *orig, nil
}

func (repo *userRepository) DeleteUser(_ context.Context, role user.Role, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	table := repo.db.tables[role]
	if _, ok := table[id]; !ok {
		return user.ErrNotFound
	}
	delete(table, id)
	return nil
}

// LatestRollNumber returns the roll number of the last student inserted in bucket `b`.
func (repo *userRepository) LatestRollNumber(_ context.Context, b classroom.Bucket) (string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	prefix := b.Key() + "-"
	var latest *userRow
	for _, row := range repo.db.tables[user.RoleStudent] {
		if !row.usr.IsStudent() || !strings.HasPrefix(row.usr.RollNumber, prefix) {
			continue
		}
		if latest == nil || row.rowID > latest.rowID {
			latest = row
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.usr.RollNumber, nil
}
