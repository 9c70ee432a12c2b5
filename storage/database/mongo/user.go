package mongorepos

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
)

var orderingKeys = map[string]string{
	user.OrderByFirstName:  "firstName",
	user.OrderByLastName:   "lastName",
	user.OrderByEmail:      "email",
	user.OrderByCreatedAt:  "createdAt",
	user.OrderByRollNumber: "id",
}

// userDoc is the stored shape of a user. Students keep their roll number under "id".
type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	FirstName      string             `bson:"firstName"`
	LastName       string             `bson:"lastName"`
	Email          string             `bson:"email"`
	ContactNumber  string             `bson:"contactNumber"`
	ProfilePicture string             `bson:"profilePicture"`
	Password       string             `bson:"password,omitempty"` // bcrypt hash
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
	RollNumber     string             `bson:"id,omitempty"`
	ClassLevel     int                `bson:"classLevel,omitempty"`
	ClassType      string             `bson:"classType,omitempty"`
}

func newUserDoc(usr user.User) userDoc {
	doc := userDoc{
		FirstName:      usr.FirstName,
		LastName:       usr.LastName,
		Email:          usr.Email,
		ContactNumber:  usr.ContactNumber,
		ProfilePicture: usr.ProfilePicture,
		Password:       string(usr.PasswordHash),
		CreatedAt:      usr.CreatedAt,
		UpdatedAt:      usr.UpdatedAt,
	}
	if usr.IsStudent() {
		doc.RollNumber = usr.RollNumber
		doc.ClassLevel = usr.ClassLevel
		doc.ClassType = usr.ClassType.Code()
	}
	return doc
}

func (doc userDoc) toUser(role user.Role) (user.User, error) {
	usr := user.User{
		ID:             doc.ID.Hex(),
		Role:           role,
		FirstName:      doc.FirstName,
		LastName:       doc.LastName,
		Email:          doc.Email,
		ContactNumber:  doc.ContactNumber,
		ProfilePicture: doc.ProfilePicture,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
	if doc.Password != "" {
		usr.PasswordHash = []byte(doc.Password)
	}
	if role == user.RoleStudent {
		typ, err := classroom.DecodeClassType(doc.ClassType)
		if err != nil {
			return user.User{}, errors.Wrapf(err, "reading student %s", usr.ID)
		}
		usr.Enrollment = &user.Enrollment{
			RollNumber: doc.RollNumber,
			ClassLevel: doc.ClassLevel,
			ClassType:  typ,
		}
	}
	return usr, nil
}

type userRepository struct {
	db *DB
}

var (
	_ user.Repository        = (*userRepository)(nil)
	_ classroom.LatestFinder = (*userRepository)(nil)
)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoDocsErr maps mongo.ErrNoDocuments to user.ErrNotFound.
func trapNoDocsErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.ErrNotFound
	}
	return err
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, role user.Role, email string) error {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	n, err := repo.db.users(role).CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	res, err := repo.db.users(usr.Role).InsertOne(ctx, newUserDoc(usr))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), rollNumberIndex) {
				return user.User{}, classroom.ErrRollNumberTaken
			}
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return user.User{}, errors.Errorf("unexpected inserted id %v", res.InsertedID)
	}
	usr.ID = oid.Hex()
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, role user.Role, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	cur, err := repo.db.users(role).Find(ctx, queryFilter(filter), options.Find().SetSort(sortBy(ordering)))
	if err != nil {
		return nil, errors.Wrap(err, "finding users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}

	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		usr, err := doc.toUser(role)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func queryFilter(filter *user.QueryFilter) bson.M {
	q := bson.M{}
	if filter == nil {
		return q
	}
	if filter.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"firstName": rx},
			bson.M{"lastName": rx},
			bson.M{"email": rx},
		}
	}
	if filter.ClassLevel != 0 {
		q["classLevel"] = filter.ClassLevel
	}
	if filter.ClassType != "" {
		q["classType"] = filter.ClassType
	}
	return q
}

func sortBy(ordering []core.DBOrdering) bson.D {
	sort := make(bson.D, 0, len(ordering)+1)
	for _, o := range ordering {
		key, ok := orderingKeys[o.Field]
		if !ok {
			continue
		}
		dir := -1
		if o.Ascending {
			dir = 1
		}
		sort = append(sort, bson.E{Key: key, Value: dir})
	}
	// insertion order
	return append(sort, bson.E{Key: "_id", Value: 1})
}

func (repo *userRepository) GetUser(ctx context.Context, role user.Role, filter user.GetFilter) (user.User, error) {
	var q bson.M
	switch {
	case filter.ID != "":
		oid, err := primitive.ObjectIDFromHex(filter.ID)
		if err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = bson.M{"_id": oid}
	case filter.Email != "":
		q = bson.M{"email": filter.Email}
	default:
		return user.User{}, user.ErrNotFound
	}

	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc userDoc
	if err := repo.db.users(role).FindOne(ctx, q).Decode(&doc); err != nil {
		return user.User{}, trapNoDocsErr(errors.Wrap(err, "finding user"))
	}
	return doc.toUser(role)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(usr.ID)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	set := bson.M{
		"firstName":      usr.FirstName,
		"lastName":       usr.LastName,
		"contactNumber":  usr.ContactNumber,
		"profilePicture": usr.ProfilePicture,
		"updatedAt":      usr.UpdatedAt,
	}
	if len(usr.PasswordHash) > 0 {
		set["password"] = string(usr.PasswordHash)
	}
	if usr.IsStudent() {
		set["classLevel"] = usr.ClassLevel
		set["classType"] = usr.ClassType.Code()
	}

	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc userDoc
	err = repo.db.users(usr.Role).FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return user.User{}, trapNoDocsErr(errors.Wrap(err, "updating user"))
	}
	return doc.toUser(usr.Role)
}

func (repo *userRepository) DeleteUser(ctx context.Context, role user.Role, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.ErrNotFound
	}

	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	res, err := repo.db.users(role).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if res.DeletedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

// LatestRollNumber returns the roll number of the last student inserted in bucket `b`.
func (repo *userRepository) LatestRollNumber(ctx context.Context, b classroom.Bucket) (string, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	// students keep their roll number when their class changes, so only the prefix tells the bucket
	q := bson.M{"id": primitive.Regex{Pattern: "^" + b.Key() + "-"}}
	var doc userDoc
	err := repo.db.users(user.RoleStudent).
		FindOne(ctx, q, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "finding latest roll number")
	}
	return doc.RollNumber, nil
}
