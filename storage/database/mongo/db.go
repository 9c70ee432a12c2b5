package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/user"
)

const (
	sequencesCollection = "roll_sequences"

	emailIndex      = "email_unique"
	rollNumberIndex = "roll_number_unique"
)

// DB is a connected mongo database. Every operation is bounded by Timeout.
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
	Timeout  time.Duration
}

// Connect connects to conf.Database.URI and pings the server.
func Connect(ctx context.Context, conf *core.Config) (*DB, error) {
	timeout := conf.Database.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetAppName(conf.AppName).
		SetTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongo")
	}
	return &DB{
		Client:   client,
		Database: client.Database(conf.Database.Name),
		Timeout:  timeout,
	}, nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

func (db *DB) users(role user.Role) *mongo.Collection {
	return db.Database.Collection(role.Collection())
}

// withTimeout bounds ctx by db.Timeout.
func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.Timeout)
}

// EnsureIndexes creates the unique indexes backing email and roll number uniqueness.
func EnsureIndexes(ctx context.Context, db *DB) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	for _, role := range user.AllRoles {
		models := []mongo.IndexModel{{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(emailIndex).SetUnique(true),
		}}
		if role == user.RoleStudent {
			models = append(models,
				mongo.IndexModel{
					Keys:    bson.D{{Key: "id", Value: 1}},
					Options: options.Index().SetName(rollNumberIndex).SetUnique(true),
				},
				mongo.IndexModel{
					Keys: bson.D{{Key: "classLevel", Value: 1}, {Key: "classType", Value: 1}, {Key: "_id", Value: -1}},
				},
			)
		}
		if _, err := db.users(role).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", role.Collection())
		}
	}
	return nil
}
