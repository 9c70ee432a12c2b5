package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/storage/database"
	"github.com/myschool/backend/storage/database/inmem"
	"github.com/myschool/backend/storage/database/mongo"
	"github.com/myschool/backend/storage/database/sqlx"
	"github.com/myschool/backend/storage/redis"
)

var ErrUnknownEngine = errors.New("unknown database engine")

type repository interface {
	user.Repository
	classroom.LatestFinder
}

// Store is the record store selected by conf.Database.Engine, with its roll number Sequencer.
type Store struct {
	Repo      user.Repository
	Sequencer classroom.Sequencer

	// SQL is set for the postgres and pgx engines only.
	SQL *sqlx.DB

	closers []func(ctx context.Context) error
}

// Open connects to the configured engine, preparing its schema (indexes or migrations),
// and to redis when conf.Roll.Sequencer is "redis".
func Open(ctx context.Context, conf *core.Config) (*Store, error) {
	var (
		st   Store
		repo repository
	)

	switch conf.Database.Engine {
	case "mongo":
		db, err := mongorepos.Connect(ctx, conf)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
		if err = mongorepos.EnsureIndexes(ctx, db); err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		repo = mongorepos.NewUserRepository(db)
		st.Sequencer = mongorepos.NewSequencer(db)

	case "postgres", "pgx":
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		st.SQL = db
		st.closers = append(st.closers, func(context.Context) error { return db.Close() })
		if err = database.Migrate(db.DB); err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		repo = sqlxrepos.NewUserRepository(db)
		st.Sequencer = sqlxrepos.NewSequencer(db)

	case "memory":
		db := inmemdb.Open()
		repo = inmemdb.NewUserRepository(db)
		st.Sequencer = inmemdb.NewSequencer(db)

	default:
		return nil, errors.Wrap(ErrUnknownEngine, conf.Database.Engine)
	}
	st.Repo = repo

	if conf.Roll.Sequencer == "redis" {
		rdb, err := redisstore.Open(ctx, conf)
		if err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return rdb.Close() })
		st.Sequencer = redisstore.NewSequencer(rdb, repo)
	}
	return &st, nil
}

// Close releases the connections in reverse order of opening.
func (st *Store) Close(ctx context.Context) error {
	var firstErr error
	for i := len(st.closers) - 1; i >= 0; i-- {
		if err := st.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	st.closers = nil
	return firstErr
}
