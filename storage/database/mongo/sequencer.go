package mongorepos

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myschool/backend/core/classroom"
)

type seqDoc struct {
	Bucket string `bson:"_id"`
	Seq    int    `bson:"seq"`
}

// sequencer keeps one counter document per bucket; $inc on a single document is atomic.
type sequencer struct {
	db     *DB
	finder classroom.LatestFinder
}

func NewSequencer(db *DB) classroom.Sequencer {
	return &sequencer{db: db, finder: NewUserRepository(db)}
}

func (s *sequencer) NextSequence(ctx context.Context, b classroom.Bucket) (int, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	coll := s.db.Database.Collection(sequencesCollection)
	key := b.Key()

	// a missing counter is seeded then incremented on the second pass
	for pass := 0; pass < 2; pass++ {
		var doc seqDoc
		err := coll.FindOneAndUpdate(
			ctx,
			bson.M{"_id": key},
			bson.M{"$inc": bson.M{"seq": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err == nil {
			return doc.Seq, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return 0, errors.Wrap(err, "incrementing roll sequence")
		}

		seed, err := classroom.SeedFrom(ctx, s.finder, b)
		if err != nil {
			return 0, err
		}
		// $max keeps a counter created concurrently by another writer
		_, err = coll.UpdateOne(
			ctx,
			bson.M{"_id": key},
			bson.M{"$max": bson.M{"seq": seed}},
			options.Update().SetUpsert(true),
		)
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return 0, errors.Wrap(err, "seeding roll sequence")
		}
	}
	return 0, errors.Errorf("roll sequence %s could not be seeded", key)
}
