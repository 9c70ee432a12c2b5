package sqlxrepos

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/storage/database"
)

// testYear keeps the rows written here apart from real buckets.
const testYear = 99

// openTestDB connects to POSTGRES_TEST_DSN through the pgx driver and migrates it, skipping when unset or unreachable.
func openTestDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	db, err := sqlx.Open("pgx", dsn)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("postgres unavailable: %v", err)
	}
	require.NoError(t, database.Migrate(db.DB))

	clean := func() {
		_, _ = db.Exec("DELETE FROM roll_sequences WHERE bucket LIKE '99%'")
		_, _ = db.Exec("DELETE FROM students WHERE roll_number LIKE '99%'")
	}
	clean()
	t.Cleanup(func() {
		clean()
		_ = db.Close()
	})
	return db
}

func TestSequencer_NextSequence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seq := NewSequencer(db)

	t.Run("seeded from existing records", func(t *testing.T) {
		now := time.Now().UTC()
		_, err := NewUserRepository(db).CreateUser(ctx, user.User{
			Role:          user.RoleStudent,
			FirstName:     "Ada",
			LastName:      "Lovelace",
			Email:         "ada.seed@school.com",
			ContactNumber: "08012345678",
			Enrollment:    &user.Enrollment{RollNumber: "990911-041", ClassLevel: 9, ClassType: classroom.Science},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		require.NoError(t, err)

		b := classroom.Bucket{Year: testYear, Level: 9, Type: classroom.Science}
		got, err := seq.NextSequence(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, 42, got)

		got, err = seq.NextSequence(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, 43, got)
	})

	t.Run("concurrent first allocations", func(t *testing.T) {
		const n = 20
		b := classroom.Bucket{Year: testYear, Level: 9, Type: classroom.Arts}

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			got []int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := seq.NextSequence(ctx, b)
				assert.NoError(t, err)
				mu.Lock()
				got = append(got, s)
				mu.Unlock()
			}()
		}
		wg.Wait()

		sort.Ints(got)
		want := make([]int, n)
		for i := range want {
			want[i] = i + 1
		}
		assert.Equal(t, want, got)
	})
}
