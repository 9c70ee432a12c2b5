package inmemdb

import (
	"sync"

	"github.com/myschool/backend/core/user"
)

type (
	// DB keeps one table per user.Role plus the roll number counters.
	DB struct {
		users *userTables
		seqs  *seqTable
	}

	userRow struct {
		rowID int
		usr   user.User
	}

	userTables struct {
		sync.RWMutex
		lastRowID int
		tables    map[user.Role]map[string]*userRow // {role: {id: row}}
	}

	seqTable struct {
		sync.Mutex
		table map[string]int // {bucket key: last issued seq}
	}
)

func Open() *DB {
	tables := make(map[user.Role]map[string]*userRow, len(user.AllRoles))
	for _, role := range user.AllRoles {
		tables[role] = make(map[string]*userRow)
	}
	return &DB{
		users: &userTables{tables: tables},
		seqs:  &seqTable{table: make(map[string]int)},
	}
}
