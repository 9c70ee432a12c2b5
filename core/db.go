package core

// DBOrdering is one "ORDER BY" term. Field is the API (JSON) name of the field;
// each store maps it to its own column/key.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
