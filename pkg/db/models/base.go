package models

import "github.com/google/uuid"

// assignID gives rows a client-side identifier so inserts behave the same on
// Postgres and the SQLite test database.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
