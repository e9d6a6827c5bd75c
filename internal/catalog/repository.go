package catalog

import "database/sql"

// Executor abstracts *sql.DB and *sql.Tx so repository methods can run
// either standalone or inside a shared transaction. Grounded on the
// teacher's database.Executor interface.
type Executor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// baseRepository is embedded by each catalog sub-repository; exec resolves
// to the write handle and read to the read-only handle.
type baseRepository struct {
	db *DB
}

func (r *baseRepository) exec() Executor { return r.db.rw }
func (r *baseRepository) read() Executor { return r.db.ro }
