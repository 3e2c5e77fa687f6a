// Package sqlxrepos implements the core repositories on Postgres with sqlx.
package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
)

// executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	sqlx.Ext
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
}

var (
	_ executor = (*sqlx.DB)(nil)
	_ executor = (*sqlx.Tx)(nil)
)

// inTx runs fn inside a transaction, rolled back when fn fails.
func inTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return dbError(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// dbError wraps err with msg. A lost connection becomes a shutdown error so
// the API stops serving instead of failing every request.
func dbError(err error, msg string) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return core.NewShutdownError(msg + ": " + err.Error())
	}
	return errors.Wrap(err, msg)
}
