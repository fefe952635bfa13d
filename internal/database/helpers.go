package database

import "database/sql"

// execRequireRows checks that an ExecContext result touched at least one row,
// returning notFoundErr when it did not.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
