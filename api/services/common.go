package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

// SystemViewer acts with owner rights on behalf of the process itself (seeding, CLI).
var SystemViewer = &visibility.Viewer{Role: ontology.RoleOwner}

type scanner interface {
	Scan(dest ...interface{}) error
}

func actorID(viewer *visibility.Viewer) string {
	if viewer == nil {
		return ""
	}
	return viewer.UserID
}

func requireViewer(viewer *visibility.Viewer) error {
	if viewer == nil {
		return fmt.Errorf("%w: authentication required", shared.ErrUnauthorized)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

func notFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", shared.ErrNotFound, entity, id)
}

func forbidden(action string) error {
	return fmt.Errorf("%w: not allowed to %s", shared.ErrForbidden, action)
}

func checkAffected(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json: %w", err)
	}
	return string(b), nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
