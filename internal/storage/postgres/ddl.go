package postgres

import (
	"fmt"
	"strings"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// mapType maps a logical column type to a Postgres type.
func mapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "float", "double":
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL builds a deterministic Postgres CREATE TABLE statement
// for the given table definition.
//
// Rules:
//   - t.FQN must be non-empty.
//   - Each column must have a non-empty Name.
//   - Primary-key columns are always rendered as NOT NULL, even if Nullable=true.
//   - PRIMARY KEY is rendered as a separate constraint clause.
//   - Identifiers are double-quoted; embedded double-quotes are escaped.
//   - The statement uses CREATE TABLE IF NOT EXISTS.
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("postgres ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("postgres ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("postgres ddl: column with empty name in table %s", fqn)
		}

		var sb strings.Builder
		sb.WriteString(pgIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(mapType(c.Type))
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, pgIdent(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		pgFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}
