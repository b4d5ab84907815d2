package mysql

import (
	"fmt"
	"strings"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

func mapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "float", "double":
		return "DOUBLE"
	default:
		return "VARCHAR(255)"
	}
}

// BuildCreateTableSQL renders CREATE TABLE IF NOT EXISTS for MySQL with
// backtick-quoted identifiers.
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("mysql ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mysql ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("mysql ddl: column with empty name in table %s", fqn)
		}
		def := myIdent(name) + " " + mapType(c.Type)
		if !c.Nullable || c.PrimaryKey {
			def += " NOT NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, myIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n) CHARACTER SET ascii;",
		myFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}
