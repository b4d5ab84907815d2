package sqlite

import (
	"fmt"
	"strings"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// mapType maps a logical column type into a SQLite column affinity.
func mapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "INTEGER"
	case "float", "double", "real":
		return "REAL"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement for the given
// table definition. The statement has the form:
//
//	CREATE TABLE IF NOT EXISTS "table" (
//	  "col1" TYPE [NOT NULL],
//	  "col2" TYPE,
//	  PRIMARY KEY ("pk1")
//	);
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("sqlite ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("sqlite ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("sqlite ddl: column with empty name in table %s", fqn)
		}

		var sb strings.Builder
		sb.WriteString(quoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(mapType(c.Type))
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quoteIdent(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdent(c)
	}
	return out
}
