package mssql

import (
	"fmt"
	"strings"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// mapType maps a logical column type to a SQL Server type. Catalogue values
// are short decimal strings, so text columns are bounded NVARCHARs.
func mapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "float", "double":
		return "FLOAT"
	default:
		return "NVARCHAR(255)"
	}
}

// BuildCreateTableSQL renders a guarded CREATE TABLE for SQL Server, which has
// no IF NOT EXISTS clause:
//
//	IF OBJECT_ID(N'dbo.t', N'U') IS NULL
//	CREATE TABLE [dbo].[t] (
//	  [rank] BIGINT NOT NULL,
//	  ...,
//	  PRIMARY KEY ([rank])
//	);
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("mssql ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("mssql ddl: column with empty name in table %s", fqn)
		}
		null := " NULL"
		if !c.Nullable || c.PrimaryKey {
			null = " NOT NULL"
		}
		cols = append(cols, msIdent(name)+" "+mapType(c.Type)+null)
		if c.PrimaryKey {
			pks = append(pks, msIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(%s, N'U') IS NULL\nCREATE TABLE %s (\n  %s\n);",
		msLiteral(fqn),
		msFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}
