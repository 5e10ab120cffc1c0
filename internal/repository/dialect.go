package repository

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Supported store types.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// dialect captures the SQL differences between the supported databases.
type dialect struct {
	name     string
	driver   string
	docType  string // column type for JSON documents
	textType string // column type for indexed strings
}

var dialects = map[string]dialect{
	DialectSQLite:   {name: DialectSQLite, driver: "sqlite", docType: "TEXT", textType: "TEXT"},
	DialectPostgres: {name: DialectPostgres, driver: "postgres", docType: "JSONB", textType: "TEXT"},
	DialectMySQL:    {name: DialectMySQL, driver: "mysql", docType: "JSON", textType: "VARCHAR(191)"},
}

func lookupDialect(name string) (dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported store type %q", name)
	}
	return d, nil
}

// placeholder returns the n-th (1-based) bind parameter.
func (d dialect) placeholder(n int) string {
	if d.name == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d dialect) placeholders(count int) string {
	ps := make([]string, count)
	for i := range ps {
		ps[i] = d.placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

// upsert builds an insert that replaces every non-key column on key conflict.
func (d dialect) upsert(table, key string, cols []string) string {
	all := append([]string{key}, cols...)
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), d.placeholders(len(all)))

	sets := make([]string, len(cols))
	switch d.name {
	case DialectMySQL:
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		fmt.Fprintf(&b, " ON DUPLICATE KEY UPDATE %s", strings.Join(sets, ", "))
	default:
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
	}
	return b.String()
}

// schema returns the DDL statements, one per Exec.
func (d dialect) schema() []string {
	recordTable := func(table string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGINT PRIMARY KEY,
				player_id BIGINT NOT NULL,
				item_string_id %s NOT NULL,
				state %s NOT NULL,
				data %s NOT NULL,
				updated_at BIGINT NOT NULL
			)`, table, d.textType, d.textType, d.docType),
			d.createIndex("idx_"+table+"_player", table, "player_id"),
			d.createIndex("idx_"+table+"_item", table, "item_string_id"),
		}
	}

	stmts := append(recordTable("ge_sell_offers"), recordTable("ge_buy_orders")...)
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ge_player_state (
		player_id BIGINT PRIMARY KEY,
		player_name %s NOT NULL,
		data %s NOT NULL,
		updated_at BIGINT NOT NULL
	)`, d.textType, d.docType))
	return stmts
}

func (d dialect) createIndex(name, table, col string) string {
	if d.name == DialectMySQL {
		// MySQL has no IF NOT EXISTS for indexes; isDuplicateIndex filters the rerun error.
		return fmt.Sprintf("CREATE INDEX %s ON %s(%s)", name, table, col)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", name, table, col)
}
