package cache

import "strings"

// Cache keys are deterministic, colon-separated strings scoped by the
// operation family and the data source name:
//
//	query:{source}:{sql}
//	tables:{source}
//	schema:{source}:{table}

// QueryKey returns the cache key for a SQL query result.
func QueryKey(source, sql string) string {
	return strings.Join([]string{"query", source, sql}, ":")
}

// TablesKey returns the cache key for the table listing of a source.
func TablesKey(source string) string {
	return strings.Join([]string{"tables", source}, ":")
}

// SchemaKey returns the cache key for a table's schema.
func SchemaKey(source, table string) string {
	return strings.Join([]string{"schema", source, table}, ":")
}
