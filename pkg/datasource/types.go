package datasource

// Row is one result row of a query, keyed by column name.
type Row map[string]any

// TableDescriptor describes a table as reported by the backend. The
// backend may group tables under a schema descriptor, in which case the
// nested Tables list carries the actual names.
type TableDescriptor struct {
	Name   string            `json:"name"`
	Schema string            `json:"schema,omitempty"`
	Tables []TableDescriptor `json:"tables,omitempty"`
}

// ColumnDescriptor describes one column of a table.
type ColumnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema is the resolved schema of a table. Columns and Types are
// parallel slices.
type TableSchema struct {
	TableName string   `json:"tableName"`
	Columns   []string `json:"columns"`
	Types     []string `json:"types"`
}

// envelope is the backend's JSON response format. success=false with
// HTTP 200 is a reported application error, distinct from transport
// failure and never retried.
type envelope struct {
	Success bool               `json:"success"`
	Error   *envelopeError     `json:"error,omitempty"`
	Rows    []Row              `json:"rows,omitempty"`
	Tables  []TableDescriptor  `json:"tables,omitempty"`
	Columns []ColumnDescriptor `json:"columns,omitempty"`
}

type envelopeError struct {
	Message string `json:"message"`
}

// queryRequest is the body of a POST /query call.
type queryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// flattenTables collects table names from a descriptor list. A
// descriptor carrying a nested table list contributes its children; a
// flat descriptor contributes its own name.
func flattenTables(descriptors []TableDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		if len(descriptor.Tables) > 0 {
			for _, table := range descriptor.Tables {
				if table.Name != "" {
					names = append(names, table.Name)
				}
			}
			continue
		}
		if descriptor.Name != "" {
			names = append(names, descriptor.Name)
		}
	}
	return names
}
