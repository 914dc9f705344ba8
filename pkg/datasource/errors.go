package datasource

// ValidationError reports invalid caller input, such as an empty SQL
// statement or table name. Never retried.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a resource that was absent after exhausting all
// candidate lookups.
type NotFoundError struct {
	Message string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return e.Message
}
