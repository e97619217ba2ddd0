package domain

import "errors"

var (
	// ErrDuplicateTool is returned by the registry when adding a tool whose
	// name already exists and replacement was not requested.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrToolNotFound is returned on name lookups and removals of absent tools.
	ErrToolNotFound = errors.New("tool not found")
	// ErrSchemaNotFound indicates the tool server did not advertise the
	// requested tool during hydration.
	ErrSchemaNotFound = errors.New("schema not advertised by tool server")
	// ErrNotConfirmed is returned when hydrating a tool that never passed
	// candidate confirmation.
	ErrNotConfirmed = errors.New("tool not confirmed")
	// ErrUnknownToolCall marks a generated call referencing a tool absent
	// from the active set. Such calls are rejected before dispatch.
	ErrUnknownToolCall = errors.New("tool call references unknown tool")
	// ErrMalformedIntent indicates the model's structured intent output
	// failed strict validation after retry.
	ErrMalformedIntent = errors.New("malformed intent payload")
	// ErrIllegalTransition indicates a stage transition outside the table.
	ErrIllegalTransition = errors.New("illegal stage transition")
	// ErrStoreClosed indicates use of a closed registry store.
	ErrStoreClosed = errors.New("registry store is closed")
	// ErrEmbedderRequired indicates semantic search was selected without a
	// configured embedder.
	ErrEmbedderRequired = errors.New("semantic search requires an embedder")
	// ErrInvalidLocator indicates an unparsable or unsupported tool locator.
	ErrInvalidLocator = errors.New("invalid tool locator")
	// ErrCommandNotAllowed indicates a stdio locator naming a command
	// outside the allowlist.
	ErrCommandNotAllowed = errors.New("locator command not allowed")
	// ErrEmptyQuery indicates a blank user query.
	ErrEmptyQuery = errors.New("query is empty")
)
