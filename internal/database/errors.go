package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database file does
	// not exist and creation was not requested.
	ErrDatabaseNotFound = errors.New("history database not found")

	// ErrRunNotFound is returned for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoRuns is returned when the history is empty.
	ErrNoRuns = errors.New("no runs recorded")
)
