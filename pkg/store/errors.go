package store

import "errors"

// ErrDocumentNotFound indicates no document exists for the given id.
var ErrDocumentNotFound = errors.New("document not found")
