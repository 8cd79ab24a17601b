// Package errors classifies failures into the taxonomy of spec.md §7
// (configuration, auth, transient backend, stale pagination, invalid
// content, vector-store write/delete, raw-file save), adapted from the
// teacher's protocol-spanning standard_errors.go down to the single
// concern the indexing engine needs: deciding whether a failure should
// abort a batch immediately or go through the connector retry path.
package errors

import (
	stderrors "errors"
)

// Code names one branch of spec.md §7's error taxonomy.
type Code string

const (
	CodeConfiguration      Code = "configuration"
	CodeAuth               Code = "auth"
	CodeTransient          Code = "transient"
	CodeStalePagination    Code = "stale_pagination"
	CodeInvalidContent     Code = "invalid_content"
	CodeVectorStoreWrite   Code = "vector_store_write"
	CodeVectorStoreDelete  Code = "vector_store_delete"
	CodeRawFileSave        Code = "raw_file_save"
	CodeInternal           Code = "internal"
)

// StatusCoder is satisfied by connector errors that carry an HTTP
// status, without this package depending on the connector package's
// unexported error type.
type StatusCoder interface {
	Status() int
}

// Classify inspects err (following its wrap chain) and returns the
// taxonomy code spec.md §7 assigns to it. A plain error with no status
// code classifies as CodeInternal.
func Classify(err error) Code {
	if err == nil {
		return ""
	}
	var sc StatusCoder
	if stderrors.As(err, &sc) {
		switch status := sc.Status(); {
		case status == 401 || status == 403:
			return CodeAuth
		case status == 400 || status == 404 || status == 410:
			return CodeStalePagination
		case status == 429 || status >= 500:
			return CodeTransient
		}
	}
	return CodeInternal
}

// IsAuth reports whether err represents a credential rejection, which
// spec.md §7 says must surface as an immediate run failure rather than
// going through the connector's within-batch retry/backoff path.
func IsAuth(err error) bool {
	return Classify(err) == CodeAuth
}
