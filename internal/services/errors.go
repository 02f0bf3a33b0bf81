package services

import (
	"errors"

	"github.com/marketsquare/api/internal/repositories"
)

var (
	// ErrPermissionDenied indicates the actor's role does not allow the operation.
	ErrPermissionDenied = errors.New("services: permission denied")
	// ErrInvalidInput indicates a command failed validation.
	ErrInvalidInput = errors.New("services: invalid input")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("services: not found")
)

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
