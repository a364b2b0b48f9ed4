package authz

import "errors"

var (
	ErrNotFound       = errors.New("authz: not found")
	ErrConflict       = errors.New("authz: resource conflict")
	ErrInvalidInput   = errors.New("authz: invalid input")
	ErrDuplicateRoute = errors.New("authz: duplicate route")
	ErrNameConflict   = errors.New("authz: role name conflict")
)
