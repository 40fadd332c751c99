package model

import "github.com/pkg/errors"

var (
	ErrUndefinedToken          = errors.New("undefined tick table")
	ErrUnrepresentableDuration = errors.New("unrepresentable duration")
	ErrOutOfRange              = errors.New("tick out of range")
	ErrInvalidRange            = errors.New("invalid range")
	ErrParse                   = errors.New("parse failure")
)
