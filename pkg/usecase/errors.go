package usecase

import "github.com/m-mizutani/goerr/v2"

var (
	ErrThoughtNotFound = goerr.New("thought not found")
	ErrSelfAssociation = goerr.New("cannot associate a thought with itself")
	ErrNotForgettable  = goerr.New("thought does not meet forgetting criteria")
)
