package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for the domain model
var (
	ErrEmptyContent = goerr.New("content is required")
)
