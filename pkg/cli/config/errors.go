package config

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidOption  = goerr.New("invalid configuration option")
	ErrNoBackends     = goerr.New("no storage backend configured")
	ErrMissingProject = goerr.New("firestore backend requires a project ID")
)
