package statemachine

import "errors"

var (
	ErrNoTransition = errors.New("statemachine: no transition available")
	ErrActionFailed = errors.New("statemachine: transition action failed")
)
