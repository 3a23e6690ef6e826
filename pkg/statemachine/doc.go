// Package statemachine implements small finite state machines over string
// states and events.
//
// A Definition holds the transition table and is built once:
//
//	def := statemachine.NewDefinition[State, Event](Initiated).
//	    Permit(Initiated, CallbackArrived, CallbackReceived).
//	    Permit(CallbackReceived, ExchangeSucceeded, Completed).
//	    Permit(CallbackReceived, ExchangeFailed, Failed)
//
// Each run gets its own Machine from def.Start(). Firing an event with no
// registered transition returns ErrNoTransition; a failing action returns
// ErrActionFailed and the state does not change.
package statemachine
