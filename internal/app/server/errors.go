package server

import "errors"

var (
	ErrStatusNotAPlayer         string = "NOT_A_PLAYER"
	ErrStatusInvalidAction      string = "INVALID_ACTION"
	ErrStatusSubmissionInFlight string = "SUBMISSION_IN_FLIGHT"
	ErrStatusNotInMatch         string = "NOT_IN_MATCH"
	ErrStatusNoProblem          string = "NO_PROBLEM_AVAILABLE"
)

var (
	ErrNotAPlayer         = errors.New("requester is not a player of this match")
	ErrInvalidTransition  = errors.New("match status does not permit this transition")
	ErrNoProblemAvailable = errors.New("no problem available for rating bucket")
)
