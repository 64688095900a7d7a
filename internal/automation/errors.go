package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrAutomationNotFound) {
//	    // handle not found case
//	}
var (
	// ErrAutomationNotFound is returned when an automation ID does not exist.
	ErrAutomationNotFound = errors.New("automation: not found")

	// ErrAutomationExists is returned when registering an ID twice.
	ErrAutomationExists = errors.New("automation: already exists")

	// ErrAutomationDisabled is returned when firing a disabled automation.
	ErrAutomationDisabled = errors.New("automation: disabled")

	// ErrInvalidAutomation is returned when automation validation fails.
	ErrInvalidAutomation = errors.New("automation: invalid")

	// ErrInvalidAction is returned when an automation action is invalid.
	ErrInvalidAction = errors.New("automation: invalid action")

	// ErrInvalidTrigger is returned when an automation trigger is invalid.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")

	// ErrExecutionNotFound is returned when an execution ID does not exist.
	ErrExecutionNotFound = errors.New("automation: execution not found")

	// ErrAlreadyStarted is returned when Engine.Start is called twice.
	ErrAlreadyStarted = errors.New("automation: engine already started")
)
