package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrProfileNotFound    = errors.New("patient profile not found")

	ErrActivityNotFound     = errors.New("activity not found")
	ErrActivityItemNotFound = errors.New("activity item not found")
	ErrNoPendingItem        = errors.New("no valid activity items found to start")
	ErrItemTerminated       = errors.New("activity item is already in a terminal state")
	ErrActivityCompleted    = errors.New("activity is already completed")
	ErrInvalidAnswer        = errors.New("invalid answer payload")
	ErrInvalidRecording     = errors.New("invalid recording")

	ErrUpstreamFailure = errors.New("upstream collaborator failure")
	ErrStorageFailure  = errors.New("storage failure")
	ErrGenerationLimit = errors.New("daily activity generation limit reached")
)
