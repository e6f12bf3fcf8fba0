package service

import "errors"

var (
	// ErrInvalidTransition means a tier change was requested out of order or
	// the record changed under the caller. Fatal to that item only.
	ErrInvalidTransition = errors.New("invalid tier transition")
	// ErrStorageWriteFailed means the destination backend rejected the write
	// and no metadata was recorded.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrInvalidFile means the upload payload is empty or not a supported
	// image format.
	ErrInvalidFile = errors.New("invalid file")
	// ErrPassInProgress means a lifecycle pass is already running.
	ErrPassInProgress = errors.New("lifecycle pass already in progress")
)
