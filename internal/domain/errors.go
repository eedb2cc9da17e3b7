package domain

import "errors"

var (
	ErrMessageNotFound           = errors.New("intake message not found")
	ErrInvalidTransition         = errors.New("invalid message status transition")
	ErrClaimLost                 = errors.New("message already claimed or no longer eligible")
	ErrRunInProgress             = errors.New("an intake run is already in progress")
	ErrStoreUnavailable          = errors.New("attachment store unavailable")
	ErrAttachmentDownloadFailed  = errors.New("attachment download failed")
	ErrUnsupportedAttachmentType = errors.New("unsupported attachment type")
	ErrRecordProcessingFailed    = errors.New("record processing failed")
)
