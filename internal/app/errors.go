package app

import (
	"errors"

	"docinsight/internal/pkg/extract"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")

	ErrDocumentNotFound     = errors.New("document not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrFileMissing          = errors.New("document file missing from storage")
	ErrUnsupportedFileType  = extract.ErrUnsupportedFileType
	ErrFileTooLarge         = errors.New("file too large")

	ErrNoChunks            = errors.New("document has no chunks")
	ErrNoAnalyses          = errors.New("no chunk could be analyzed")
	ErrDocumentBusy        = errors.New("document analysis already running")
	ErrDocumentNotRunnable = errors.New("document analysis already finished")
	ErrRunLockLost         = errors.New("document run lock lost")
	ErrIllegalTransition   = errors.New("illegal document status transition")
)
