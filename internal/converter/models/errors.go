package models

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidArgument      = errors.New("invalid arguments")
	ErrUnknownFormat        = errors.New("unknown format")
	ErrUnsupportedFile      = errors.New("unsupported file type")
	ErrNoFile               = errors.New("no file selected")
	ErrConversionInProgress = errors.New("conversion already in progress")
	ErrNoArtifact           = errors.New("no converted file available")
)
