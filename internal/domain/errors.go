package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Lesson errors
var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrSlideNotFound  = errors.New("slide not found")
	ErrInvalidSlide   = errors.New("invalid slide payload")
)

// Evaluation errors
var (
	ErrNotEvaluable = errors.New("slide has no correctness predicate")
	ErrSlideLocked  = errors.New("slide already answered on this visit")
)

// Investigation errors
var (
	ErrInvestigationClosed    = errors.New("investigation is in a terminal state")
	ErrInvalidPhaseTransition = errors.New("invalid investigation phase transition")
	ErrDialogueUnavailable    = errors.New("dialogue evaluation unavailable")
)

// Progress errors
var (
	ErrProgressNotFound = errors.New("progress not found")
	ErrUnknownSlideID   = errors.New("slide id not part of lesson")
	ErrStaleWrite       = errors.New("stale progress write rejected")
)

// Navigation errors
var (
	ErrIndexOutOfRange = errors.New("slide index out of range")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)
