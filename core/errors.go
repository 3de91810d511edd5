package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidQuestion indicates a question failed validation.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrEmptyText indicates the question text is empty.
	ErrEmptyText = errors.New("question text cannot be empty")

	// ErrTextTooLong indicates the question text exceeds the allowed length.
	ErrTextTooLong = errors.New("question text too long")

	// ErrInvalidQuestionID indicates a question ID is missing or malformed.
	ErrInvalidQuestionID = errors.New("invalid question id")
)
