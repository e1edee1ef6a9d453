package handler

import (
	"strings"

	"deedwizard/internal/draft"
	dErrors "deedwizard/pkg/domain-errors"
)

// StartRequest binds a draft to a document type.
type StartRequest struct {
	DocumentType string `json:"documentType"`
}

func (r *StartRequest) Validate() error {
	r.DocumentType = strings.TrimSpace(r.DocumentType)
	if r.DocumentType == "" {
		return dErrors.New(dErrors.CodeValidation, "documentType is required")
	}
	return nil
}

// AnswersRequest merges answers into a draft. A null value removes the
// answer.
type AnswersRequest struct {
	Answers draft.Answers `json:"answers"`
}

const maxAnswersPerPatch = 100

func (r *AnswersRequest) Validate() error {
	if len(r.Answers) == 0 {
		return dErrors.New(dErrors.CodeValidation, "answers must not be empty")
	}
	if len(r.Answers) > maxAnswersPerPatch {
		return dErrors.New(dErrors.CodeValidation, "too many answers in one patch")
	}
	for field := range r.Answers {
		if strings.TrimSpace(field) == "" {
			return dErrors.New(dErrors.CodeValidation, "answer field names must not be blank")
		}
	}
	return nil
}

// MoveRequest carries the client's current step index.
type MoveRequest struct {
	Index int `json:"index"`
}

func (r *MoveRequest) Validate() error {
	if r.Index < 0 {
		return dErrors.New(dErrors.CodeValidation, "index must not be negative")
	}
	return nil
}

// JumpRequest names the field to jump to.
type JumpRequest struct {
	Field string `json:"field"`
}

func (r *JumpRequest) Validate() error {
	r.Field = strings.TrimSpace(r.Field)
	if r.Field == "" {
		return dErrors.New(dErrors.CodeValidation, "field is required")
	}
	return nil
}
