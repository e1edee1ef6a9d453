package flow

import (
	"context"
	"strings"

	"deedwizard/internal/draft"
	"deedwizard/internal/partners"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
	pstrings "deedwizard/pkg/platform/strings"
)

// ErrUnknownField is returned by JumpTo when no step has the field.
var ErrUnknownField = dErrors.New(dErrors.CodeNotFound, "no step for field")

// Drafts is the part of the draft store the engine needs.
type Drafts interface {
	Read(mode domain.Mode) draft.Draft
	Write(ctx context.Context, mode domain.Mode, patch draft.Answers) bool
}

// Engine walks one draft through a flow. The cursor is an index in
// [0, Len]; Len is the review position. Visibility is re-evaluated against the
// latest draft on every call, so a later answer can hide or reveal an earlier
// step.
type Engine struct {
	def      *Definition
	drafts   Drafts
	mode     domain.Mode
	index    int
	partners []partners.Partner
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// AtIndex restores a cursor, clamped to [0, Len].
func AtIndex(i int) EngineOption {
	return func(e *Engine) {
		e.index = i
	}
}

// WithPartners supplies the partner directory to option providers.
func WithPartners(list []partners.Partner) EngineOption {
	return func(e *Engine) {
		e.partners = list
	}
}

func NewEngine(def *Definition, drafts Drafts, mode domain.Mode, opts ...EngineOption) *Engine {
	e := &Engine{def: def, drafts: drafts, mode: mode}
	for _, opt := range opts {
		opt(e)
	}
	e.index = e.clamp(e.index)
	return e
}

func (e *Engine) clamp(i int) int {
	return max(0, min(i, e.def.Len()))
}

// Index is the raw cursor.
func (e *Engine) Index() int {
	return e.index
}

// Definition is the flow being walked.
func (e *Engine) Definition() *Definition {
	return e.def
}

// resolve returns the first visible step at or after i, or Len.
func (e *Engine) resolve(d draft.Draft, i int) int {
	for ; i < e.def.Len(); i++ {
		if e.def.Steps[i].IsVisible(d) {
			return i
		}
	}
	return e.def.Len()
}

// Current returns the visible step at or after the cursor. ok is false at
// review.
func (e *Engine) Current() (Step, bool) {
	i := e.resolve(e.drafts.Read(e.mode), e.index)
	if i == e.def.Len() {
		return Step{}, false
	}
	return e.def.Steps[i], true
}

// AtReview reports whether no visible step remains at or after the cursor.
func (e *Engine) AtReview() bool {
	_, ok := e.Current()
	return !ok
}

// Advance moves to the next visible step, stopping at review. There is no
// validation gate; required fields may be left empty.
func (e *Engine) Advance() int {
	d := e.drafts.Read(e.mode)
	cur := e.resolve(d, e.index)
	if cur < e.def.Len() {
		cur = e.resolve(d, cur+1)
	}
	e.index = cur
	return e.index
}

// Retreat moves to the previous visible step, stopping at 0.
func (e *Engine) Retreat() int {
	d := e.drafts.Read(e.mode)
	for i := min(e.index, e.def.Len()) - 1; i >= 0; i-- {
		if e.def.Steps[i].IsVisible(d) {
			e.index = i
			return e.index
		}
	}
	e.index = 0
	return e.index
}

// JumpTo moves the cursor to the first step with the field. If that step is
// currently hidden, Current resolves forward from it.
func (e *Engine) JumpTo(field string) (int, error) {
	i, ok := e.def.IndexOf(field)
	if !ok {
		return e.index, ErrUnknownField
	}
	e.index = i
	return e.index, nil
}

// SetAnswer writes one answer through the draft store and reports whether it
// was applied.
func (e *Engine) SetAnswer(ctx context.Context, field string, value any) bool {
	return e.drafts.Write(ctx, e.mode, draft.Answers{field: value})
}

// StepView is what a client renders for the cursor position.
type StepView struct {
	Index    int      `json:"index"`
	Review   bool     `json:"review"`
	Position int      `json:"position"`
	Total    int      `json:"total"`
	Field    string   `json:"field,omitempty"`
	Question string   `json:"question,omitempty"`
	Kind     Kind     `json:"kind,omitempty"`
	Required bool     `json:"required,omitempty"`
	Options  []Option `json:"options,omitempty"`
	Value    any      `json:"value,omitempty"`
	// Prefill is the verified fact offered when the field is unanswered.
	Prefill string `json:"prefill,omitempty"`
}

// View renders the cursor position against the latest draft. The cursor is
// snapped to the resolved visible step.
func (e *Engine) View() StepView {
	d := e.drafts.Read(e.mode)
	e.index = e.resolve(d, e.index)

	view := StepView{Index: e.index, Review: e.index == e.def.Len()}
	for i, step := range e.def.Steps {
		if !step.IsVisible(d) {
			continue
		}
		view.Total++
		if i <= e.index {
			view.Position = view.Total
		}
	}
	if view.Review {
		view.Position = view.Total
		return view
	}

	step := e.def.Steps[e.index]
	view.Field = step.Field
	view.Question = step.Question
	view.Kind = step.Kind
	view.Required = step.Required
	view.Options = step.OptionsFor(OptionContext{
		OwnerNames: ownerNames(d.VerifiedProperty),
		Partners:   e.partners,
	})
	view.Value = d.Answers[step.Field]
	if !d.Answers.Has(step.Field) {
		view.Prefill = VerifiedValue(step.Field, d.VerifiedProperty)
	}
	return view
}

func ownerNames(facts *draft.PropertyFacts) []string {
	if facts == nil {
		return nil
	}
	return facts.OwnerNames
}

// VerifiedValue is the verified fact that corresponds to a draft field, or
// "" when there is none.
func VerifiedValue(field string, facts *draft.PropertyFacts) string {
	if facts == nil {
		return ""
	}
	switch field {
	case FieldPropertyAddress:
		return strings.TrimSpace(facts.Address)
	case FieldAPN:
		return strings.TrimSpace(facts.ParcelID)
	case FieldCounty:
		return strings.TrimSpace(facts.County)
	case FieldLegalDescription:
		return strings.TrimSpace(facts.LegalDescription)
	case FieldGrantorName:
		return JoinNames(facts.OwnerNames)
	default:
		return ""
	}
}

// JoinNames renders several party names the way they appear on a deed.
func JoinNames(names []string) string {
	return strings.Join(pstrings.DedupeFold(names), " and ")
}
