// Package flow defines the wizard's questions per document type and walks a
// draft through them.
//
// The Registry is loaded from definitions.yaml (embedded, or an override
// file). Visibility rules and option providers are referenced by name and
// resolved against Go tables, so a definition can reorder or relabel steps
// but never introduce behavior the code does not know.
package flow

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"deedwizard/internal/draft"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
)

//go:embed definitions.yaml
var embeddedDefinitions []byte

// Kind is the input control of a step.
type Kind string

const (
	KindText   Kind = "text"
	KindSelect Kind = "select"
)

// Step is one question of a flow.
type Step struct {
	Field    string
	Question string
	Kind     Kind
	Required bool
	// Visible defaults to always.
	Visible Predicate
	// Options is set for select steps.
	Options OptionsProvider

	visibleRule string
	optionsName string
}

// IsVisible evaluates the visibility rule against the draft.
func (s Step) IsVisible(d draft.Draft) bool {
	if s.Visible == nil {
		return true
	}
	return s.Visible(d)
}

// OptionsFor returns de-duplicated suggestions, or nil for text steps.
func (s Step) OptionsFor(oc OptionContext) []Option {
	if s.Options == nil {
		return nil
	}
	return dedupeOptions(s.Options(oc))
}

// VisibilityRule is the rule name from the definition file.
func (s Step) VisibilityRule() string { return s.visibleRule }

// OptionsName is the provider name from the definition file.
func (s Step) OptionsName() string { return s.optionsName }

// Definition is the ordered step list of one document type.
type Definition struct {
	DocumentType domain.DocumentType
	Steps        []Step
}

// Len is the number of steps, which is also the review index.
func (d *Definition) Len() int {
	return len(d.Steps)
}

// IndexOf returns the first step whose field matches.
func (d *Definition) IndexOf(field string) (int, bool) {
	i := slices.IndexFunc(d.Steps, func(s Step) bool { return s.Field == field })
	return i, i >= 0
}

// Registry maps every supported document type to its flow.
type Registry struct {
	flows map[domain.DocumentType]*Definition
}

// NewRegistry loads the override file at path, or the embedded definitions
// when path is empty.
func NewRegistry(path string) (*Registry, error) {
	if path == "" {
		return LoadRegistry(embeddedDefinitions)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow definitions: %w", err)
	}
	return LoadRegistry(data)
}

// DefaultRegistry loads the embedded definitions. They are covered by tests,
// so a failure here is a programming error.
func DefaultRegistry() *Registry {
	r, err := LoadRegistry(embeddedDefinitions)
	if err != nil {
		panic(fmt.Sprintf("embedded flow definitions are invalid: %v", err))
	}
	return r
}

// Definition returns the flow of a canonical document type.
func (r *Registry) Definition(t domain.DocumentType) (*Definition, error) {
	def, ok := r.flows[t]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no flow defined for %q", t))
	}
	return def, nil
}

// Types lists the document types with a flow, in stable order.
func (r *Registry) Types() []domain.DocumentType {
	out := make([]domain.DocumentType, 0, len(r.flows))
	for _, t := range domain.AllDocumentTypes() {
		if _, ok := r.flows[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

type definitionsFile struct {
	Groups map[string][]stepDoc `yaml:"groups"`
	Flows  map[string][]stepDoc `yaml:"flows"`
}

type stepDoc struct {
	Group    string `yaml:"group"`
	Field    string `yaml:"field"`
	Question string `yaml:"question"`
	Kind     string `yaml:"kind"`
	Required bool   `yaml:"required"`
	Visible  string `yaml:"visible"`
	Options  string `yaml:"options"`
}

// LoadRegistry parses a definitions document. Every supported document type
// must have a flow, and every rule and provider name must resolve.
func LoadRegistry(data []byte) (*Registry, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse flow definitions: %w", err)
	}

	var errs []error
	flows := make(map[domain.DocumentType]*Definition, len(file.Flows))
	for name, docs := range file.Flows {
		t, err := domain.ParseDocumentType(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("flow %q: unknown document type", name))
			continue
		}
		steps, err := buildSteps(docs, file.Groups)
		if err != nil {
			errs = append(errs, fmt.Errorf("flow %q: %w", name, err))
			continue
		}
		flows[t] = &Definition{DocumentType: t, Steps: steps}
	}
	for _, t := range domain.AllDocumentTypes() {
		if _, ok := flows[t]; !ok {
			errs = append(errs, fmt.Errorf("no flow defined for %q", t))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Registry{flows: flows}, nil
}

func buildSteps(docs []stepDoc, groups map[string][]stepDoc) ([]Step, error) {
	var errs []error
	var steps []Step
	seen := make(map[string]bool)

	for _, doc := range expandGroups(docs, groups, &errs) {
		step, err := buildStep(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[step.Field] {
			errs = append(errs, fmt.Errorf("field %q appears twice", step.Field))
			continue
		}
		seen[step.Field] = true
		steps = append(steps, step)
	}
	if len(steps) == 0 && len(errs) == 0 {
		errs = append(errs, errors.New("flow has no steps"))
	}
	return steps, errors.Join(errs...)
}

// expandGroups splices group references in place. Groups cannot nest.
func expandGroups(docs []stepDoc, groups map[string][]stepDoc, errs *[]error) []stepDoc {
	out := make([]stepDoc, 0, len(docs))
	for _, doc := range docs {
		if doc.Group == "" {
			out = append(out, doc)
			continue
		}
		members, ok := groups[doc.Group]
		if !ok {
			*errs = append(*errs, fmt.Errorf("unknown group %q", doc.Group))
			continue
		}
		for _, m := range members {
			if m.Group != "" {
				*errs = append(*errs, fmt.Errorf("group %q nests group %q", doc.Group, m.Group))
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

func buildStep(doc stepDoc) (Step, error) {
	if doc.Field == "" {
		return Step{}, errors.New("step without field")
	}
	step := Step{
		Field:       doc.Field,
		Question:    doc.Question,
		Kind:        Kind(doc.Kind),
		Required:    doc.Required,
		Visible:     always,
		visibleRule: doc.Visible,
		optionsName: doc.Options,
	}
	if step.Kind == "" {
		step.Kind = KindText
	}
	if step.Kind != KindText && step.Kind != KindSelect {
		return Step{}, fmt.Errorf("field %q: unknown kind %q", doc.Field, doc.Kind)
	}
	if doc.Visible != "" {
		pred, ok := predicates[doc.Visible]
		if !ok {
			return Step{}, fmt.Errorf("field %q: unknown visibility rule %q", doc.Field, doc.Visible)
		}
		step.Visible = pred
	}
	if doc.Options != "" {
		provider, ok := providers[doc.Options]
		if !ok {
			return Step{}, fmt.Errorf("field %q: unknown options provider %q", doc.Field, doc.Options)
		}
		step.Options = provider
	}
	if step.Kind == KindSelect && step.Options == nil {
		return Step{}, fmt.Errorf("field %q: select step needs an options provider", doc.Field)
	}
	return step, nil
}
