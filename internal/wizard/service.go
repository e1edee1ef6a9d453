// Package wizard composes the draft store, flow engine, canonical adapters,
// validator and finalizer into the operations a client drives: answer
// questions, move between steps, review and finalize.
//
// The service is stateless apart from the per-session draft stores held by
// the draft.Manager; the step cursor travels with each request.
package wizard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	"deedwizard/internal/enrichment"
	"deedwizard/internal/finalize"
	"deedwizard/internal/flow"
	"deedwizard/internal/partners"
	"deedwizard/internal/validation"
	"deedwizard/internal/wizard/metrics"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
	audit "deedwizard/pkg/platform/audit"
)

var (
	ErrNotStarted           = dErrors.New(dErrors.CodeNotFound, "no draft has been started for this mode")
	ErrDocumentTypeRequired = dErrors.New(dErrors.CodeValidation, "document type is required")
	ErrWriteDropped         = dErrors.New(dErrors.CodeUnavailable, "draft could not be saved")
	ErrLookupDisabled       = dErrors.New(dErrors.CodeUnavailable, "property lookup is not configured")
)

// Ref names one draft: a session and one of its modes.
type Ref struct {
	Session domain.SessionID
	Mode    domain.Mode
}

func (r Ref) key() string {
	return r.Session.String() + ":" + r.Mode.String()
}

// DraftView is a draft as returned to clients.
type DraftView struct {
	draft.Draft
	PropertyVerified bool `json:"propertyVerified"`
}

// ReviewIssue is a validation issue with the step that fixes it. StepIndex
// is -1 when no step of the flow feeds the path.
type ReviewIssue struct {
	validation.Issue
	Field     string `json:"field,omitempty"`
	StepIndex int    `json:"stepIndex"`
}

// Review is the canonical record of a draft and everything wrong with it.
type Review struct {
	DocumentType domain.DocumentType `json:"documentType"`
	Fallback     bool                `json:"fallback,omitempty"`
	Record       canonical.Record    `json:"record"`
	OK           bool                `json:"ok"`
	Issues       []ReviewIssue       `json:"issues"`
}

// Service is the wizard application service.
type Service struct {
	drafts    *draft.Manager
	registry  *flow.Registry
	finalizer *finalize.Finalizer
	generator *finalize.Generator
	selector  *canonical.Selector
	lookup    enrichment.Provider
	directory partners.Directory
	strict    bool
	buildSHA  string
	auditor   Auditor
	logger    *slog.Logger
	metrics   *metrics.Metrics

	inflight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithSelector(sel *canonical.Selector) Option {
	return func(s *Service) { s.selector = sel }
}

// WithStrictDocumentTypes rejects unrecognized document types at Start
// instead of falling back to the grant deed.
func WithStrictDocumentTypes(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

func WithBuildSHA(sha string) Option {
	return func(s *Service) { s.buildSHA = sha }
}

func WithEnrichment(p enrichment.Provider) Option {
	return func(s *Service) { s.lookup = p }
}

func WithPartners(d partners.Directory) Option {
	return func(s *Service) { s.directory = d }
}

func New(
	drafts *draft.Manager,
	registry *flow.Registry,
	finalizer *finalize.Finalizer,
	generator *finalize.Generator,
	opts ...Option,
) (*Service, error) {
	if drafts == nil {
		return nil, errors.New("draft manager is required")
	}
	if registry == nil {
		return nil, errors.New("flow registry is required")
	}
	if finalizer == nil {
		return nil, errors.New("finalizer is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	s := &Service{
		drafts:    drafts,
		registry:  registry,
		finalizer: finalizer,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.selector == nil {
		s.selector = canonical.NewSelector(canonical.WithLogger(s.logger))
	}
	return s, nil
}

func (s *Service) store(ctx context.Context, ref Ref) *draft.Store {
	return s.drafts.Session(ctx, ref.Session)
}

func (s *Service) view(st *draft.Store, mode domain.Mode) DraftView {
	return DraftView{Draft: st.Read(mode), PropertyVerified: st.IsPropertyVerified(mode)}
}

// Start binds the draft to a document type. Legacy spellings are accepted.
func (s *Service) Start(ctx context.Context, ref Ref, rawType string) (view DraftView, err error) {
	defer func() { s.metrics.ObserveOperation("start", err) }()

	if strings.TrimSpace(rawType) == "" {
		return DraftView{}, ErrDocumentTypeRequired
	}
	var docType domain.DocumentType
	if s.strict {
		if _, docType, err = s.selector.SelectStrict(rawType); err != nil {
			return DraftView{}, err
		}
	} else {
		_, docType, _ = s.selector.Select(rawType)
	}

	st := s.store(ctx, ref)
	if err := st.Start(ctx, ref.Mode, docType); err != nil {
		return DraftView{}, err
	}
	s.logger.InfoContext(ctx, "draft started",
		"session", ref.Session.String(),
		"mode", ref.Mode.String(),
		"document_type", string(docType),
	)
	s.emit(ctx, ref, audit.EventDraftStarted, audit.Event{DocumentType: docType})
	return s.view(st, ref.Mode), nil
}

// Draft returns the current draft, empty when nothing is stored.
func (s *Service) Draft(ctx context.Context, ref Ref) DraftView {
	return s.view(s.store(ctx, ref), ref.Mode)
}

// Answer merges answers into the draft. A nil value removes the answer.
func (s *Service) Answer(ctx context.Context, ref Ref, patch draft.Answers) (view DraftView, err error) {
	defer func() { s.metrics.ObserveOperation("answer", err) }()

	st := s.store(ctx, ref)
	if !st.Write(ctx, ref.Mode, patch) {
		return DraftView{}, ErrWriteDropped
	}
	return s.view(st, ref.Mode), nil
}

// Clear deletes the draft of one mode. The other mode is untouched.
func (s *Service) Clear(ctx context.Context, ref Ref) (err error) {
	defer func() { s.metrics.ObserveOperation("clear", err) }()

	if !s.store(ctx, ref).Clear(ctx, ref.Mode) {
		return ErrWriteDropped
	}
	s.emit(ctx, ref, audit.EventDraftCleared, audit.Event{})
	return nil
}

// VerifyProperty looks the address up and stores the verified facts on the
// draft.
func (s *Service) VerifyProperty(ctx context.Context, ref Ref, address enrichment.AddressFacts) (facts draft.PropertyFacts, err error) {
	defer func() { s.metrics.ObserveOperation("verify_property", err) }()

	if s.lookup == nil {
		return draft.PropertyFacts{}, ErrLookupDisabled
	}
	if err := address.Validate(); err != nil {
		return draft.PropertyFacts{}, err
	}
	facts, err = s.lookup.Lookup(ctx, address)
	if err != nil {
		s.metrics.ObserveLookup(string(enrichment.GetCategory(err)))
		s.logger.WarnContext(ctx, "property lookup failed",
			"session", ref.Session.String(),
			"provider", s.lookup.ID(),
			"error", err,
		)
		return draft.PropertyFacts{}, enrichment.ToDomainError(err)
	}
	s.metrics.ObserveLookup("found")

	if !s.store(ctx, ref).MarkVerified(ctx, ref.Mode, facts) {
		return draft.PropertyFacts{}, ErrWriteDropped
	}
	s.emit(ctx, ref, audit.EventPropertyVerified, audit.Event{Reason: s.lookup.ID()})
	return facts, nil
}

// engine builds a flow engine for the draft at the given cursor.
func (s *Service) engine(ctx context.Context, ref Ref, index int) (*flow.Engine, error) {
	st := s.store(ctx, ref)
	d := st.Read(ref.Mode)
	if d.DocumentType == "" {
		return nil, ErrNotStarted
	}
	_, docType, _ := s.selector.Select(string(d.DocumentType))
	def, err := s.registry.Definition(docType)
	if err != nil {
		return nil, err
	}
	return flow.NewEngine(def, st, ref.Mode,
		flow.AtIndex(index),
		flow.WithPartners(s.partnerList(ctx)),
	), nil
}

// partnerList degrades to no suggestions when the directory fails.
func (s *Service) partnerList(ctx context.Context) []partners.Partner {
	if s.directory == nil {
		return nil
	}
	list, err := s.directory.List(ctx)
	if err != nil {
		s.metrics.IncrementPartnerFailures()
		s.logger.WarnContext(ctx, "partner directory unavailable; continuing without suggestions",
			"error", err,
		)
		return nil
	}
	return list
}

// Step renders the step at index.
func (s *Service) Step(ctx context.Context, ref Ref, index int) (flow.StepView, error) {
	e, err := s.engine(ctx, ref, index)
	if err != nil {
		return flow.StepView{}, err
	}
	return e.View(), nil
}

// Advance moves from index to the next visible step.
func (s *Service) Advance(ctx context.Context, ref Ref, index int) (flow.StepView, error) {
	e, err := s.engine(ctx, ref, index)
	if err != nil {
		return flow.StepView{}, err
	}
	e.Advance()
	return e.View(), nil
}

// Retreat moves from index to the previous visible step.
func (s *Service) Retreat(ctx context.Context, ref Ref, index int) (flow.StepView, error) {
	e, err := s.engine(ctx, ref, index)
	if err != nil {
		return flow.StepView{}, err
	}
	e.Retreat()
	return e.View(), nil
}

// JumpTo moves to the step that asks for field.
func (s *Service) JumpTo(ctx context.Context, ref Ref, field string) (flow.StepView, error) {
	e, err := s.engine(ctx, ref, 0)
	if err != nil {
		return flow.StepView{}, err
	}
	if _, err := e.JumpTo(field); err != nil {
		return flow.StepView{}, err
	}
	return e.View(), nil
}

// record builds the canonical record of the draft.
func (s *Service) record(ctx context.Context, ref Ref) (canonical.Record, draft.Answers, bool, error) {
	d := s.store(ctx, ref).Read(ref.Mode)
	if d.DocumentType == "" {
		return canonical.Record{}, nil, false, ErrNotStarted
	}
	adapter, _, fallback := s.selector.Select(string(d.DocumentType))
	return adapter.ToCanonical(d.Answers, d.VerifiedProperty), d.Answers, fallback, nil
}

// Review maps the draft to its canonical record and validates it. Each issue
// names the step that fixes it.
func (s *Service) Review(ctx context.Context, ref Ref) (Review, error) {
	rec, _, fallback, err := s.record(ctx, ref)
	if err != nil {
		return Review{}, err
	}
	res := validation.Validate(rec)

	def, err := s.registry.Definition(rec.DocumentType)
	if err != nil {
		return Review{}, err
	}
	issues := make([]ReviewIssue, 0, len(res.Issues))
	for _, issue := range res.Issues {
		ri := ReviewIssue{Issue: issue, StepIndex: -1}
		if field := validation.FieldForPathIn(rec.DocumentType, issue.FieldPath); field != "" {
			ri.Field = field
			if i, ok := def.IndexOf(field); ok {
				ri.StepIndex = i
			}
		}
		issues = append(issues, ri)
	}
	return Review{
		DocumentType: rec.DocumentType,
		Fallback:     fallback,
		Record:       rec,
		OK:           res.OK,
		Issues:       issues,
	}, nil
}

func (s *Service) meta(ref Ref, meta finalize.Meta) finalize.Meta {
	if meta.Source == "" {
		meta.Source = "wizard-" + ref.Mode.String()
	}
	if meta.ClientFlow == "" {
		meta.ClientFlow = ref.Mode.String()
	}
	if meta.BuildSHA == "" {
		meta.BuildSHA = s.buildSHA
	}
	return meta
}

// Finalize commits the draft. Concurrent calls for the same draft share one
// commit.
func (s *Service) Finalize(ctx context.Context, ref Ref, meta finalize.Meta) (res finalize.Result, err error) {
	defer func() { s.metrics.ObserveOperation("finalize", err) }()

	rec, answers, _, err := s.record(ctx, ref)
	if err != nil {
		return finalize.Result{}, err
	}
	meta = s.meta(ref, meta)

	v, err, shared := s.inflight.Do(ref.key()+":finalize", func() (any, error) {
		res, err := s.finalizer.Finalize(ctx, rec, answers, meta)
		s.auditFinalize(ctx, ref, rec.DocumentType, meta, res, err)
		return res, err
	})
	if shared {
		s.metrics.IncrementShared("finalize")
	}
	res, _ = v.(finalize.Result)
	return res, err
}

// Generate renders the draft's document. The generator repairs and checks the
// record the same way Finalize does.
func (s *Service) Generate(ctx context.Context, ref Ref, meta finalize.Meta) (doc finalize.Document, err error) {
	defer func() { s.metrics.ObserveOperation("generate", err) }()

	rec, answers, _, err := s.record(ctx, ref)
	if err != nil {
		return finalize.Document{}, err
	}
	meta = s.meta(ref, meta)

	v, err, shared := s.inflight.Do(ref.key()+":generate", func() (any, error) {
		doc, err := s.generator.Generate(ctx, rec, answers, meta)
		s.auditGenerate(ctx, ref, rec.DocumentType, meta, err)
		return doc, err
	})
	if shared {
		s.metrics.IncrementShared("generate")
	}
	doc, _ = v.(finalize.Document)
	return doc, err
}

// Subscribe streams changes to the draft of ref.Mode, including changes made
// by other processes. The returned cancel func must be called.
func (s *Service) Subscribe(ctx context.Context, ref Ref) (<-chan draft.Change, func()) {
	changes, cancel := s.store(ctx, ref).Subscribe(16)
	out := make(chan draft.Change, 16)
	done := make(chan struct{})
	s.metrics.AddSubscribers(1)

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case c, ok := <-changes:
				if !ok {
					return
				}
				if c.Mode != ref.Mode {
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			cancel()
			close(done)
			s.metrics.AddSubscribers(-1)
		})
	}
}
