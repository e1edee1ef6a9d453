package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	"deedwizard/internal/enrichment"
	"deedwizard/internal/finalize"
	"deedwizard/internal/flow"
	"deedwizard/internal/partners"
	"deedwizard/internal/platform/logger"
	"deedwizard/internal/wizard/metrics"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
	audit "deedwizard/pkg/platform/audit"
	"deedwizard/pkg/platform/audit/publisher"
	"deedwizard/pkg/platform/audit/store/memory"
	"deedwizard/pkg/platform/retry"
)

// =============================================================================
// Wizard Service Test Suite
// =============================================================================
// Runs the real draft store, flow registry, adapters and validator against an
// httptest deeds API so each test walks the same path a client does.

type ServiceSuite struct {
	suite.Suite
	deeds    *httptest.Server
	commits  atomic.Int32
	lastBody finalize.Payload
	mu       sync.Mutex
	gate     chan struct{}
	metrics  *metrics.Metrics
	audits   *memory.InMemoryStore
	service  *Service
	ref      Ref
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

type failingDirectory struct{}

func (failingDirectory) List(context.Context) ([]partners.Partner, error) {
	return nil, errors.New("directory down")
}

var records = map[string]draft.PropertyFacts{
	"1 Main St": {
		Address:    "1 Main St",
		ParcelID:   "123-45-678",
		County:     "Los Angeles",
		OwnerNames: []string{"JOHN DOE"},
	},
}

func (s *ServiceSuite) SetupTest() {
	s.commits.Store(0)
	s.gate = nil
	s.deeds = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/deeds":
			s.commits.Add(1)
			if s.gate != nil {
				<-s.gate
			}
			var p finalize.Payload
			_ = json.NewDecoder(r.Body).Decode(&p)
			s.mu.Lock()
			s.lastBody = p
			s.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"deedId":"deed-100"}`))
		case "/deeds/generate":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF"))
		default:
			http.NotFound(w, r)
		}
	}))
	s.T().Cleanup(s.deeds.Close)

	s.service = s.newService(partners.StaticDirectory{{ID: "p1", Label: "First American Title"}})
	s.ref = Ref{Session: domain.NewSessionID(), Mode: domain.ModeModern}
}

func (s *ServiceSuite) newService(dir partners.Directory, opts ...Option) *Service {
	log := logger.Discard()
	client := finalize.NewClient(s.deeds.URL, 2*time.Second, finalize.WithClientLogger(log))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.audits = memory.NewInMemoryStore()
	svc, err := New(
		draft.NewManager(draft.NewMemoryBackend(), draft.WithLogger(log)),
		flow.DefaultRegistry(),
		finalize.New(client, finalize.WithLogger(log)),
		finalize.NewGenerator(client, retry.Config{MaxAttempts: 3}, finalize.WithLogger(log)),
		append([]Option{
			WithLogger(log),
			WithMetrics(s.metrics),
			WithBuildSHA("sha-1"),
			WithEnrichment(enrichment.StaticProvider{Records: records}),
			WithPartners(dir),
			WithAuditor(publisher.NewPublisher(s.audits)),
		}, opts...)...,
	)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) answerHappyPath(ctx context.Context) {
	_, err := s.service.Start(ctx, s.ref, "grant-deed")
	s.Require().NoError(err)
	_, err = s.service.VerifyProperty(ctx, s.ref, enrichment.AddressFacts{Street: "1 Main St", City: "Los Angeles"})
	s.Require().NoError(err)
	_, err = s.service.Answer(ctx, s.ref, draft.Answers{
		"grantorName":      "JOHN DOE",
		"granteeName":      "JANE SMITH",
		"legalDescription": "LOT 5 TRACT 100",
		"vesting":          "Joint Tenants",
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, flow.DefaultRegistry(), &finalize.Finalizer{}, &finalize.Generator{})
	s.ErrorContains(err, "draft manager is required")
}

func (s *ServiceSuite) TestStart() {
	ctx := context.Background()

	s.Run("legacy spelling is normalized", func() {
		view, err := s.service.Start(ctx, s.ref, "Grant-Deed")
		s.Require().NoError(err)
		s.Equal(domain.DocumentGrantDeed, view.DocumentType)
	})

	s.Run("blank type is rejected", func() {
		_, err := s.service.Start(ctx, s.ref, " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown type falls back to grant deed", func() {
		ref := Ref{Session: domain.NewSessionID(), Mode: domain.ModeClassic}
		view, err := s.service.Start(ctx, ref, "deed_of_trust")
		s.Require().NoError(err)
		s.Equal(domain.DocumentGrantDeed, view.DocumentType)
	})

	s.Run("strict mode rejects unknown types", func() {
		strict := s.newService(nil, WithStrictDocumentTypes(true))
		_, err := strict.Start(ctx, Ref{Session: domain.NewSessionID(), Mode: domain.ModeClassic}, "deed_of_trust")
		s.ErrorIs(err, canonical.ErrUnknownDocumentType)
	})

	s.Run("switching type with answers conflicts", func() {
		_, err := s.service.Answer(ctx, s.ref, draft.Answers{"granteeName": "JANE"})
		s.Require().NoError(err)
		_, err = s.service.Start(ctx, s.ref, "quitclaim")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestModeIsolation() {
	ctx := context.Background()
	classic := Ref{Session: s.ref.Session, Mode: domain.ModeClassic}

	_, err := s.service.Answer(ctx, s.ref, draft.Answers{"grantorName": "JOHN DOE"})
	s.Require().NoError(err)

	s.Empty(s.service.Draft(ctx, classic).Answers)
	s.Equal("JOHN DOE", s.service.Draft(ctx, s.ref).Answers.String("grantorName"))

	s.Require().NoError(s.service.Clear(ctx, classic))
	s.Equal("JOHN DOE", s.service.Draft(ctx, s.ref).Answers.String("grantorName"))
}

func (s *ServiceSuite) TestStepsRequireStart() {
	_, err := s.service.Step(context.Background(), s.ref, 0)
	s.ErrorIs(err, ErrNotStarted)
}

func (s *ServiceSuite) TestStepNavigation() {
	ctx := context.Background()
	s.answerHappyPath(ctx)

	view, err := s.service.Step(ctx, s.ref, 0)
	s.Require().NoError(err)
	s.Equal(flow.FieldGrantorName, view.Field, "verified property hides the address steps and a sufficient legal description hides its step")
	s.Equal([]flow.Option{{Value: "JOHN DOE", Label: "JOHN DOE"}}, view.Options)

	view, err = s.service.Advance(ctx, s.ref, view.Index)
	s.Require().NoError(err)
	s.Equal(flow.FieldGranteeName, view.Field)

	view, err = s.service.Retreat(ctx, s.ref, view.Index)
	s.Require().NoError(err)
	s.Equal(flow.FieldGrantorName, view.Field)

	view, err = s.service.JumpTo(ctx, s.ref, "titleCompany")
	s.Require().NoError(err)
	s.Equal([]flow.Option{{Value: "First American Title", Label: "First American Title"}}, view.Options)

	_, err = s.service.JumpTo(ctx, s.ref, "nope")
	s.ErrorIs(err, flow.ErrUnknownField)
}

func (s *ServiceSuite) TestPartnerFailureDegrades() {
	ctx := context.Background()
	s.service = s.newService(failingDirectory{})
	_, err := s.service.Start(ctx, s.ref, "grant_deed")
	s.Require().NoError(err)

	view, err := s.service.JumpTo(ctx, s.ref, "titleCompany")
	s.Require().NoError(err)
	s.Empty(view.Options)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PartnerFailures))
}

func (s *ServiceSuite) TestReviewPointsAtSteps() {
	ctx := context.Background()
	_, err := s.service.Start(ctx, s.ref, "grant_deed")
	s.Require().NoError(err)
	_, err = s.service.Answer(ctx, s.ref, draft.Answers{"propertyAddress": "1 Main St", "apn": "1", "county": "LA", "grantorName": "A"})
	s.Require().NoError(err)

	review, err := s.service.Review(ctx, s.ref)
	s.Require().NoError(err)
	s.False(review.OK)
	s.Require().Len(review.Issues, 2)
	s.Equal(canonical.PathLegalDescription, review.Issues[0].FieldPath)
	s.Equal(flow.FieldLegalDescription, review.Issues[0].Field)
	s.Equal(3, review.Issues[0].StepIndex)
	s.Equal(canonical.PathGranteeName, review.Issues[1].FieldPath)
	s.Equal(5, review.Issues[1].StepIndex)
}

func (s *ServiceSuite) TestFinalizeHappyPath() {
	ctx := context.Background()
	s.answerHappyPath(ctx)

	review, err := s.service.Review(ctx, s.ref)
	s.Require().NoError(err)
	s.True(review.OK, "issues: %v", review.Issues)

	res, err := s.service.Finalize(ctx, s.ref, finalize.Meta{RequestID: "req-1"})
	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal("deed-100", res.ID)
	s.Equal(int32(1), s.commits.Load())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal("wizard-modern", s.lastBody.Source)
	s.Equal("LOT 5 TRACT 100", s.lastBody.LegalDescription)
}

func (s *ServiceSuite) TestFinalizeMissingLegalDescription() {
	ctx := context.Background()
	s.answerHappyPath(ctx)
	_, err := s.service.Answer(ctx, s.ref, draft.Answers{"legalDescription": nil})
	s.Require().NoError(err)

	res, err := s.service.Finalize(ctx, s.ref, finalize.Meta{})
	s.Require().NoError(err)
	s.False(res.Success)
	s.Equal([]string{canonical.PathLegalDescription}, res.Missing)
	s.Equal(int32(0), s.commits.Load())

	_, err = s.service.Generate(ctx, s.ref, finalize.Meta{})
	s.True(dErrors.HasCode(err, dErrors.CodeIncomplete))
}

func (s *ServiceSuite) TestConcurrentFinalizeCommitsOnce() {
	ctx := context.Background()
	s.answerHappyPath(ctx)
	s.gate = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]finalize.Result, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = s.service.Finalize(ctx, s.ref, finalize.Meta{})
		}()
	}
	s.Eventually(func() bool { return s.commits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(s.gate)
	wg.Wait()

	s.Equal(int32(1), s.commits.Load())
	s.Equal("deed-100", results[0].ID)
	s.Equal("deed-100", results[1].ID)
}

func (s *ServiceSuite) TestGenerate() {
	ctx := context.Background()
	s.answerHappyPath(ctx)

	doc, err := s.service.Generate(ctx, s.ref, finalize.Meta{})
	s.Require().NoError(err)
	s.Equal("application/pdf", doc.ContentType)
}

func (s *ServiceSuite) TestVerifyProperty() {
	ctx := context.Background()

	s.Run("stores verified facts", func() {
		facts, err := s.service.VerifyProperty(ctx, s.ref, enrichment.AddressFacts{Street: "1 Main St", Zip: "90012"})
		s.Require().NoError(err)
		s.Equal("123-45-678", facts.ParcelID)
		view := s.service.Draft(ctx, s.ref)
		s.True(view.PropertyVerified)
		s.Equal("Los Angeles", view.VerifiedProperty.County)
	})

	s.Run("unknown address is not found", func() {
		_, err := s.service.VerifyProperty(ctx, s.ref, enrichment.AddressFacts{Street: "9 Nowhere Ln", City: "Fresno"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid address is rejected before lookup", func() {
		_, err := s.service.VerifyProperty(ctx, s.ref, enrichment.AddressFacts{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestSubscribeFiltersMode() {
	ctx := context.Background()
	changes, cancel := s.service.Subscribe(ctx, s.ref)
	defer cancel()

	_, err := s.service.Answer(ctx, Ref{Session: s.ref.Session, Mode: domain.ModeClassic}, draft.Answers{"a": "1"})
	s.Require().NoError(err)
	_, err = s.service.Answer(ctx, s.ref, draft.Answers{"b": "2"})
	s.Require().NoError(err)

	select {
	case c := <-changes:
		s.Equal(domain.ModeModern, c.Mode)
		s.Equal("2", c.Draft.Answers.String("b"))
	case <-time.After(time.Second):
		s.Fail("no change delivered")
	}
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Subscribers))
}

func (s *ServiceSuite) TestAuditTrail() {
	ctx := context.Background()
	s.answerHappyPath(ctx)

	_, err := s.service.Finalize(ctx, s.ref, finalize.Meta{RequestID: "req-9"})
	s.Require().NoError(err)
	s.Require().NoError(s.service.Clear(ctx, s.ref))

	events, err := s.audits.ListBySession(ctx, s.ref.Session)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Equal([]string{
		string(audit.EventDraftStarted),
		string(audit.EventPropertyVerified),
		string(audit.EventDeedCommitted),
		string(audit.EventDraftCleared),
	}, actions)

	committed := events[2]
	s.Equal(domain.DeedID("deed-100"), committed.DeedID)
	s.Equal(audit.CategoryCompliance, committed.Category)
	s.Equal("req-9", committed.RequestID)
	s.Equal(domain.ModeModern, committed.Mode)
	s.Equal(domain.DocumentGrantDeed, committed.DocumentType)
}

func (s *ServiceSuite) TestAuditRecordsRejectedFinalize() {
	ctx := context.Background()
	s.answerHappyPath(ctx)
	_, err := s.service.Answer(ctx, s.ref, draft.Answers{"legalDescription": nil})
	s.Require().NoError(err)

	_, err = s.service.Finalize(ctx, s.ref, finalize.Meta{})
	s.Require().NoError(err)

	events, err := s.audits.ListBySession(ctx, s.ref.Session)
	s.Require().NoError(err)
	last := events[len(events)-1]
	s.Equal(string(audit.EventFinalizeRejected), last.Action)
	s.Equal(audit.DecisionRejected, last.Decision)
	s.Equal("incomplete", last.Reason)
}
