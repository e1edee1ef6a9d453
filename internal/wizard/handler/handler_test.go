package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"deedwizard/internal/draft"
	"deedwizard/internal/enrichment"
	"deedwizard/internal/finalize"
	"deedwizard/internal/flow"
	"deedwizard/internal/platform/logger"
	"deedwizard/internal/ratelimit"
	"deedwizard/internal/validation"
	"deedwizard/internal/wizard"
	"deedwizard/internal/wizard/handler/mocks"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
	"deedwizard/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	session domain.SessionID
	ref     wizard.Ref
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, logger.Discard(), WithPingInterval(time.Hour))
	s.router = NewRouter(h, logger.Discard(), nil, nil)
	s.session = domain.NewSessionID()
	s.ref = wizard.Ref{Session: s.session, Mode: domain.ModeClassic}
}

func (s *HandlerSuite) path(suffix string) string {
	return "/v1/sessions/" + s.session.String() + "/classic" + suffix
}

func (s *HandlerSuite) TestPathParameters() {
	s.Run("malformed session id is a bad request", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/sessions/not-a-uuid/classic/draft")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unknown mode is a bad request", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/sessions/"+s.session.String()+"/retro/draft")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *HandlerSuite) TestDraft() {
	s.Run("returns the draft of the requested mode", func() {
		view := wizard.DraftView{Draft: draft.Draft{
			DocumentType: "grant_deed",
			Answers:      draft.Answers{"apn": "123-456"},
		}}
		s.service.EXPECT().Draft(gomock.Any(), s.ref).Return(view)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.path("/draft")))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "documentType", "grant_deed")
	})

	s.Run("clear answers no content", func() {
		s.service.EXPECT().Clear(gomock.Any(), s.ref).Return(nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, s.path("/draft")))
		s.Equal(http.StatusNoContent, rr.Code)
	})
}

func (s *HandlerSuite) TestStart() {
	s.Run("passes the raw document type through", func() {
		s.service.EXPECT().Start(gomock.Any(), s.ref, "Quit-Claim").
			Return(wizard.DraftView{Draft: draft.Draft{DocumentType: "quitclaim_deed"}}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/draft/start"), map[string]string{"documentType": " Quit-Claim "})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "documentType", "quitclaim_deed")
	})

	s.Run("blank document type never reaches the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/draft/start"), map[string]string{"documentType": "  "})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeValidation))
	})

	s.Run("conflicting document type", func() {
		s.service.EXPECT().Start(gomock.Any(), s.ref, "warranty").
			Return(wizard.DraftView{}, dErrors.New(dErrors.CodeConflict, "draft already started as grant_deed"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/draft/start"), map[string]string{"documentType": "warranty"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("malformed json", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, s.path("/draft/start"), `{"documentType":`)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func (s *HandlerSuite) TestAnswers() {
	s.Run("merges the patch", func() {
		s.service.EXPECT().Answer(gomock.Any(), s.ref, gomock.Any()).
			DoAndReturn(func(_ any, _ wizard.Ref, patch draft.Answers) (wizard.DraftView, error) {
				s.Equal("Jane Roe", patch["grantorName"])
				s.Contains(patch, "vesting")
				s.Nil(patch["vesting"])
				return wizard.DraftView{Draft: draft.Draft{Answers: draft.Answers{"grantorName": "Jane Roe"}}}, nil
			})

		req := testutil.NewRequestWithBody(s.T(), http.MethodPatch, s.path("/draft/answers"),
			`{"answers":{"grantorName":"Jane Roe","vesting":null}}`)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("empty patch is rejected", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPatch, s.path("/draft/answers"), `{"answers":{}}`)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnprocessableEntity, rr.Code)
	})

	s.Run("dropped write surfaces as unavailable", func() {
		s.service.EXPECT().Answer(gomock.Any(), s.ref, gomock.Any()).Return(wizard.DraftView{}, wizard.ErrWriteDropped)

		req := testutil.NewRequestWithBody(s.T(), http.MethodPatch, s.path("/draft/answers"), `{"answers":{"apn":"1"}}`)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusServiceUnavailable, rr.Code)
	})
}

func (s *HandlerSuite) TestVerify() {
	s.Run("normalizes the address before lookup", func() {
		s.service.EXPECT().VerifyProperty(gomock.Any(), s.ref, enrichment.AddressFacts{
			Street: "1 Main St", City: "Los Angeles", State: "CA",
		}).Return(draft.PropertyFacts{ParcelID: "5555-001", County: "Los Angeles"}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/draft/verify"),
			map[string]string{"address": " 1 Main St ", "city": "Los Angeles", "state": "ca"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "parcelId", "5555-001")
	})

	s.Run("address without city or zip", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/draft/verify"), map[string]string{"address": "1 Main St"})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnprocessableEntity, rr.Code)
	})
}

func (s *HandlerSuite) TestSteps() {
	s.Run("index defaults to zero", func() {
		s.service.EXPECT().Step(gomock.Any(), s.ref, 0).Return(flow.StepView{Index: 0, Field: "propertyAddress"}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.path("/steps")))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "field", "propertyAddress")
	})

	s.Run("explicit index", func() {
		s.service.EXPECT().Step(gomock.Any(), s.ref, 4).Return(flow.StepView{Index: 4, Field: "grantorName"}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.path("/steps?index=4")))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("negative or garbled index", func() {
		for _, q := range []string{"-1", "two"} {
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.path("/steps?index="+q)))
			s.Equal(http.StatusBadRequest, rr.Code, q)
		}
	})

	s.Run("steps before start", func() {
		s.service.EXPECT().Step(gomock.Any(), s.ref, 0).Return(flow.StepView{}, wizard.ErrNotStarted)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.path("/steps")))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("advance and retreat carry the client index", func() {
		s.service.EXPECT().Advance(gomock.Any(), s.ref, 4).Return(flow.StepView{Index: 5}, nil)
		s.service.EXPECT().Retreat(gomock.Any(), s.ref, 5).Return(flow.StepView{Index: 4}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/steps/advance"), map[string]int{"index": 4}))
		testutil.AssertStatusOK(s.T(), rr)
		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/steps/retreat"), map[string]int{"index": 5}))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("jump to a field", func() {
		s.service.EXPECT().JumpTo(gomock.Any(), s.ref, "legalDescription").Return(flow.StepView{Index: 3, Field: "legalDescription"}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/steps/jump"), map[string]string{"field": "legalDescription"}))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *HandlerSuite) TestReview() {
	s.service.EXPECT().Review(gomock.Any(), s.ref).Return(wizard.Review{
		DocumentType: "grant_deed",
		Issues: []wizard.ReviewIssue{{
			Issue:     validation.Issue{FieldPath: "legal_description", Message: "legal description is required"},
			Field:     "legalDescription",
			StepIndex: 3,
		}},
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, s.path("/review")))
	testutil.AssertStatusOK(s.T(), rr)
	s.Contains(rr.Body.String(), `"stepIndex":3`)
}

func (s *HandlerSuite) TestFinalize() {
	s.Run("created with the deed id", func() {
		s.service.EXPECT().Finalize(gomock.Any(), s.ref, gomock.Any()).
			DoAndReturn(func(_ any, _ wizard.Ref, meta finalize.Meta) (finalize.Result, error) {
				s.Equal("classic-flow", meta.ClientFlow)
				s.Equal("ReviewPanel", meta.UIComponent)
				s.NotEmpty(meta.RequestID)
				return finalize.Result{Success: true, ID: "deed-100"}, nil
			})

		req := testutil.NewRequest(s.T(), http.MethodPost, s.path("/finalize"))
		req.Header.Set("X-Client-Flow", "classic-flow")
		req.Header.Set(finalize.HeaderUIComponent, "ReviewPanel")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusCreated, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "id", "deed-100")
	})

	s.Run("incomplete draft lists the missing fields", func() {
		s.service.EXPECT().Finalize(gomock.Any(), s.ref, gomock.Any()).
			Return(finalize.Result{Missing: []string{"legal_description"}}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, s.path("/finalize")))
		s.Equal(http.StatusUnprocessableEntity, rr.Code)
		s.Contains(rr.Body.String(), "legal_description")
	})

	s.Run("backend failure keeps its message", func() {
		s.service.EXPECT().Finalize(gomock.Any(), s.ref, gomock.Any()).
			Return(finalize.Result{}, dErrors.New(dErrors.CodeUpstream, "deeds backend unavailable"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, s.path("/finalize")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadGateway, string(dErrors.CodeUpstream))
		testutil.AssertJSONContains(s.T(), rr, "error_description", "deeds backend unavailable")
	})

	s.Run("unexpected failure hides details", func() {
		s.service.EXPECT().Finalize(gomock.Any(), s.ref, gomock.Any()).
			Return(finalize.Result{}, errors.New("boom"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, s.path("/finalize")))
		s.Equal(http.StatusInternalServerError, rr.Code)
		s.NotContains(rr.Body.String(), "boom")
	})
}

func (s *HandlerSuite) TestGenerate() {
	s.Run("streams the document", func() {
		s.service.EXPECT().Generate(gomock.Any(), s.ref, gomock.Any()).
			Return(finalize.Document{ContentType: "application/pdf", Body: []byte("%PDF-1.7")}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, s.path("/generate")))
		s.Equal(http.StatusOK, rr.Code)
		s.Equal("application/pdf", rr.Header().Get("Content-Type"))
		s.Contains(rr.Header().Get("Content-Disposition"), "deed-classic.pdf")
		s.Equal("%PDF-1.7", rr.Body.String())
	})

	s.Run("retries exhausted", func() {
		s.service.EXPECT().Generate(gomock.Any(), s.ref, gomock.Any()).
			Return(finalize.Document{}, finalize.ErrRetriesExhausted)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, s.path("/generate")))
		s.Equal(http.StatusServiceUnavailable, rr.Code)
	})
}

func (s *HandlerSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(s.T(), rr)
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *HandlerSuite) TestEvents() {
	changes := make(chan draft.Change, 1)
	cancelled := make(chan struct{})
	s.service.EXPECT().Subscribe(gomock.Any(), s.ref).
		Return((<-chan draft.Change)(changes), func() { close(cancelled) })
	s.service.EXPECT().Draft(gomock.Any(), s.ref).
		Return(wizard.DraftView{Draft: draft.Draft{DocumentType: "grant_deed"}})

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + s.path("/events")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var ev Event
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal(EventSnapshot, ev.Type)
	s.Require().NotNil(ev.Draft)
	s.Equal("grant_deed", ev.Draft.DocumentType)

	changes <- draft.Change{
		Mode:   domain.ModeClassic,
		Draft:  draft.Draft{DocumentType: "grant_deed", Answers: draft.Answers{"apn": "1"}},
		Remote: true,
	}
	ev = Event{}
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal(EventChanged, ev.Type)
	s.True(ev.Remote)
	s.Equal("1", ev.Draft.Answers["apn"])

	changes <- draft.Change{Mode: domain.ModeClassic, Cleared: true}
	ev = Event{}
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal(EventCleared, ev.Type)
	s.Nil(ev.Draft)

	s.Require().NoError(conn.Close())
	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		s.Fail("subscription was not cancelled after the client left")
	}
}

func TestRequests(t *testing.T) {
	t.Run("jump requires a field", func(t *testing.T) {
		req := JumpRequest{Field: "  "}
		require.Error(t, req.Validate())
	})

	t.Run("move rejects negative index", func(t *testing.T) {
		req := MoveRequest{Index: -2}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	t.Run("answers reject blank field names", func(t *testing.T) {
		req := AnswersRequest{Answers: draft.Answers{" ": "x"}}
		require.Error(t, req.Validate())
	})

	t.Run("answers cap the patch size", func(t *testing.T) {
		answers := draft.Answers{}
		for i := range maxAnswersPerPatch + 1 {
			answers[strings.Repeat("f", i+1)] = i
		}
		req := AnswersRequest{Answers: answers}
		require.Error(t, req.Validate())
	})
}

func TestRateLimitedCommits(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), logger.Discard(),
		ratelimit.WithPolicy(ratelimit.ClassCommit, ratelimit.Policy{Limit: 1, Window: time.Minute}),
	)
	router := NewRouter(New(service, logger.Discard(), WithRateLimiter(limiter)), logger.Discard(), nil, nil)

	session := domain.NewSessionID()
	path := "/v1/sessions/" + session.String() + "/modern/finalize"
	service.EXPECT().Finalize(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(finalize.Result{Success: true, ID: "deed-1"}, nil).Times(1)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, path))
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, path))
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, string(dErrors.CodeRateLimited))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Reads are never charged.
	service.EXPECT().Review(gomock.Any(), gomock.Any()).Return(wizard.Review{}, nil).Times(2)
	for range 2 {
		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/sessions/"+session.String()+"/modern/review"))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestMeta(t *testing.T) {
	testutil.Given(t, "a request stamped by the request middleware", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodPost, "/finalize")
		req.Header.Set(finalize.HeaderUIComponent, "  "+strings.Repeat("x", 200))
		req = testutil.WithRequestMeta(req, "req-7", "modern-flow")

		testutil.When(t, "meta is collected", func(t *testing.T) {
			m := meta(req)

			testutil.Then(t, "ids come from the context and the component is bounded", func(t *testing.T) {
				assert.Equal(t, "req-7", m.RequestID)
				assert.Equal(t, "modern-flow", m.ClientFlow)
				assert.Len(t, m.UIComponent, 128)
			})
		})
	})
}
