package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"deedwizard/internal/draft/metrics"
	"deedwizard/internal/platform/logger"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
)

// flakyBackend fails Get or Set on demand and otherwise defers to memory.
type flakyBackend struct {
	*MemoryBackend
	mu      sync.Mutex
	failGet bool
	failSet bool
}

var errBackendDown = errors.New("backend down")

func (f *flakyBackend) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return nil, errBackendDown
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return errBackendDown
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

type StoreSuite struct {
	suite.Suite
	ctx     context.Context
	backend *flakyBackend
	session domain.SessionID
	metrics *metrics.Metrics
	now     time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = &flakyBackend{MemoryBackend: NewMemoryBackend()}
	s.session = domain.NewSessionID()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func (s *StoreSuite) newStore() *Store {
	return NewStore(s.backend, s.session,
		WithLogger(logger.Discard()),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *StoreSuite) hydratedStore() *Store {
	st := s.newStore()
	st.Hydrate(s.ctx)
	s.Require().Equal(StateHydrated, st.State())
	return st
}

func (s *StoreSuite) TestHydration() {
	s.Run("reads before hydration return an empty draft", func() {
		seed := s.hydratedStore()
		s.Require().True(seed.Write(s.ctx, domain.ModeClassic, Answers{"grantorName": "Ada"}))

		st := s.newStore()
		s.Equal(StateUninitialized, st.State())
		s.Empty(st.Read(domain.ModeClassic).Answers)

		st.Hydrate(s.ctx)
		s.Equal("Ada", st.Read(domain.ModeClassic).Answers.String("grantorName"))
	})

	s.Run("writes before hydration are dropped, not queued", func() {
		st := s.newStore()
		s.False(st.Write(s.ctx, domain.ModeModern, Answers{"apn": "123"}))

		st.Hydrate(s.ctx)
		s.False(st.Read(domain.ModeModern).Answers.Has("apn"))
		_, err := s.backend.MemoryBackend.Get(s.ctx, Key(DefaultKeyPrefix, s.session, domain.ModeModern))
		s.Error(err, "dropped write must not reach the backend")
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Writes.WithLabelValues("modern", metrics.WriteDroppedUnhydrated)))
	})

	s.Run("read failure hydrates to an empty draft", func() {
		s.backend.failGet = true
		defer func() { s.backend.failGet = false }()

		st := s.hydratedStore()
		s.True(st.Read(domain.ModeClassic).IsEmpty())
		s.Equal(2.0, testutil.ToFloat64(s.metrics.LoadFailures))
	})

	s.Run("unreadable stored draft stays writable", func() {
		s.session = domain.NewSessionID()
		key := Key(DefaultKeyPrefix, s.session, domain.ModeClassic)
		s.Require().NoError(s.backend.MemoryBackend.Set(s.ctx, key, []byte("{not json")))

		st := s.hydratedStore()
		s.True(st.Loaded(domain.ModeClassic))
		s.True(st.Write(s.ctx, domain.ModeClassic, Answers{"county": "Kern"}))
	})

	s.Run("failed read refuses writes until a reload succeeds", func() {
		s.session = domain.NewSessionID()
		seed := s.hydratedStore()
		s.Require().True(seed.Write(s.ctx, domain.ModeClassic, Answers{
			"grantorName":      "JOHN DOE",
			"granteeName":      "JANE SMITH",
			"legalDescription": "LOT 7 OF TRACT 1234",
		}))

		s.backend.failGet = true
		st := s.hydratedStore()
		s.backend.failGet = false

		s.True(st.Read(domain.ModeClassic).IsEmpty())
		s.False(st.Loaded(domain.ModeClassic))
		dropped := testutil.ToFloat64(s.metrics.Writes.WithLabelValues("classic", metrics.WriteDroppedUnhydrated))
		s.False(st.Write(s.ctx, domain.ModeClassic, Answers{"vesting": "Joint Tenants"}))
		s.Equal(dropped+1, testutil.ToFloat64(s.metrics.Writes.WithLabelValues("classic", metrics.WriteDroppedUnhydrated)))

		stored := s.newStore()
		stored.Hydrate(s.ctx)
		s.Equal("JOHN DOE", stored.Read(domain.ModeClassic).Answers.String("grantorName"), "stored draft must survive")

		st.Reload(s.ctx)
		s.True(st.Loaded(domain.ModeClassic))
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"vesting": "Joint Tenants"}))
		answers := st.Read(domain.ModeClassic).Answers
		s.Equal("JOHN DOE", answers.String("grantorName"))
		s.Equal("LOT 7 OF TRACT 1234", answers.String("legalDescription"))
		s.Equal("Joint Tenants", answers.String("vesting"))
	})

	s.Run("clear resolves a failed read", func() {
		s.session = domain.NewSessionID()
		s.backend.failGet = true
		st := s.hydratedStore()
		s.backend.failGet = false

		s.Require().True(st.Clear(s.ctx, domain.ModeModern))
		s.True(st.Loaded(domain.ModeModern))
		s.True(st.Write(s.ctx, domain.ModeModern, Answers{"county": "Kern"}))
	})

	s.Run("unreadable stored draft is treated as no draft", func() {
		key := Key(DefaultKeyPrefix, s.session, domain.ModeClassic)
		s.Require().NoError(s.backend.MemoryBackend.Set(s.ctx, key, []byte("{not json")))

		st := s.hydratedStore()
		s.True(st.Read(domain.ModeClassic).IsEmpty())
	})

	s.Run("hydrate is idempotent", func() {
		st := s.hydratedStore()
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"county": "Alameda"}))
		st.Hydrate(s.ctx)
		s.Equal("Alameda", st.Read(domain.ModeClassic).Answers.String("county"))
	})
}

func (s *StoreSuite) TestWrite() {
	s.Run("merges the patch and stamps last modified", func() {
		st := s.hydratedStore()
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"grantorName": "Ada", "county": "Kern"}))
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"county": "Inyo"}))

		d := st.Read(domain.ModeClassic)
		s.Equal("Ada", d.Answers.String("grantorName"))
		s.Equal("Inyo", d.Answers.String("county"))
		s.Equal(s.now, d.LastModified)
	})

	s.Run("nil patch value removes the answer", func() {
		st := s.hydratedStore()
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"dttCityName": "Oakland"}))
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"dttCityName": nil}))
		s.False(st.Read(domain.ModeClassic).Answers.Has("dttCityName"))
	})

	s.Run("backend failure drops the write and keeps the cache", func() {
		st := s.hydratedStore()
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"grantorName": "Ada"}))

		s.backend.failSet = true
		defer func() { s.backend.failSet = false }()
		s.False(st.Write(s.ctx, domain.ModeClassic, Answers{"grantorName": "Grace"}))
		s.Equal("Ada", st.Read(domain.ModeClassic).Answers.String("grantorName"))
	})

	s.Run("reads return copies", func() {
		st := s.hydratedStore()
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"grantorName": "Ada"}))
		d := st.Read(domain.ModeClassic)
		d.Answers["grantorName"] = "mutated"
		s.Equal("Ada", st.Read(domain.ModeClassic).Answers.String("grantorName"))
	})
}

func (s *StoreSuite) TestModeIsolation() {
	st := s.hydratedStore()
	s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"grantorName": "Classic Owner"}))

	s.True(st.Read(domain.ModeModern).IsEmpty())

	_, err := s.backend.MemoryBackend.Get(s.ctx, Key(DefaultKeyPrefix, s.session, domain.ModeModern))
	s.Error(err)

	s.Require().True(st.Clear(s.ctx, domain.ModeModern))
	s.Equal("Classic Owner", st.Read(domain.ModeClassic).Answers.String("grantorName"))
}

func (s *StoreSuite) TestPropertyVerification() {
	s.Run("mark verified stores facts and tags the answers", func() {
		st := s.hydratedStore()
		s.False(st.IsPropertyVerified(domain.ModeClassic))

		s.Require().True(st.MarkVerified(s.ctx, domain.ModeClassic, PropertyFacts{
			Address:    "1 Main St, Fresno, CA",
			ParcelID:   "123-456-789",
			County:     "Fresno",
			OwnerNames: []string{"Ada Lovelace"},
		}))

		d := st.Read(domain.ModeClassic)
		s.True(st.IsPropertyVerified(domain.ModeClassic))
		s.True(d.Answers.Bool(FieldPropertyVerified))
		s.Equal("123-456-789", d.VerifiedProperty.ParcelID)
	})

	s.Run("verified parcel id alone counts as verified", func() {
		st := s.hydratedStore()
		s.Require().True(st.MarkVerified(s.ctx, domain.ModeModern, PropertyFacts{ParcelID: "9"}))
		s.Require().True(st.Write(s.ctx, domain.ModeModern, Answers{FieldPropertyVerified: false}))
		s.True(st.IsPropertyVerified(domain.ModeModern))
	})
}

func (s *StoreSuite) TestStart() {
	s.Run("records the document type on first visit", func() {
		st := s.hydratedStore()
		s.Require().NoError(st.Start(s.ctx, domain.ModeClassic, domain.DocumentQuitclaimDeed))
		s.Equal(domain.DocumentQuitclaimDeed, st.Read(domain.ModeClassic).DocumentType)
	})

	s.Run("same type in a legacy spelling is a no-op", func() {
		key := Key(DefaultKeyPrefix, s.session, domain.ModeClassic)
		s.Require().NoError(s.backend.MemoryBackend.Set(s.ctx, key,
			[]byte(`{"answers":{"grantorName":"Ada"},"documentType":"grant-deed","timestamp":"2026-01-01T00:00:00Z"}`)))
		st := s.hydratedStore()

		s.Require().NoError(st.Start(s.ctx, domain.ModeClassic, domain.DocumentGrantDeed))
		s.Equal("Ada", st.Read(domain.ModeClassic).Answers.String("grantorName"))
	})

	s.Run("another type with answers is a conflict", func() {
		st := s.hydratedStore()
		s.Require().NoError(st.Start(s.ctx, domain.ModeModern, domain.DocumentGrantDeed))
		s.Require().True(st.Write(s.ctx, domain.ModeModern, Answers{"grantorName": "Ada"}))

		err := st.Start(s.ctx, domain.ModeModern, domain.DocumentTaxDeed)
		s.Require().ErrorIs(err, ErrDocumentTypeConflict)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("not allowed before hydration", func() {
		st := s.newStore()
		s.ErrorIs(st.Start(s.ctx, domain.ModeClassic, domain.DocumentGrantDeed), ErrNotHydrated)
	})
}

func (s *StoreSuite) TestClear() {
	st := s.hydratedStore()
	s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"grantorName": "Ada"}))
	s.Require().True(st.Clear(s.ctx, domain.ModeClassic))

	s.True(st.Read(domain.ModeClassic).IsEmpty())
	reloaded := s.hydratedStore()
	s.True(reloaded.Read(domain.ModeClassic).IsEmpty())
}

func (s *StoreSuite) TestSubscribe() {
	s.Run("local writes and clears are delivered", func() {
		st := s.hydratedStore()
		changes, cancel := st.Subscribe(4)
		defer cancel()

		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"county": "Kern"}))
		s.Require().True(st.Clear(s.ctx, domain.ModeClassic))

		first := <-changes
		s.Equal(domain.ModeClassic, first.Mode)
		s.Equal("Kern", first.Draft.Answers.String("county"))
		s.False(first.Remote)

		second := <-changes
		s.True(second.Cleared)
	})

	s.Run("refresh delivers remote changes once", func() {
		st := s.hydratedStore()
		other := s.hydratedStore()
		changes, cancel := st.Subscribe(4)
		defer cancel()

		s.Require().True(other.Write(s.ctx, domain.ModeModern, Answers{"granteeName": "Grace"}))
		st.Refresh(s.ctx, domain.ModeModern)
		st.Refresh(s.ctx, domain.ModeModern)

		change := <-changes
		s.True(change.Remote)
		s.Equal("Grace", change.Draft.Answers.String("granteeName"))
		s.Empty(changes)
		s.Equal("Grace", st.Read(domain.ModeModern).Answers.String("granteeName"))
	})

	s.Run("refresh ignores echoes of own writes", func() {
		st := s.hydratedStore()
		s.Require().True(st.Write(s.ctx, domain.ModeClassic, Answers{"county": "Kern"}))
		changes, cancel := st.Subscribe(4)
		defer cancel()

		st.Refresh(s.ctx, domain.ModeClassic)
		s.Empty(changes)
	})

	s.Run("cancel closes the channel", func() {
		st := s.hydratedStore()
		changes, cancel := st.Subscribe(1)
		cancel()
		cancel()
		_, open := <-changes
		s.False(open)
	})
}
