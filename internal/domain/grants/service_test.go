package grants

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pet-medical-access/internal/domain/otp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------
// Fakes
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Grant
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Grant{}}
}

func (r *testRepo) Create(ctx context.Context, g Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[g.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) Update(ctx context.Context, g Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[g.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[id]
	if !ok {
		return Grant{}, errRepoNotFound
	}
	return g, nil
}

func (r *testRepo) ListByPet(ctx context.Context, petID string) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.PetID == petID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) ListActiveByPetClinic(ctx context.Context, petID, clinicID string) ([]Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.PetID == petID && g.ClinicID == clinicID && g.Status == StatusActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) MarkExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, g := range r.byID {
		if n >= limit {
			break
		}
		if g.Status == StatusActive && !g.ExpiresAt.After(now) {
			g.Status = StatusExpired
			g.UpdatedAt = now
			r.byID[id] = g
			n++
		}
	}
	return n, nil
}

type otpTestRepo struct {
	mu   sync.Mutex
	byID map[string]otp.OTP
}

func newOTPTestRepo() *otpTestRepo {
	return &otpTestRepo{byID: map[string]otp.OTP{}}
}

func (r *otpTestRepo) Create(ctx context.Context, o otp.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[o.ID] = o
	return nil
}

func (r *otpTestRepo) Consume(ctx context.Context, code string, purpose otp.Purpose, now time.Time) (otp.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, o := range r.byID {
		if o.Code != code || o.Purpose != purpose {
			continue
		}
		if o.IsUsed || !o.ExpiresAt.After(now) {
			continue
		}
		o.IsUsed = true
		o.UsedAt = &now
		r.byID[id] = o
		return o, nil
	}
	return otp.OTP{}, errRepoNotFound
}

type ownerMap map[string]string

func (m ownerMap) OwnerOf(ctx context.Context, petID string) (string, error) {
	owner, ok := m[petID]
	if !ok {
		return "", errRepoNotFound
	}
	return owner, nil
}

// captureSender guarda el último envío y avisa por canal (el delivery corre
// en goroutine propia).
type captureSender struct {
	mu sync.Mutex

	recipient string
	code      string
	fail      bool

	done chan struct{}
}

func newCaptureSender() *captureSender {
	return &captureSender{done: make(chan struct{}, 8)}
}

func (s *captureSender) SendCode(ctx context.Context, recipientContact, code string) error {
	s.mu.Lock()
	s.recipient = recipientContact
	s.code = code
	fail := s.fail
	s.mu.Unlock()

	s.done <- struct{}{}
	if fail {
		return errors.New("sender: gateway down")
	}
	return nil
}

func (s *captureSender) last(t *testing.T) (string, string) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipient, s.code
}

func newTestService(repo *testRepo, owners ownerMap, sender *captureSender) (*Service, *otpTestRepo) {
	otpRepo := newOTPTestRepo()
	otpSvc := otp.NewService(otpRepo)
	return NewService(repo, otpSvc, owners, sender, nil), otpRepo
}

// -------------------------
// Tests
// -------------------------

func TestService_RequestAccess_NeverReturnsCode(t *testing.T) {
	repo := newTestRepo()
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	svc, otpRepo := newTestService(repo, owners, sender)

	h, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, h.OTPID)
	require.False(t, h.ExpiresAt.IsZero())

	// El código viaja solo hacia el dueño.
	recipient, code := sender.last(t)
	assert.Equal(t, "owner-1", recipient)
	assert.Len(t, code, otp.CodeDigits)

	stored := otpRepo.byID[h.OTPID]
	assert.Equal(t, code, stored.Code)
	assert.Equal(t, "owner-1", stored.RecipientContact)
}

func TestService_RequestAccess_UnknownPet(t *testing.T) {
	svc, _ := newTestService(newTestRepo(), ownerMap{}, newCaptureSender())

	_, err := svc.RequestAccess(context.Background(), "ghost", "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RequestAccess_DeliveryFailureDoesNotFail(t *testing.T) {
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	sender.fail = true
	svc, _ := newTestService(newTestRepo(), owners, sender)

	h, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, h.OTPID)

	// El envío igual se intentó.
	sender.last(t)
}

func TestService_GrantAccess_HappyPath(t *testing.T) {
	repo := newTestRepo()
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	svc, _ := newTestService(repo, owners, sender)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	_, code := sender.last(t)

	g, err := svc.GrantAccess(context.Background(), GrantInput{
		PetID:         "pet-1",
		OwnerUserID:   "owner-1",
		ClinicID:      "clinic-1",
		DoctorID:      "doc-1",
		Code:          code,
		DurationHours: 48,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusActive, g.Status)
	assert.Equal(t, "pet-1", g.PetID)
	assert.Equal(t, "clinic-1", g.ClinicID)
	assert.Equal(t, "doc-1", g.DoctorID)
	assert.Equal(t, "owner-1", g.OwnerUserID)
	assert.NotEmpty(t, g.OTPID)
	assert.Equal(t, now, g.GrantedAt)
	assert.Equal(t, now.Add(48*time.Hour), g.ExpiresAt)
	assert.True(t, g.LiveAt(now))
}

func TestService_GrantAccess_OnlyTrueOwner(t *testing.T) {
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	svc, _ := newTestService(newTestRepo(), owners, sender)

	_, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	_, code := sender.last(t)

	_, err = svc.GrantAccess(context.Background(), GrantInput{
		PetID:         "pet-1",
		OwnerUserID:   "intruder",
		ClinicID:      "clinic-1",
		Code:          code,
		DurationHours: 24,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_GrantAccess_BadCodeIsOpaque(t *testing.T) {
	owners := ownerMap{"pet-1": "owner-1"}
	svc, _ := newTestService(newTestRepo(), owners, newCaptureSender())

	_, err := svc.GrantAccess(context.Background(), GrantInput{
		PetID:         "pet-1",
		OwnerUserID:   "owner-1",
		ClinicID:      "clinic-1",
		Code:          "000000",
		DurationHours: 24,
	})
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestService_GrantAccess_CodeSingleUse(t *testing.T) {
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	svc, _ := newTestService(newTestRepo(), owners, sender)

	_, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	_, code := sender.last(t)

	in := GrantInput{
		PetID:         "pet-1",
		OwnerUserID:   "owner-1",
		ClinicID:      "clinic-1",
		Code:          code,
		DurationHours: 24,
	}

	_, err = svc.GrantAccess(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.GrantAccess(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestService_GrantAccess_ConcurrentRedeem_OneGrant(t *testing.T) {
	repo := newTestRepo()
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	svc, _ := newTestService(repo, owners, sender)

	_, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	_, code := sender.last(t)

	const attempts = 8

	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.GrantAccess(context.Background(), GrantInput{
				PetID:         "pet-1",
				OwnerUserID:   "owner-1",
				ClinicID:      "clinic-1",
				Code:          code,
				DurationHours: 24,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrInvalidOrExpired)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent redeem must win")
	assert.Len(t, repo.byID, 1, "exactly one grant must exist")
}

func TestService_GrantAccess_Validation(t *testing.T) {
	owners := ownerMap{"pet-1": "owner-1"}
	svc, _ := newTestService(newTestRepo(), owners, newCaptureSender())

	cases := []GrantInput{
		{OwnerUserID: "owner-1", ClinicID: "c", Code: "123456", DurationHours: 1},            // sin pet
		{PetID: "pet-1", ClinicID: "c", Code: "123456", DurationHours: 1},                    // sin owner
		{PetID: "pet-1", OwnerUserID: "owner-1", Code: "123456", DurationHours: 1},           // sin clínica
		{PetID: "pet-1", OwnerUserID: "owner-1", ClinicID: "c", DurationHours: 1},            // sin código
		{PetID: "pet-1", OwnerUserID: "owner-1", ClinicID: "c", Code: "123456"},              // sin duración
		{PetID: "pet-1", OwnerUserID: "owner-1", ClinicID: "c", Code: "123456", DurationHours: -2},
	}
	for _, in := range cases {
		_, err := svc.GrantAccess(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %+v", in)
	}
}

func TestService_RevokeAccess_IdempotentAndTerminal(t *testing.T) {
	repo := newTestRepo()
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	svc, _ := newTestService(repo, owners, sender)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	_, code := sender.last(t)

	g, err := svc.GrantAccess(context.Background(), GrantInput{
		PetID:         "pet-1",
		OwnerUserID:   "owner-1",
		ClinicID:      "clinic-1",
		Code:          code,
		DurationHours: 24,
	})
	require.NoError(t, err)

	// Solo el dueño revoca.
	_, err = svc.RevokeAccess(context.Background(), g.ID, "intruder")
	assert.ErrorIs(t, err, ErrForbidden)

	revoked, err := svc.RevokeAccess(context.Background(), g.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)
	require.NotNil(t, revoked.RevokedAt)
	assert.False(t, revoked.LiveAt(now))

	// idempotente
	again, err := svc.RevokeAccess(context.Background(), g.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, again.Status)
}

func TestService_RevokeAccess_AfterExpiryStillRevokes(t *testing.T) {
	repo := newTestRepo()
	owners := ownerMap{"pet-1": "owner-1"}
	sender := newCaptureSender()
	svc, _ := newTestService(repo, owners, sender)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.RequestAccess(context.Background(), "pet-1", "doc-1")
	require.NoError(t, err)
	_, code := sender.last(t)

	g, err := svc.GrantAccess(context.Background(), GrantInput{
		PetID:         "pet-1",
		OwnerUserID:   "owner-1",
		ClinicID:      "clinic-1",
		Code:          code,
		DurationHours: 1,
	})
	require.NoError(t, err)

	// Ya vencido por reloj, revocar sigue funcionando y queda revoked.
	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	revoked, err := svc.RevokeAccess(context.Background(), g.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)
}

func TestService_SweepExpired(t *testing.T) {
	repo := newTestRepo()
	owners := ownerMap{"pet-1": "owner-1"}
	svc, _ := newTestService(repo, owners, newCaptureSender())

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	seed := []Grant{
		{ID: "g1", PetID: "pet-1", ClinicID: "c1", OwnerUserID: "owner-1", Status: StatusActive, ExpiresAt: now.Add(-time.Hour)},
		{ID: "g2", PetID: "pet-1", ClinicID: "c1", OwnerUserID: "owner-1", Status: StatusActive, ExpiresAt: now.Add(time.Hour)},
		{ID: "g3", PetID: "pet-1", ClinicID: "c1", OwnerUserID: "owner-1", Status: StatusRevoked, ExpiresAt: now.Add(-time.Hour)},
	}
	for _, g := range seed {
		require.NoError(t, repo.Create(context.Background(), g))
	}

	n, err := svc.SweepExpired(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	g1, _ := repo.GetByID(context.Background(), "g1")
	assert.Equal(t, StatusExpired, g1.Status)
	g2, _ := repo.GetByID(context.Background(), "g2")
	assert.Equal(t, StatusActive, g2.Status)
	g3, _ := repo.GetByID(context.Background(), "g3")
	assert.Equal(t, StatusRevoked, g3.Status)
}
