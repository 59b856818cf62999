package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
)

type fakeRevocations struct {
	mu     sync.Mutex
	tokens map[string]time.Time

	insertErr error
	checkErr  error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{tokens: map[string]time.Time{}}
}

func (f *fakeRevocations) Insert(_ context.Context, token string, expiresAt time.Time) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[token]; ok {
		return nil // duplicate insert is a no-op
	}
	f.tokens[token] = expiresAt
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[token]
	return ok, nil
}

func (f *fakeRevocations) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, exp := range f.tokens {
		if exp.Before(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

type fakePresence struct {
	online map[int64]bool
	err    error
}

func (f *fakePresence) SetOnline(_ context.Context, id int64, online bool) error {
	if f.err != nil {
		return f.err
	}
	if f.online == nil {
		f.online = map[int64]bool{}
	}
	f.online[id] = online
	return nil
}

func newTestService(rev *fakeRevocations, pres *fakePresence, now *time.Time) *Service {
	s := NewService([]byte("test-key"), rev, pres,
		30*time.Minute, 5*time.Minute, 4*time.Hour, zap.NewNop())
	return s.WithClock(func() time.Time { return *now })
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestService(newFakeRevocations(), &fakePresence{}, &now)

	tok, err := s.Issue(42, 3, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	actor, renewed, err := s.Verify(context.Background(), tok.SessionToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if actor.ID != 42 || actor.RoleID != 3 {
		t.Fatalf("actor=%+v", actor)
	}
	if !actor.InitialLogin.Equal(now.Truncate(time.Second)) {
		t.Fatalf("initial login %v, want %v", actor.InitialLogin, now)
	}
	if renewed != "" {
		t.Fatalf("fresh token should not be renewed immediately")
	}
}

func TestVerify_RevokedBeatsValidity(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rev := newFakeRevocations()
	pres := &fakePresence{}
	s := newTestService(rev, pres, &now)

	tok, err := s.Issue(7, 2, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.Revoke(context.Background(), tok.SessionToken, 7); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if pres.online[7] {
		t.Fatalf("presence flag should be cleared on revoke")
	}

	// Rejection is idempotent across repeated verifications, well before
	// the embedded expiry.
	for i := 0; i < 3; i++ {
		if _, _, err := s.Verify(context.Background(), tok.SessionToken); !errors.Is(err, errs.ErrTokenRevoked) {
			t.Fatalf("verify %d: err=%v, want ErrTokenRevoked", i, err)
		}
	}

	// Re-revoking is a no-op, not an error.
	if err := s.Revoke(context.Background(), tok.SessionToken, 7); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
}

func TestVerify_IdleExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestService(newFakeRevocations(), &fakePresence{}, &now)

	tok, err := s.Issue(1, 2, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if _, _, err := s.Verify(context.Background(), tok.SessionToken); !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("err=%v, want ErrTokenExpired after 31m idle", err)
	}
}

func TestVerify_SlidingRenewal(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestService(newFakeRevocations(), &fakePresence{}, &now)

	tok, err := s.Issue(1, 2, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(6 * time.Minute)
	actor, renewed, err := s.Verify(context.Background(), tok.SessionToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if renewed == "" {
		t.Fatalf("expected a renewal after the renew threshold")
	}

	// The replacement keeps the identity and the original session start.
	now = now.Add(25 * time.Minute) // original token is past its expiry now
	actor2, _, err := s.Verify(context.Background(), renewed)
	if err != nil {
		t.Fatalf("Verify(renewed): %v", err)
	}
	if actor2.ID != actor.ID || !actor2.InitialLogin.Equal(actor.InitialLogin) {
		t.Fatalf("renewed token changed identity: %+v vs %+v", actor2, actor)
	}
}

func TestVerify_CeilingDespiteActivity(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	s := newTestService(newFakeRevocations(), &fakePresence{}, &now)

	tok, err := s.Issue(9, 2, start)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	current := tok.SessionToken

	// Renew every 10 minutes for 5 hours; acceptance must stop at the
	// 4-hour ceiling no matter how fresh the latest token is.
	for {
		now = now.Add(10 * time.Minute)
		_, renewed, err := s.Verify(context.Background(), current)
		if err != nil {
			if !errors.Is(err, errs.ErrSessionCeiling) {
				t.Fatalf("err=%v at +%v, want ErrSessionCeiling", err, now.Sub(start))
			}
			if got := now.Sub(start); got != 4*time.Hour+10*time.Minute {
				t.Fatalf("ceiling hit at +%v, want just past 4h", got)
			}
			return
		}
		if now.Sub(start) > 5*time.Hour {
			t.Fatalf("still accepted after 5h of renewals")
		}
		if renewed != "" {
			current = renewed
		}
	}
}

func TestRevoke_InsertFailureFailsLogout(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rev := newFakeRevocations()
	rev.insertErr = errors.New("store down")
	s := newTestService(rev, &fakePresence{}, &now)

	if err := s.Revoke(context.Background(), "some-token", 1); err == nil {
		t.Fatalf("revocation insert failure must propagate")
	}
}
