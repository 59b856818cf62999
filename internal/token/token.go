// Package token implements the session token lifecycle: issuance, sliding
// renewal, absolute expiry and revocation.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/model"
	"github.com/Hayal27/ITPCMS-sub000/internal/repository"
)

// Claims are the session token claims. InitialLogin pins the absolute
// session start and survives every renewal.
type Claims struct {
	ActorID      int64 `json:"uid"`
	RoleID       int64 `json:"rid"`
	InitialLogin int64 `json:"ini"`
	jwt.RegisteredClaims
}

// Presence clears the account presence flag on revocation.
type Presence interface {
	SetOnline(ctx context.Context, id int64, online bool) error
}

// Service issues, verifies, slides and revokes signed session tokens.
type Service struct {
	signKey    []byte
	revoked    repository.RevocationRepository
	presence   Presence
	idleTTL    time.Duration // short expiry refreshed on renewal
	renewAfter time.Duration // minimum token age before a renewal is issued
	ceiling    time.Duration // absolute session lifetime from initial login
	log        *zap.Logger
	now        func() time.Time
}

// NewService constructs the token service with required dependencies.
func NewService(signKey []byte, revoked repository.RevocationRepository, presence Presence,
	idleTTL, renewAfter, ceiling time.Duration, log *zap.Logger) *Service {
	return &Service{
		signKey:    signKey,
		revoked:    revoked,
		presence:   presence,
		idleTTL:    idleTTL,
		renewAfter: renewAfter,
		ceiling:    ceiling,
		log:        log,
		now:        time.Now,
	}
}

// WithClock replaces the time source; tests use it to simulate idle windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue creates a signed HS256 session token for the actor.
func (s *Service) Issue(actorID, roleID int64, initialLogin time.Time) (model.Tokens, error) {
	now := s.now()
	exp := now.Add(s.idleTTL)
	claims := Claims{
		ActorID:      actorID,
		RoleID:       roleID,
		InitialLogin: initialLogin.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{SessionToken: signed, ExpiresAt: exp}, nil
}

// Verify checks a bearer value and returns the decoded actor. When the
// token is older than the renewal threshold a replacement token with the
// same identity and initial login is returned; renewal is best-effort and
// never fails an otherwise valid request.
func (s *Service) Verify(ctx context.Context, tokenStr string) (model.Actor, string, error) {
	// Revocation wins over everything, including a still-valid signature.
	revoked, err := s.revoked.IsRevoked(ctx, tokenStr)
	if err != nil {
		return model.Actor{}, "", err
	}
	if revoked {
		return model.Actor{}, "", errs.ErrTokenRevoked
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return model.Actor{}, "", errs.ErrTokenExpired
	}

	initialLogin := time.Unix(claims.InitialLogin, 0)
	now := s.now()
	if now.Sub(initialLogin) > s.ceiling {
		return model.Actor{}, "", errs.ErrSessionCeiling
	}

	actor := model.Actor{ID: claims.ActorID, RoleID: claims.RoleID, InitialLogin: initialLogin}

	var renewed string
	if claims.IssuedAt != nil && now.Sub(claims.IssuedAt.Time) > s.renewAfter {
		fresh, err := s.Issue(actor.ID, actor.RoleID, initialLogin)
		if err != nil {
			s.log.Warn("token renewal failed", zap.Int64("actor", actor.ID), zap.Error(err))
		} else {
			renewed = fresh.SessionToken
		}
	}
	return actor, renewed, nil
}

// Revoke inserts the token into the revocation store. The insert is
// synchronous and its failure fails the logout; clearing the presence
// flag is best-effort.
func (s *Service) Revoke(ctx context.Context, tokenStr string, actorID int64) error {
	if err := s.revoked.Insert(ctx, tokenStr, s.now().Add(s.ceiling)); err != nil {
		return err
	}
	if err := s.presence.SetOnline(ctx, actorID, false); err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Warn("presence clear failed", zap.Int64("actor", actorID), zap.Error(err))
	}
	return nil
}

// StartSweeper launches the periodic revocation-store sweep. It is a
// storage-reclamation concern only; errors are logged and the loop keeps
// running until ctx is done.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := s.revoked.DeleteExpired(ctx, s.now())
				if err != nil {
					s.log.Warn("revocation sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					s.log.Info("revocation sweep", zap.Int64("deleted", n))
				}
			}
		}
	}()
}
