package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/wallet2fa/core"
	"github.com/layer-3/wallet2fa/internal/eth"
	"github.com/layer-3/wallet2fa/internal/metrics"
	"github.com/layer-3/wallet2fa/internal/proof"
	"github.com/layer-3/wallet2fa/internal/siwe"
	"github.com/layer-3/wallet2fa/ports"
)

const (
	DefaultSessionTTL     = 24 * time.Hour
	DefaultProfileHistory = 10
)

// Options tunes the AuthService. Zero values fall back to defaults.
type Options struct {
	ServiceID      string
	Domain         string // expected challenge domain, empty accepts any
	SessionTTL     time.Duration
	ProfileHistory int
	Clock          clock.Clock
	Logger         logrus.FieldLogger
	Metrics        *metrics.Metrics
}

// VerifyRequest carries a signed challenge
type VerifyRequest struct {
	Message   string
	Signature string
	Address   string
}

// VerifyResult is returned after a successful sign-in
type VerifyResult struct {
	Token        string
	Address      string
	ExpiresAt    time.Time
	ProofSummary core.ProofSummary
	// Degraded is set when the sign-in succeeded but was not recorded in the ledger
	Degraded bool
}

// Profile is the authenticated user's sign-in history
type Profile struct {
	Address       string
	Authenticated bool
	TotalLogins   int
	LastLogin     *time.Time
	RecentLogins  []*core.AuthenticationRecord
}

// AuthService handles authentication business logic
type AuthService struct {
	nonces    *NonceRegistry
	proofs    *proof.Generator
	tokenizer ports.Tokenizer
	ledger    ports.Ledger
	eventPub  ports.EventPublisher

	clock          clock.Clock
	log            logrus.FieldLogger
	metrics        *metrics.Metrics
	serviceID      string
	domain         string
	sessionTTL     time.Duration
	profileHistory int
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces *NonceRegistry,
	tokenizer ports.Tokenizer,
	ledger ports.Ledger,
	eventPub ports.EventPublisher,
	opts Options,
) *AuthService {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.ServiceID == "" {
		opts.ServiceID = proof.DefaultServiceID
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.ProfileHistory <= 0 {
		opts.ProfileHistory = DefaultProfileHistory
	}

	return &AuthService{
		nonces:         nonces,
		proofs:         proof.NewGenerator(opts.Clock),
		tokenizer:      tokenizer,
		ledger:         ledger,
		eventPub:       eventPub,
		clock:          opts.Clock,
		log:            opts.Logger,
		metrics:        opts.Metrics,
		serviceID:      opts.ServiceID,
		domain:         opts.Domain,
		sessionTTL:     opts.SessionTTL,
		profileHistory: opts.ProfileHistory,
	}
}

// RequestNonce issues a challenge nonce for the address
func (s *AuthService) RequestNonce(ctx context.Context, address string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", &core.ValidationError{Fields: []string{"address"}}
	}

	nonce, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return "", err
	}

	s.metrics.NonceIssued()
	s.log.WithField("address", NormalizeAddress(address)).Debug("nonce issued")

	return nonce, nil
}

// Verify authenticates a signed challenge. Once the nonce is consumed it stays
// consumed, whatever happens afterwards.
func (s *AuthService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	result, err := s.verify(ctx, req)
	s.metrics.VerifyAttempt(outcome(err))
	if err != nil {
		s.log.WithError(err).WithField("address", NormalizeAddress(req.Address)).Info("verification failed")
		return nil, err
	}
	return result, nil
}

func (s *AuthService) verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"message", req.Message},
		{"signature", req.Signature},
		{"address", req.Address},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, &core.ValidationError{Fields: missing}
	}

	challenge, err := siwe.Decode(req.Message)
	if err != nil {
		return nil, err
	}

	if err := challenge.Validate(s.clock.Now(), s.domain); err != nil {
		return nil, err
	}

	signer, err := eth.Verify(challenge, req.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}
	if !eth.SameAddress(signer.Hex(), req.Address) {
		return nil, fmt.Errorf("request address does not match signer: %w", core.ErrAddressMismatch)
	}

	address := NormalizeAddress(signer.Hex())

	consumed, err := s.nonces.Consume(ctx, address, challenge.Nonce)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, core.ErrInvalidOrExpiredNonce
	}

	now := s.clock.Now()
	artifact, err := s.proofs.Generate(address, now.UnixMilli(), s.serviceID)
	if err != nil {
		return nil, err
	}

	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		Verified:  true,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	record := &core.AuthenticationRecord{
		ID:        uuid.New().String(),
		Address:   address,
		Timestamp: now,
		Proof:     artifact,
		Verified:  true,
	}

	result := &VerifyResult{
		Token:        token,
		Address:      address,
		ExpiresAt:    session.ExpiresAt,
		ProofSummary: artifact.Summary(),
	}

	// The session is already issued; a ledger outage only degrades the response.
	if err := s.ledger.Append(ctx, record); err != nil {
		s.metrics.LedgerFailure()
		s.log.WithError(fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)).
			WithField("address", address).
			Warn("failed to record authentication")
		result.Degraded = true
	}

	if err := s.eventPub.PublishAuthenticated(ctx, record); err != nil {
		s.metrics.EventPublished(false)
		s.log.WithError(err).WithField("address", address).Warn("failed to publish authenticated event")
	} else {
		s.metrics.EventPublished(true)
	}

	s.log.WithField("address", address).Info("wallet authenticated")

	return result, nil
}

// ValidateSession resolves a bearer token into its session
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		if !errors.Is(err, core.ErrUnauthorized) {
			err = fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
		}
		return nil, err
	}
	return session, nil
}

// Profile returns the recent sign-in history of address
func (s *AuthService) Profile(ctx context.Context, address string) (*Profile, error) {
	address = NormalizeAddress(address)

	records, err := s.ledger.QueryRecent(ctx, address, s.profileHistory)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}

	profile := &Profile{
		Address:       address,
		Authenticated: true,
		TotalLogins:   len(records),
		RecentLogins:  records,
	}
	if len(records) > 0 {
		last := records[0].Timestamp
		profile.LastLogin = &last
	}

	return profile, nil
}

// Milestone returns metadata for the address's all-time login count
func (s *AuthService) Milestone(ctx context.Context, address string) (*proof.Metadata, error) {
	address = NormalizeAddress(address)

	count, err := s.ledger.Count(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
	metadata := proof.Milestone(count, address)
	return &metadata, nil
}

// VerifyProof runs the structural and freshness check on an artifact
func (s *AuthService) VerifyProof(artifact *core.ProofArtifact) proof.Result {
	return s.proofs.Verify(artifact)
}

func outcome(err error) string {
	var validation *core.ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &validation):
		return metrics.OutcomeInvalid
	case errors.Is(err, core.ErrMalformedChallenge), errors.Is(err, core.ErrInvalidChallenge):
		return metrics.OutcomeMalformed
	case errors.Is(err, core.ErrInvalidSignature):
		return metrics.OutcomeSignature
	case errors.Is(err, core.ErrInvalidOrExpiredNonce):
		return metrics.OutcomeNonce
	default:
		return metrics.OutcomeError
	}
}
