// Package flow runs the two round trips of a PKCE account link.
//
// An attempt starts Idle. Initiate moves it to AuthorizationInitiated by
// minting a verifier and a state, storing state -> verifier and handing back
// the authorization URL. Complete consumes the stored entry exactly once and
// ends the attempt either Completed (token exchanged and handed to the sink)
// or Failed. A failed attempt cannot be resumed; the user starts over.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/obot-platform/pagerduty-app/pkg/pkce"
	"github.com/obot-platform/pagerduty-app/pkg/providers"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/rs/zerolog/log"
)

const DefaultCorrelationTTL = 10 * time.Minute

type CorrelationStore interface {
	StoreCorrelation(entry *types.CorrelationEntry) error
	ConsumeCorrelation(state string) (*types.CorrelationEntry, error)
}

type CredentialsLoader interface {
	LoadCredentials(ctx context.Context, ws types.Workspace) (*types.ProviderCredentials, error)
}

// TokenSink receives the token of a completed attempt.
type TokenSink interface {
	StoreToken(ctx context.Context, ws types.Workspace, userID string, result *types.TokenExchangeResult) error
}

type Options struct {
	CorrelationTTL time.Duration
	Generator      pkce.Generator
	Now            func() time.Time
}

type Orchestrator struct {
	store       CorrelationStore
	credentials CredentialsLoader
	provider    providers.Provider
	tokens      TokenSink
	generator   pkce.Generator
	ttl         time.Duration
	now         func() time.Time
}

func New(store CorrelationStore, credentials CredentialsLoader, provider providers.Provider, tokens TokenSink, opts Options) *Orchestrator {
	if opts.CorrelationTTL <= 0 {
		opts.CorrelationTTL = DefaultCorrelationTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:       store,
		credentials: credentials,
		provider:    provider,
		tokens:      tokens,
		generator:   opts.Generator,
		ttl:         opts.CorrelationTTL,
		now:         opts.Now,
	}
}

type InitiateRequest struct {
	Workspace   types.Workspace
	UserID      string
	RedirectURI string

	// State is the platform's own state for this connect, if it sent one.
	// It must come back on the callback, so it becomes the correlation key.
	State string
}

// Attempt is an authorization that is waiting for its callback.
type Attempt struct {
	State            string
	AuthorizationURL string
	ExpiresAt        time.Time
}

// Initiate starts a new attempt and returns the URL the user must visit.
func (o *Orchestrator) Initiate(ctx context.Context, req InitiateRequest) (*Attempt, error) {
	if req.RedirectURI == "" {
		return nil, errors.New("redirect URI is required")
	}

	creds, err := o.credentials.LoadCredentials(ctx, req.Workspace)
	if err != nil {
		return nil, err
	}

	verifier, err := o.generator.Verifier()
	if err != nil {
		return nil, err
	}
	state := req.State
	if state == "" {
		if state, err = o.generator.State(); err != nil {
			return nil, err
		}
	} else if !pkce.ValidExternalState(state) {
		return nil, fmt.Errorf("%w: supplied state must be %d-%d unreserved characters",
			types.ErrInvalidState, pkce.MinExternalStateLength, pkce.MaxExternalStateLength)
	}

	authURL, err := o.provider.GetAuthorizationURLWithPKCE(creds, req.RedirectURI, state, pkce.Challenge(verifier))
	if err != nil {
		return nil, err
	}

	entry := &types.CorrelationEntry{
		State:        state,
		CodeVerifier: verifier,
		RedirectURI:  req.RedirectURI,
		SiteURL:      req.Workspace.SiteURL,
		UserID:       req.UserID,
		ExpiresAt:    o.now().Add(o.ttl),
	}
	if err := o.store.StoreCorrelation(entry); err != nil {
		return nil, fmt.Errorf("failed to store correlation entry: %w", err)
	}

	log.Ctx(ctx).Debug().Str("user_id", req.UserID).Time("expires_at", entry.ExpiresAt).Msg("Authorization initiated")

	return &Attempt{
		State:            state,
		AuthorizationURL: authURL,
		ExpiresAt:        entry.ExpiresAt,
	}, nil
}

type CompleteRequest struct {
	Workspace types.Workspace
	UserID    string
	State     string
	Code      string

	// ProviderError is the error parameter of a denied authorization.
	ProviderError string
}

// Complete finishes the attempt identified by req.State. Unknown, expired,
// replayed or foreign states all yield ErrCorrelationNotFound and never reach
// the token endpoint.
func (o *Orchestrator) Complete(ctx context.Context, req CompleteRequest) (*types.TokenExchangeResult, error) {
	entry, err := o.store.ConsumeCorrelation(req.State)
	if err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx).With().Str("user_id", entry.UserID).Logger()

	if entry.SiteURL != req.Workspace.SiteURL || entry.UserID != req.UserID {
		logger.Warn().Msg("Callback does not belong to the attempt's workspace or user")
		return nil, types.ErrCorrelationNotFound
	}

	if req.Code == "" {
		logger.Info().Str("error", req.ProviderError).Msg("Authorization returned without a code")
		return nil, &types.TokenExchangeError{Kind: types.ErrTokenExchangeRejected, ErrorCode: req.ProviderError}
	}

	creds, err := o.credentials.LoadCredentials(ctx, req.Workspace)
	if err != nil {
		return nil, err
	}

	// The entry is already consumed; finish the exchange even if the caller hangs up.
	exchangeCtx := context.WithoutCancel(ctx)

	result, err := o.provider.ExchangeCodeForToken(exchangeCtx, creds, req.Code, entry.CodeVerifier, entry.RedirectURI)
	if err != nil {
		var exchangeErr *types.TokenExchangeError
		if errors.As(err, &exchangeErr) && len(exchangeErr.Payload) > 0 {
			logger.Warn().Err(err).RawJSON("provider_response", jsonOrString(exchangeErr.Payload)).Msg("Token exchange failed")
		} else {
			logger.Warn().Err(err).Msg("Token exchange failed")
		}
		return nil, err
	}

	if err := o.tokens.StoreToken(exchangeCtx, req.Workspace, entry.UserID, result); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	logger.Info().Msg("Account connected")
	return result, nil
}

func jsonOrString(payload []byte) []byte {
	if json.Valid(payload) {
		return payload
	}
	return []byte(strconv.Quote(string(payload)))
}
