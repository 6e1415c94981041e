package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/obot-platform/pagerduty-app/pkg/encryption"
	"github.com/obot-platform/pagerduty-app/pkg/types"
)

// Store resolves a workspace to its KV client and maps app data onto keys.
type Store struct {
	httpClient    *http.Client
	encryptionKey []byte
}

func NewStore(encryptionKey []byte) *Store {
	return &Store{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		encryptionKey: encryptionKey,
	}
}

func (s *Store) client(ws types.Workspace) *Client {
	return NewClient(ws.SiteURL, ws.BotAccessToken, s.httpClient)
}

// LoadCredentials returns the PagerDuty client settings of ws.
func (s *Store) LoadCredentials(ctx context.Context, ws types.Workspace) (*types.ProviderCredentials, error) {
	var creds types.ProviderCredentials
	if err := s.client(ws).Get(ctx, ConfigKey, &creds); errors.Is(err, ErrNotFound) {
		return nil, types.ErrProviderNotConfigured
	} else if err != nil {
		return nil, fmt.Errorf("failed to load PagerDuty configuration: %w", err)
	}

	if creds.ClientID == "" || creds.ProviderBaseURL == "" {
		return nil, types.ErrProviderNotConfigured
	}
	return &creds, nil
}

// SaveCredentials replaces the PagerDuty client settings of ws.
func (s *Store) SaveCredentials(ctx context.Context, ws types.Workspace, creds *types.ProviderCredentials) error {
	if err := s.client(ws).Set(ctx, ConfigKey, creds); err != nil {
		return fmt.Errorf("failed to save PagerDuty configuration: %w", err)
	}
	return nil
}

// StoreToken seals result and stores it for userID.
func (s *Store) StoreToken(ctx context.Context, ws types.Workspace, userID string, result *types.TokenExchangeResult) error {
	sealed, err := encryption.EncryptData(result, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}
	if err := s.client(ws).Set(ctx, UserTokenKey(userID), sealed); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// LoadToken reads back the token stored for userID.
func (s *Store) LoadToken(ctx context.Context, ws types.Workspace, userID string) (*types.TokenExchangeResult, error) {
	var sealed encryption.EncryptedProps
	if err := s.client(ws).Get(ctx, UserTokenKey(userID), &sealed); err != nil {
		return nil, err
	}

	var result types.TokenExchangeResult
	if err := encryption.DecryptData(&sealed, s.encryptionKey, &result); err != nil {
		return nil, fmt.Errorf("failed to open token: %w", err)
	}
	return &result, nil
}
