// Package account resolves API credentials into tenant context and
// provisions the initial tenant on a fresh installation.
package account

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/log"
	"github.com/smarter-sh/smarter/pkg/storage"
	"github.com/smarter-sh/smarter/pkg/types"
)

// ErrUnauthorized is returned when an API key does not resolve to an
// account.
var ErrUnauthorized = errors.New("invalid or unknown API key")

// Resolver turns an API key into an authenticated tenant context.
type Resolver interface {
	Resolve(apiKey string) (broker.Context, error)
}

// StoreResolver resolves contexts against the persisted account store.
type StoreResolver struct {
	store storage.Store
}

// NewResolver creates a store-backed resolver.
func NewResolver(store storage.Store) *StoreResolver {
	return &StoreResolver{store: store}
}

// Resolve looks up the account owning the API key and its first admin
// user. Commands execute as that user; per-user API keys are a later
// concern.
func (r *StoreResolver) Resolve(apiKey string) (broker.Context, error) {
	if apiKey == "" {
		return broker.Context{}, ErrUnauthorized
	}

	account, err := r.store.GetAccountByAPIKey(apiKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return broker.Context{}, ErrUnauthorized
		}
		return broker.Context{}, fmt.Errorf("failed to resolve API key: %w", err)
	}

	users, err := r.store.ListUsers(account.ID)
	if err != nil {
		return broker.Context{}, fmt.Errorf("failed to list users for account %s: %w", account.AccountNumber, err)
	}
	var user *types.User
	for _, u := range users {
		if u.IsAdmin {
			user = u
			break
		}
	}
	if user == nil && len(users) > 0 {
		user = users[0]
	}
	if user == nil {
		return broker.Context{}, fmt.Errorf("account %s has no users", account.AccountNumber)
	}

	return broker.Context{
		Account: account,
		User:    user,
		Profile: &types.UserProfile{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			AccountID: account.ID,
		},
	}, nil
}

// Bootstrap ensures at least one account exists, creating a default
// account with an admin user on a fresh store. It returns the account
// serving as the default tenant; the generated API key is logged once
// at creation, since it cannot be recovered later.
func Bootstrap(store storage.Store, companyName string) (*types.Account, error) {
	accounts, err := store.ListAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) > 0 {
		return accounts[0], nil
	}

	if companyName == "" {
		companyName = "Default Account"
	}
	apiKey, err := NewAPIKey()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	account := &types.Account{
		ID:            uuid.NewString(),
		AccountNumber: NewAccountNumber(),
		CompanyName:   companyName,
		APIKey:        apiKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.CreateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to create default account: %w", err)
	}

	admin := &types.User{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Username:  "admin",
		IsStaff:   true,
		IsAdmin:   true,
		CreatedAt: now,
	}
	if err := store.CreateUser(admin); err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	logger := log.WithComponent("account")
	logger.Info().
		Str("account_number", account.AccountNumber).
		Str("api_key", account.APIKey).
		Msg("default account provisioned")
	return account, nil
}

// NewAccountNumber generates a tenant account number in the canonical
// ####-####-#### form.
func NewAccountNumber() string {
	groups := make([]string, 3)
	for i := range groups {
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken, which is not recoverable here.
			panic(err)
		}
		groups[i] = fmt.Sprintf("%04d", n.Int64())
	}
	return fmt.Sprintf("%s-%s-%s", groups[0], groups[1], groups[2])
}

// NewAPIKey generates a 256-bit API key, hex encoded.
func NewAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
