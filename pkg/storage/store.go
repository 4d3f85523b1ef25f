package storage

import (
	"errors"

	"github.com/smarter-sh/smarter/pkg/types"
)

// ErrNotFound is returned when no record matches a lookup. Callers use
// errors.Is to distinguish a miss from a hard storage failure.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for persisted platform state
type Store interface {
	// Accounts
	CreateAccount(account *types.Account) error
	GetAccount(id string) (*types.Account, error)
	GetAccountByNumber(number string) (*types.Account, error)
	GetAccountByAPIKey(apiKey string) (*types.Account, error)
	ListAccounts() ([]*types.Account, error)

	// Users
	CreateUser(user *types.User) error
	GetUser(id string) (*types.User, error)
	GetUserByUsername(accountID, username string) (*types.User, error)
	ListUsers(accountID string) ([]*types.User, error)

	// Secrets
	CreateSecret(secret *types.Secret) error
	UpdateSecret(secret *types.Secret) error
	GetSecret(id string) (*types.Secret, error)
	GetSecretByName(accountID, name string) (*types.Secret, error)
	ListSecrets(accountID string) ([]*types.Secret, error)
	DeleteSecret(id string) error

	// SQL connections
	CreateSqlConnection(conn *types.SqlConnection) error
	UpdateSqlConnection(conn *types.SqlConnection) error
	GetSqlConnection(id string) (*types.SqlConnection, error)
	GetSqlConnectionByName(accountID, name string) (*types.SqlConnection, error)
	ListSqlConnections(accountID string) ([]*types.SqlConnection, error)
	DeleteSqlConnection(id string) error

	// Plugins
	CreatePlugin(plugin *types.Plugin) error
	UpdatePlugin(plugin *types.Plugin) error
	GetPlugin(id string) (*types.Plugin, error)
	GetPluginByName(accountID, name string) (*types.Plugin, error)
	ListPlugins(accountID string) ([]*types.Plugin, error)
	DeletePlugin(id string) error

	// Chatbots
	CreateChatbot(chatbot *types.Chatbot) error
	UpdateChatbot(chatbot *types.Chatbot) error
	GetChatbot(id string) (*types.Chatbot, error)
	GetChatbotByName(accountID, name string) (*types.Chatbot, error)
	ListChatbots(accountID string) ([]*types.Chatbot, error)
	DeleteChatbot(id string) error

	// Utility
	SchemaVersion() (int, error)
	Close() error
}
