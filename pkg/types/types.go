package types

import (
	"time"
)

// Account represents one tenant of the platform. Every provisionable
// resource is scoped to exactly one account.
type Account struct {
	ID            string    `json:"id"`
	AccountNumber string    `json:"account_number"` // e.g. "3141-5926-5359"
	CompanyName   string    `json:"company_name"`
	APIKey        string    `json:"api_key"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User represents an authenticated platform user within an account.
type User struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsStaff   bool      `json:"is_staff"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile joins a user to its account. Secrets are owned by a
// user profile rather than by the bare user.
type UserProfile struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
}

// Secret represents encrypted sensitive data owned by a user profile.
// The Data field is always ciphertext (AES-256-GCM, nonce prepended);
// plaintext never reaches the store.
type Secret struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Data        []byte    `json:"data"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DbEngine identifies a supported SQL database driver.
type DbEngine string

const (
	DbEngineMySQL    DbEngine = "django.db.backends.mysql"
	DbEnginePostgres DbEngine = "django.db.backends.postgresql"
	DbEngineOracle   DbEngine = "django.db.backends.oracle"
	DbEngineSQLite   DbEngine = "django.db.backends.sqlite3"
)

// DbEngines lists every supported engine, used by validation messages.
var DbEngines = []DbEngine{
	DbEngineMySQL,
	DbEnginePostgres,
	DbEngineOracle,
	DbEngineSQLite,
}

// SqlConnection represents a reusable connection to a remote SQL
// database. Credentials are stored as secret references, never inline.
type SqlConnection struct {
	ID          string   `json:"id"`
	AccountID   string   `json:"account_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Tags        []string `json:"tags,omitempty"`
	DbEngine    DbEngine `json:"db_engine"`
	Hostname    string   `json:"hostname"`
	Port        int      `json:"port"`
	Database    string   `json:"database"`
	Username    string   `json:"username"`
	// PasswordSecretID references a Secret record; empty for engines
	// that authenticate without a password (e.g. sqlite).
	PasswordSecretID string `json:"password_secret_id"`

	// Optional proxy tunnel settings.
	ProxyHost             string `json:"proxy_host,omitempty"`
	ProxyPort             int    `json:"proxy_port,omitempty"`
	ProxyUsername         string `json:"proxy_username,omitempty"`
	ProxyPasswordSecretID string `json:"proxy_password_secret_id,omitempty"`

	// Connection pool tuning.
	PoolSize    int `json:"pool_size"`
	MaxOverflow int `json:"max_overflow"`
	Timeout     int `json:"timeout"` // seconds

	UseSSL    bool      `json:"use_ssl"`
	IsValid   bool      `json:"is_valid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PluginClass distinguishes the data source behind a plugin.
type PluginClass string

const (
	PluginClassStatic PluginClass = "static"
	PluginClassSql    PluginClass = "sql"
)

// Plugin represents a chatbot extension. Static plugins return a fixed
// data payload; SQL plugins run a query through a SqlConnection.
type Plugin struct {
	ID          string      `json:"id"`
	AccountID   string      `json:"account_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Tags        []string    `json:"tags,omitempty"`
	Class       PluginClass `json:"class"`

	// Prompt configuration.
	SystemRole  string  `json:"system_role"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`

	// Selector: when the plugin activates.
	Directive   string   `json:"directive"`
	SearchTerms []string `json:"search_terms"`

	// Static plugin payload.
	StaticData map[string]string `json:"static_data,omitempty"`

	// SQL plugin fields.
	SqlQuery       string            `json:"sql_query,omitempty"`
	ConnectionName string            `json:"connection_name,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeploymentStatus tracks whether a chatbot is live.
type DeploymentStatus string

const (
	DeploymentStatusUndeployed DeploymentStatus = "undeployed"
	DeploymentStatusDeployed   DeploymentStatus = "deployed"
)

// Chatbot represents a hosted chat application.
type Chatbot struct {
	ID          string   `json:"id"`
	AccountID   string   `json:"account_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Tags        []string `json:"tags,omitempty"`

	AppName           string   `json:"app_name"`
	AppAssistant      string   `json:"app_assistant"`
	AppWelcomeMessage string   `json:"app_welcome_message"`
	AppExamplePrompts []string `json:"app_example_prompts"`

	DefaultModel       string  `json:"default_model"`
	DefaultTemperature float64 `json:"default_temperature"`
	DefaultMaxTokens   int     `json:"default_max_tokens"`

	Subdomain    string   `json:"subdomain"`
	CustomDomain string   `json:"custom_domain,omitempty"`
	Plugins      []string `json:"plugins"` // plugin names within the account

	DeploymentStatus DeploymentStatus `json:"deployment_status"`
	URL              string           `json:"url,omitempty"`
	DeployedAt       time.Time        `json:"deployed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one turn of a chatbot conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// LogEntry is one line of chatbot activity history.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}
