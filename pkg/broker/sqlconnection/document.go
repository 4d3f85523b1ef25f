// Package sqlconnection implements the manifest broker for the
// SqlConnection kind: a reusable, credentialed connection to a remote
// SQL database.
package sqlconnection

import (
	"github.com/smarter-sh/smarter/pkg/manifest"
	"github.com/smarter-sh/smarter/pkg/types"
)

// Kind is the manifest kind this broker reconciles.
const Kind = "SqlConnection"

// Spec is the desired-state payload of a SqlConnection manifest.
// Password and proxyPassword carry either the name of an existing
// Secret or a plaintext value that is converted into one at apply time;
// plaintext never reaches the record.
type Spec struct {
	DbEngine types.DbEngine `json:"dbEngine" validate:"required,oneof=django.db.backends.mysql django.db.backends.postgresql django.db.backends.oracle django.db.backends.sqlite3"`
	Hostname string         `json:"hostname,omitempty" validate:"omitempty,hostname|ip"`
	Port     int            `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Database string         `json:"database" validate:"required"`
	Username string         `json:"username,omitempty"`
	Password string         `json:"password,omitempty"`

	ProxyHost     string `json:"proxyHost,omitempty" validate:"omitempty,hostname|ip"`
	ProxyPort     int    `json:"proxyPort,omitempty" validate:"omitempty,min=1,max=65535"`
	ProxyUsername string `json:"proxyUsername,omitempty"`
	ProxyPassword string `json:"proxyPassword,omitempty"`

	PoolSize    int  `json:"poolSize,omitempty" validate:"omitempty,gt=0"`
	MaxOverflow int  `json:"maxOverflow,omitempty" validate:"omitempty,gte=0"`
	Timeout     int  `json:"timeout,omitempty" validate:"omitempty,gt=0"`
	UseSsl      bool `json:"useSsl,omitempty"`
}

// Status is the server-populated state of a SqlConnection.
type Status struct {
	manifest.Status
	ConnectionString string `json:"connectionString,omitempty"`
	IsValid          bool   `json:"isValid"`
}

// Document is the full manifest shape, used for schema rendering.
type Document struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Metadata   manifest.Metadata `json:"metadata"`
	Spec       Spec              `json:"spec"`
	Status     Status            `json:"status,omitempty"`
}

// Fields is the declarative projection table. Unlisted fields fall
// through with automatic camelCase/snake_case conversion.
var Fields = manifest.FieldMap{
	{Doc: "password", Record: "password_secret_id", Secret: true},
	{Doc: "proxyPassword", Record: "proxy_password_secret_id", Secret: true},
}

// titles drives tabular rendering of get responses.
var titles = []string{"name", "dbEngine", "hostname", "port", "database", "username", "isValid"}

// Pool defaults applied when a manifest leaves tuning unset.
const (
	defaultPoolSize    = 5
	defaultMaxOverflow = 10
	defaultTimeout     = 30
)

const exampleManifest = `apiVersion: smarter.sh/v1
kind: SqlConnection
metadata:
  name: example-sql-connection
  description: An example SQL connection to a MySQL database.
  version: 0.1.0
spec:
  dbEngine: django.db.backends.mysql
  hostname: db.example.com
  port: 3306
  database: smarter
  username: smarter_app
  password: top-secret-password
  poolSize: 15
  maxOverflow: 10
  timeout: 30
`
