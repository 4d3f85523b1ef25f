package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/smarter-sh/smarter/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketAccounts       = []byte("accounts")
	bucketUsers          = []byte("users")
	bucketSecrets        = []byte("secrets")
	bucketSqlConnections = []byte("sql_connections")
	bucketPlugins        = []byte("plugins")
	bucketChatbots       = []byte("chatbots")
	bucketMeta           = []byte("meta")

	keySchemaVersion = []byte("schema_version")
)

// CurrentSchemaVersion is bumped whenever a record layout changes in a
// way smarter-migrate has to rewrite.
const CurrentSchemaVersion = 1

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "smarter.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketAccounts,
			bucketUsers,
			bucketSecrets,
			bucketSqlConnections,
			bucketPlugins,
			bucketChatbots,
			bucketMeta,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchemaVersion) == nil {
			version := make([]byte, 8)
			binary.BigEndian.PutUint64(version, CurrentSchemaVersion)
			return meta.Put(keySchemaVersion, version)
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the stored schema version
func (s *BoltStore) SchemaVersion() (int, error) {
	var version int
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchemaVersion)
		if data == nil {
			return fmt.Errorf("schema version: %w", ErrNotFound)
		}
		version = int(binary.BigEndian.Uint64(data))
		return nil
	})
	return version, err
}

// put marshals a record and writes it under its ID
func (s *BoltStore) put(bucket []byte, id string, record any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
}

// get unmarshals the record stored under id into out
func (s *BoltStore) get(bucket []byte, id string, out any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
		}
		return json.Unmarshal(data, out)
	})
}

func (s *BoltStore) delete(bucket []byte, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

// Account operations

func (s *BoltStore) CreateAccount(account *types.Account) error {
	return s.put(bucketAccounts, account.ID, account)
}

func (s *BoltStore) GetAccount(id string) (*types.Account, error) {
	var account types.Account
	if err := s.get(bucketAccounts, id, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *BoltStore) GetAccountByNumber(number string) (*types.Account, error) {
	var found *types.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var account types.Account
			if err := json.Unmarshal(v, &account); err != nil {
				return err
			}
			if account.AccountNumber == number {
				found = &account
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("account %s: %w", number, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) GetAccountByAPIKey(apiKey string) (*types.Account, error) {
	var found *types.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var account types.Account
			if err := json.Unmarshal(v, &account); err != nil {
				return err
			}
			if account.APIKey == apiKey {
				found = &account
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) ListAccounts() ([]*types.Account, error) {
	var accounts []*types.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var account types.Account
			if err := json.Unmarshal(v, &account); err != nil {
				return err
			}
			accounts = append(accounts, &account)
			return nil
		})
	})
	return accounts, err
}

// User operations

func (s *BoltStore) CreateUser(user *types.User) error {
	return s.put(bucketUsers, user.ID, user)
}

func (s *BoltStore) GetUser(id string) (*types.User, error) {
	var user types.User
	if err := s.get(bucketUsers, id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *BoltStore) GetUserByUsername(accountID, username string) (*types.User, error) {
	var found *types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var user types.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			if user.AccountID == accountID && user.Username == username {
				found = &user
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) ListUsers(accountID string) ([]*types.User, error) {
	var users []*types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var user types.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			if user.AccountID == accountID {
				users = append(users, &user)
			}
			return nil
		})
	})
	return users, err
}

// Secret operations

func (s *BoltStore) CreateSecret(secret *types.Secret) error {
	return s.put(bucketSecrets, secret.ID, secret)
}

func (s *BoltStore) UpdateSecret(secret *types.Secret) error {
	return s.put(bucketSecrets, secret.ID, secret)
}

func (s *BoltStore) GetSecret(id string) (*types.Secret, error) {
	var secret types.Secret
	if err := s.get(bucketSecrets, id, &secret); err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *BoltStore) GetSecretByName(accountID, name string) (*types.Secret, error) {
	var found *types.Secret
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).ForEach(func(k, v []byte) error {
			var secret types.Secret
			if err := json.Unmarshal(v, &secret); err != nil {
				return err
			}
			if secret.AccountID == accountID && secret.Name == name {
				found = &secret
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("secret %s: %w", name, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) ListSecrets(accountID string) ([]*types.Secret, error) {
	var secrets []*types.Secret
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).ForEach(func(k, v []byte) error {
			var secret types.Secret
			if err := json.Unmarshal(v, &secret); err != nil {
				return err
			}
			if secret.AccountID == accountID {
				secrets = append(secrets, &secret)
			}
			return nil
		})
	})
	return secrets, err
}

func (s *BoltStore) DeleteSecret(id string) error {
	return s.delete(bucketSecrets, id)
}

// SQL connection operations

func (s *BoltStore) CreateSqlConnection(conn *types.SqlConnection) error {
	return s.put(bucketSqlConnections, conn.ID, conn)
}

func (s *BoltStore) UpdateSqlConnection(conn *types.SqlConnection) error {
	return s.put(bucketSqlConnections, conn.ID, conn)
}

func (s *BoltStore) GetSqlConnection(id string) (*types.SqlConnection, error) {
	var conn types.SqlConnection
	if err := s.get(bucketSqlConnections, id, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *BoltStore) GetSqlConnectionByName(accountID, name string) (*types.SqlConnection, error) {
	var found *types.SqlConnection
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSqlConnections).ForEach(func(k, v []byte) error {
			var conn types.SqlConnection
			if err := json.Unmarshal(v, &conn); err != nil {
				return err
			}
			if conn.AccountID == accountID && conn.Name == name {
				found = &conn
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("sql connection %s: %w", name, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) ListSqlConnections(accountID string) ([]*types.SqlConnection, error) {
	var conns []*types.SqlConnection
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSqlConnections).ForEach(func(k, v []byte) error {
			var conn types.SqlConnection
			if err := json.Unmarshal(v, &conn); err != nil {
				return err
			}
			if conn.AccountID == accountID {
				conns = append(conns, &conn)
			}
			return nil
		})
	})
	return conns, err
}

func (s *BoltStore) DeleteSqlConnection(id string) error {
	return s.delete(bucketSqlConnections, id)
}

// Plugin operations

func (s *BoltStore) CreatePlugin(plugin *types.Plugin) error {
	return s.put(bucketPlugins, plugin.ID, plugin)
}

func (s *BoltStore) UpdatePlugin(plugin *types.Plugin) error {
	return s.put(bucketPlugins, plugin.ID, plugin)
}

func (s *BoltStore) GetPlugin(id string) (*types.Plugin, error) {
	var plugin types.Plugin
	if err := s.get(bucketPlugins, id, &plugin); err != nil {
		return nil, err
	}
	return &plugin, nil
}

func (s *BoltStore) GetPluginByName(accountID, name string) (*types.Plugin, error) {
	var found *types.Plugin
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlugins).ForEach(func(k, v []byte) error {
			var plugin types.Plugin
			if err := json.Unmarshal(v, &plugin); err != nil {
				return err
			}
			if plugin.AccountID == accountID && plugin.Name == name {
				found = &plugin
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("plugin %s: %w", name, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) ListPlugins(accountID string) ([]*types.Plugin, error) {
	var plugins []*types.Plugin
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlugins).ForEach(func(k, v []byte) error {
			var plugin types.Plugin
			if err := json.Unmarshal(v, &plugin); err != nil {
				return err
			}
			if plugin.AccountID == accountID {
				plugins = append(plugins, &plugin)
			}
			return nil
		})
	})
	return plugins, err
}

func (s *BoltStore) DeletePlugin(id string) error {
	return s.delete(bucketPlugins, id)
}

// Chatbot operations

func (s *BoltStore) CreateChatbot(chatbot *types.Chatbot) error {
	return s.put(bucketChatbots, chatbot.ID, chatbot)
}

func (s *BoltStore) UpdateChatbot(chatbot *types.Chatbot) error {
	return s.put(bucketChatbots, chatbot.ID, chatbot)
}

func (s *BoltStore) GetChatbot(id string) (*types.Chatbot, error) {
	var chatbot types.Chatbot
	if err := s.get(bucketChatbots, id, &chatbot); err != nil {
		return nil, err
	}
	return &chatbot, nil
}

func (s *BoltStore) GetChatbotByName(accountID, name string) (*types.Chatbot, error) {
	var found *types.Chatbot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChatbots).ForEach(func(k, v []byte) error {
			var chatbot types.Chatbot
			if err := json.Unmarshal(v, &chatbot); err != nil {
				return err
			}
			if chatbot.AccountID == accountID && chatbot.Name == name {
				found = &chatbot
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("chatbot %s: %w", name, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) ListChatbots(accountID string) ([]*types.Chatbot, error) {
	var chatbots []*types.Chatbot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChatbots).ForEach(func(k, v []byte) error {
			var chatbot types.Chatbot
			if err := json.Unmarshal(v, &chatbot); err != nil {
				return err
			}
			if chatbot.AccountID == accountID {
				chatbots = append(chatbots, &chatbot)
			}
			return nil
		})
	})
	return chatbots, err
}

func (s *BoltStore) DeleteChatbot(id string) error {
	return s.delete(bucketChatbots, id)
}
