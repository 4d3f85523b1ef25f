package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	dataDir    = flag.String("data-dir", defaultDataDir(), "Smarter data directory")
	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath = flag.String("backup", "", "Path to backup the database before migration (default: <data-dir>/smarter.db.backup)")
)

const targetSchemaVersion = 1

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Smarter Database Migration Tool")
	log.Println("===============================")

	dbPath := filepath.Join(*dataDir, "smarter.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database not found at %s", dbPath)
	}

	log.Printf("Database: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("✓ Backup created successfully")
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	version := readSchemaVersion(db)
	log.Printf("Schema version: %d (target %d)", version, targetSchemaVersion)
	if version >= targetSchemaVersion {
		log.Println("✓ Database is already at the current schema")
		return
	}

	if version < 1 {
		if err := migratePluginClass(db, *dryRun); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}

	if *dryRun {
		log.Println("\nDry run completed. No changes made.")
		log.Println("Run without --dry-run to perform the migration.")
		return
	}

	if err := writeSchemaVersion(db, targetSchemaVersion); err != nil {
		log.Fatalf("Failed to record schema version: %v", err)
	}
	log.Println("\n✓ Migration completed successfully!")
}

// readSchemaVersion returns the stored version, or 0 for databases
// predating version tracking.
func readSchemaVersion(db *bolt.DB) int {
	var version int
	db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte("meta"))
		if meta == nil {
			return nil
		}
		if data := meta.Get([]byte("schema_version")); data != nil {
			version = int(binary.BigEndian.Uint64(data))
		}
		return nil
	})
	return version
}

func writeSchemaVersion(db *bolt.DB, version int) error {
	return db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte("meta"))
		if err != nil {
			return err
		}
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, uint64(version))
		return meta.Put([]byte("schema_version"), data)
	})
}

// migratePluginClass backfills the class field on plugin records that
// predate the static/sql split: records carrying a sql_query become
// class "sql", everything else "static".
func migratePluginClass(db *bolt.DB, dryRun bool) error {
	var total, missing int

	err := db.View(func(tx *bolt.Tx) error {
		plugins := tx.Bucket([]byte("plugins"))
		if plugins == nil {
			return nil
		}
		return plugins.ForEach(func(k, v []byte) error {
			total++
			var record map[string]any
			if err := json.Unmarshal(v, &record); err != nil {
				log.Printf("⚠ Warning: skipping invalid JSON for key %s: %v", k, err)
				return nil
			}
			if class, _ := record["class"].(string); class == "" {
				missing++
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Printf("Found %d plugins, %d without a class", total, missing)
	if missing == 0 {
		return nil
	}
	if dryRun {
		log.Printf("[DRY RUN] Would backfill class on %d plugin records", missing)
		return nil
	}

	return db.Update(func(tx *bolt.Tx) error {
		plugins := tx.Bucket([]byte("plugins"))
		if plugins == nil {
			return nil
		}

		// Mutating a bucket during ForEach is not allowed; collect the
		// rewrites first.
		updates := make(map[string][]byte)
		err := plugins.ForEach(func(k, v []byte) error {
			var record map[string]any
			if err := json.Unmarshal(v, &record); err != nil {
				return nil
			}
			if class, _ := record["class"].(string); class != "" {
				return nil
			}
			if query, _ := record["sql_query"].(string); query != "" {
				record["class"] = "sql"
			} else {
				record["class"] = "static"
			}
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to re-encode plugin %s: %w", k, err)
			}
			updates[string(k)] = data
			return nil
		})
		if err != nil {
			return err
		}

		for k, data := range updates {
			if err := plugins.Put([]byte(k), data); err != nil {
				return fmt.Errorf("failed to rewrite plugin %s: %w", k, err)
			}
		}
		log.Printf("✓ Backfilled class on %d/%d plugins", len(updates), missing)
		return nil
	})
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./smarter-data"
	}
	return home + "/.smarter"
}
