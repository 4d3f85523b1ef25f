package manifest

import (
	"testing"
)

var testFields = FieldMap{
	{Doc: "password", Record: "password_secret_id", Secret: true},
}

func TestToRecordProjection(t *testing.T) {
	spec := map[string]any{
		"dbEngine": "django.db.backends.mysql",
		"poolSize": 15,
		"password": "hunter2",
	}

	record, err := testFields.ToRecord(spec, func(field FieldSpec, value any) (any, error) {
		if field.Record != "password_secret_id" {
			t.Errorf("Resolver called for wrong field: %s", field.Record)
		}
		if value != "hunter2" {
			t.Errorf("Resolver received %v, want hunter2", value)
		}
		return "secret-id-1", nil
	})
	if err != nil {
		t.Fatalf("ToRecord failed: %v", err)
	}

	if record["db_engine"] != "django.db.backends.mysql" {
		t.Errorf("db_engine = %v", record["db_engine"])
	}
	if record["pool_size"] != 15 {
		t.Errorf("pool_size = %v, want 15", record["pool_size"])
	}
	if record["password_secret_id"] != "secret-id-1" {
		t.Errorf("password_secret_id = %v, want secret-id-1", record["password_secret_id"])
	}
	if _, ok := record["password"]; ok {
		t.Error("Plaintext password key should not survive projection")
	}
}

func TestToRecordDropsReservedFields(t *testing.T) {
	spec := map[string]any{
		"id":        "attacker-chosen",
		"accountId": "other-tenant",
		"createdAt": "2020-01-01",
		"database":  "smarter",
	}

	record, err := FieldMap{}.ToRecord(spec, nil)
	if err != nil {
		t.Fatalf("ToRecord failed: %v", err)
	}
	for _, reserved := range []string{"id", "account_id", "created_at"} {
		if _, ok := record[reserved]; ok {
			t.Errorf("Reserved field %s should be dropped", reserved)
		}
	}
	if record["database"] != "smarter" {
		t.Errorf("database = %v, want smarter", record["database"])
	}
}

func TestToRecordRequiresResolver(t *testing.T) {
	if _, err := testFields.ToRecord(map[string]any{"password": "x"}, nil); err == nil {
		t.Error("Secret field without a resolver should fail")
	}
}

func TestToDocumentProjection(t *testing.T) {
	record := map[string]any{
		"id":                 "conn-1",
		"account_id":         "acct-1",
		"db_engine":          "django.db.backends.mysql",
		"pool_size":          15,
		"password_secret_id": "secret-id-1",
	}

	doc := testFields.ToDocument(record, func(field FieldSpec, value any) any {
		return "my-db-password"
	})

	if doc["dbEngine"] != "django.db.backends.mysql" {
		t.Errorf("dbEngine = %v", doc["dbEngine"])
	}
	if doc["poolSize"] != 15 {
		t.Errorf("poolSize = %v, want 15", doc["poolSize"])
	}
	if doc["password"] != "my-db-password" {
		t.Errorf("password = %v, want the secret name", doc["password"])
	}
	for _, reserved := range []string{"id", "account_id"} {
		if _, ok := doc[reserved]; ok {
			t.Errorf("Server-owned field %s should not surface in spec", reserved)
		}
	}
}

func TestToDocumentWithoutMaskDropsSecrets(t *testing.T) {
	record := map[string]any{"password_secret_id": "secret-id-1"}
	doc := testFields.ToDocument(record, nil)
	if _, ok := doc["password"]; ok {
		t.Error("Secret field without a mask should be dropped entirely")
	}
}

func TestCaseConversion(t *testing.T) {
	tests := []struct {
		camel string
		snake string
	}{
		{"dbEngine", "db_engine"},
		{"poolSize", "pool_size"},
		{"maxOverflow", "max_overflow"},
		{"hostname", "hostname"},
		{"useSsl", "use_ssl"},
	}

	for _, tt := range tests {
		if got := CamelToSnake(tt.camel); got != tt.snake {
			t.Errorf("CamelToSnake(%q) = %q, want %q", tt.camel, got, tt.snake)
		}
		if got := SnakeToCamel(tt.snake); got != tt.camel {
			t.Errorf("SnakeToCamel(%q) = %q, want %q", tt.snake, got, tt.camel)
		}
	}
}
