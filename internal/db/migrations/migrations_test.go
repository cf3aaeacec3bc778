package migrations

import (
	"sort"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsAreOrderedAndAnnotated(t *testing.T) {
	entries, err := files.ReadDir(dir)
	if err != nil {
		t.Fatalf("read embedded dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("migrations not in apply order: %v", names)
	}

	for _, name := range names {
		b, err := files.ReadFile(dir + "/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(b)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", name)
		}
	}
}

func TestTokenTablesCascadeFromUsers(t *testing.T) {
	for _, name := range []string{"00002_create_password_reset_tokens.sql", "00003_create_email_verification_tokens.sql"} {
		b, err := files.ReadFile(dir + "/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(b), "REFERENCES users(id) ON DELETE CASCADE") {
			t.Fatalf("%s: token rows must be owned by users", name)
		}
	}
}
