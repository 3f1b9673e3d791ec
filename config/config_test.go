package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"collabforcause/models"

	"gorm.io/gorm"
)

func TestMaskPassword(t *testing.T) {
	cases := map[string]string{
		"host=db password=secret dbname=x": "host=db password=***** dbname=x",
		"host=db password=secret":          "host=db password=*****",
		"collab.db":                        "collab.db",
	}
	for in, want := range cases {
		if got := maskPassword(in); got != want {
			t.Fatalf("maskPassword(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "pw")
	if err := LoadConfig(); err == nil {
		t.Fatal("expected error when JWT_SECRET is empty")
	}
}

func TestLoadConfigParsesDurations(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("NOTIFY_INTERVAL", "not-a-duration")
	if err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if AppConfig.TokenTTL != 2*time.Hour {
		t.Fatalf("TokenTTL = %v", AppConfig.TokenTTL)
	}
	if AppConfig.NotifyInterval != 30*time.Second {
		t.Fatalf("NotifyInterval fallback = %v", AppConfig.NotifyInterval)
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "oracle")
	if err := LoadConfig(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestOpenDatabaseAndMigrate(t *testing.T) {
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, table := range []string{"users", "projects", "tasks", "contributions", "messages", "notifications"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s missing after migration", table)
		}
	}
}

func TestOpenDatabaseTranslatesDuplicateKey(t *testing.T) {
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "dup.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	first := models.User{Name: "A", Email: "a@example.org", PasswordHash: "x", Role: models.RoleVolunteer}
	if err := db.Create(&first).Error; err != nil {
		t.Fatal(err)
	}
	second := models.User{Name: "B", Email: "a@example.org", PasswordHash: "y", Role: models.RoleVolunteer}
	if err := db.Create(&second).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate email err = %v, want gorm.ErrDuplicatedKey", err)
	}
}
