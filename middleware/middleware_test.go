package middleware

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"collabforcause/config"
	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase("sqlite", filepath.Join(t.TempDir(), "mw.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func authApp(db *gorm.DB) *fiber.App {
	app := fiber.New()
	app.Get("/me", Protected(db), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c).Email)
	})
	app.Get("/ngo", Protected(db), Authorize(models.RoleNGO), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func status(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode
}

func TestProtectedAndAuthorize(t *testing.T) {
	config.AppConfig.JWTSecret = "mw-secret"
	config.AppConfig.TokenTTL = time.Hour
	db := testDB(t)

	volunteer := &models.User{Email: "v@example.org", PasswordHash: "x", Role: models.RoleVolunteer, Name: "V"}
	ngo := &models.User{Email: "n@example.org", PasswordHash: "x", Role: models.RoleNGO, Name: "N"}
	db.Create(volunteer)
	db.Create(ngo)
	vTok, _ := utils.GenerateJWTToken(volunteer)
	nTok, _ := utils.GenerateJWTToken(ngo)
	ghostTok, _ := utils.GenerateJWTToken(&models.User{Base: models.Base{ID: 999}, Role: models.RoleNGO})

	app := authApp(db)
	cases := []struct {
		path, token string
		want        int
	}{
		{"/me", "", fiber.StatusUnauthorized},
		{"/me", "garbage", fiber.StatusUnauthorized},
		{"/me", ghostTok, fiber.StatusUnauthorized},
		{"/me", vTok, fiber.StatusOK},
		{"/ngo", vTok, fiber.StatusForbidden},
		{"/ngo", nTok, fiber.StatusOK},
	}
	for _, tc := range cases {
		if got := status(t, app, tc.path, tc.token); got != tc.want {
			t.Errorf("GET %s with %q: status %d, want %d", tc.path, tc.token, got, tc.want)
		}
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(DefaultCORSConfig("http://localhost:3000/, https://app.example.org")))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://app.example.org")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Max-Age"); got != "3600" {
		t.Fatalf("max age = %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, _ = app.Test(req, -1)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin allowed: %q", got)
	}
}

// limitedApp allows two logins a minute; storage may be nil.
func limitedApp(storage fiber.Storage) *fiber.App {
	app := fiber.New()
	app.Post("/login", AuthRateLimiter(2, storage), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func hit(t *testing.T, app *fiber.App) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode
}

func TestAuthRateLimiter(t *testing.T) {
	app := limitedApp(nil)
	for i, want := range []int{200, 200, 429} {
		if code := hit(t, app); code != want {
			t.Fatalf("attempt %d: status %d, want %d", i+1, code, want)
		}
	}
}
