package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/drivehub/backend/internal/database"
	"github.com/drivehub/backend/internal/middleware"
	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	store    *stubObjectStore
	provider *stubIdentityProvider
}

// stubObjectStore hands out deterministic URLs instead of talking to minio.
type stubObjectStore struct {
	failNext bool
}

func (s *stubObjectStore) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	if s.failNext {
		s.failNext = false
		return "", io.ErrUnexpectedEOF
	}
	return "https://store.test/put/" + key, nil
}

func (s *stubObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.failNext {
		s.failNext = false
		return "", io.ErrUnexpectedEOF
	}
	return "https://store.test/get/" + key, nil
}

// stubIdentityProvider plays the external oauth endpoint. A code equal to
// "good-code" exchanges into the configured profile.
type stubIdentityProvider struct {
	profile *services.Profile
}

func (s *stubIdentityProvider) AuthCodeURL(state string) string {
	return "https://provider.test/consent?state=" + state
}

func (s *stubIdentityProvider) ExchangeCodeForProfile(_ context.Context, code string) (*services.Profile, error) {
	if code != "good-code" || s.profile == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return s.profile, nil
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 15*time.Minute, 30*24*time.Hour)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Folder{},
		&models.File{},
		&models.Share{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	if err := database.SeedRoles(db); err != nil {
		t.Fatalf("failed seeding roles: %v", err)
	}

	hierarchy := services.DefaultHierarchy()
	authorizer, err := services.NewAuthorizer(db, hierarchy, services.DefaultActionRoles())
	if err != nil {
		t.Fatalf("failed constructing authorizer: %v", err)
	}

	store := &stubObjectStore{}
	provider := &stubIdentityProvider{}
	shareService := services.NewShareService(db)
	presignService := services.NewPresignService(db, store, 10*time.Minute, 5*time.Minute)

	authHandler := NewAuthHandler(db, provider)
	filesHandler := NewFilesHandler(db, authorizer, presignService)
	foldersHandler := NewFoldersHandler(db, authorizer)
	sharesHandler := NewSharesHandler(db, authorizer, shareService)
	adminHandler := NewAdminHandler(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	authRoutes := app.Group("/auth")
	authRoutes.Post("/dev-login", authHandler.DevLogin)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/oauth/:provider", authHandler.OAuthRedirect)
	authRoutes.Get("/oauth/:provider/callback", authHandler.OAuthCallback)
	authRoutes.Get("/me", middleware.RequireAuth, authHandler.Me)

	fileRoutes := app.Group("/files", middleware.RequireAuth)
	fileRoutes.Post("/presign-upload", filesHandler.PresignUpload)
	fileRoutes.Post("/complete", filesHandler.CompleteUpload)
	fileRoutes.Post("/:id/presign-download", filesHandler.PresignDownload)
	fileRoutes.Patch("/:id", filesHandler.Update)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	folderRoutes := app.Group("/folders", middleware.RequireAuth)
	folderRoutes.Get("/:id/children", foldersHandler.Children)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Patch("/:id", foldersHandler.Update)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	shareRoutes := app.Group("/shares")
	shareRoutes.Post("/", middleware.RequireAuth, sharesHandler.Create)
	shareRoutes.Post("/:token/resolve", sharesHandler.Resolve)
	shareRoutes.Delete("/:id", middleware.RequireAuth, sharesHandler.Revoke)

	adminRoutes := app.Group("/admin", middleware.RequireAuth, middleware.RequireRole(hierarchy, "admin"))
	adminRoutes.Get("/health", adminHandler.Health)
	adminRoutes.Post("/reindex", adminHandler.Reindex)

	return &testEnv{app: app, db: db, store: store, provider: provider}
}

func createTestUser(t *testing.T, db *gorm.DB, email string, roleNames ...string) (*models.User, string) {
	t.Helper()

	user := &models.User{Email: email, Name: "Test User"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	for _, name := range roleNames {
		var role models.Role
		if err := db.First(&role, "name = ?", name).Error; err != nil {
			t.Fatalf("role %q not seeded: %v", name, err)
		}
		if err := db.Model(user).Association("Roles").Append(&role); err != nil {
			t.Fatalf("failed attaching role %q: %v", name, err)
		}
	}
	if err := db.Preload("Roles").First(user, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed reloading test user: %v", err)
	}

	pair, err := utils.GenerateTokenPair(user.ID, user.Email, user.RoleNames())
	if err != nil {
		t.Fatalf("failed generating token pair: %v", err)
	}

	return user, pair.SessionToken
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in envelope, got %+v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func createTestFolder(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.Folder {
	t.Helper()
	folder := &models.Folder{Name: name, OwnerID: owner.ID}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed creating test folder: %v", err)
	}
	return folder
}

func createTestFile(t *testing.T, db *gorm.DB, owner *models.User, folder *models.Folder, name string) *models.File {
	t.Helper()
	file := &models.File{
		Name:       name,
		FolderID:   folder.ID,
		OwnerID:    owner.ID,
		Size:       1024,
		MimeType:   "application/pdf",
		StorageKey: owner.ID.String() + "/" + folder.ID.String() + "/nonce-" + name,
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed creating test file: %v", err)
	}
	return file
}
