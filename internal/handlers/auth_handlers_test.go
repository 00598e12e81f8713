package handlers

import (
	"net/http"
	"testing"

	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

func TestDevLogin(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("creates a user and issues a token pair", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/dev-login", map[string]any{
			"email": "Alice@Example.com",
		}, nil)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["token"] == "" || data["refresh"] == "" {
			t.Fatalf("expected token pair, got %+v", data)
		}

		user, ok := data["user"].(map[string]any)
		if !ok {
			t.Fatalf("expected user object, got %+v", data)
		}
		if user["email"] != "alice@example.com" {
			t.Errorf("expected lowercased email, got %v", user["email"])
		}
		if user["name"] != "alice" {
			t.Errorf("expected name defaulted from local part, got %v", user["name"])
		}

		var stored models.User
		if err := env.db.Preload("Roles").First(&stored, "email = ?", "alice@example.com").Error; err != nil {
			t.Fatalf("user row missing: %v", err)
		}
		roles := stored.RoleNames()
		if len(roles) != 1 || roles[0] != models.RoleMember {
			t.Errorf("expected first login to grant member, got %v", roles)
		}
	})

	t.Run("repeated login reuses the row", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/dev-login", map[string]any{
				"email": "bob@example.com",
			}, nil)
			assertStatus(t, resp, http.StatusOK)
			resp.Body.Close()
		}

		var count int64
		env.db.Model(&models.User{}).Where("email = ?", "bob@example.com").Count(&count)
		if count != 1 {
			t.Errorf("expected a single user row, got %d", count)
		}
	})

	t.Run("rejects an invalid email", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/dev-login", map[string]any{
			"email": "not-an-email",
		}, nil)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid email")
	})
}

func TestRefresh(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/dev-login", map[string]any{
		"email": "carol@example.com",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	login := dataMap(t, decodeJSONMap(t, resp))

	t.Run("rotates a session from the refresh token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/refresh", map[string]any{
			"refresh": login["refresh"],
		}, nil)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		token, _ := data["token"].(string)
		if token == "" {
			t.Fatal("expected a fresh session token")
		}

		meResp := performRequest(t, env.app, fiber.MethodGet, "/auth/me", nil, authHeaders(token))
		assertStatus(t, meResp, http.StatusOK)
		meResp.Body.Close()
	})

	t.Run("rejects a session token as refresh input", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/refresh", map[string]any{
			"refresh": login["token"],
		}, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	})

	t.Run("rejects an empty body", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/refresh", map[string]any{}, nil)
		assertStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	})
}

func TestMe(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "dave@example.com", models.RoleManager)

	t.Run("returns the authenticated user with roles", func(t *testing.T) {
		resp := performRequest(t, env.app, fiber.MethodGet, "/auth/me", nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["id"] != user.ID.String() {
			t.Errorf("expected id %s, got %v", user.ID, data["id"])
		}
		if data["email"] != "dave@example.com" {
			t.Errorf("unexpected email %v", data["email"])
		}
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		resp := performRequest(t, env.app, fiber.MethodGet, "/auth/me", nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		resp := performRequest(t, env.app, fiber.MethodGet, "/auth/me", nil, authHeaders("garbage"))
		assertStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	})
}

func TestLogout(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/auth/logout", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	if data["loggedOut"] != true {
		t.Errorf("expected logout acknowledgement, got %+v", data)
	}
}

func TestOAuthFlow(t *testing.T) {
	env := setupTestEnv(t)
	avatar := "https://provider.test/avatar.png"
	env.provider.profile = &services.Profile{
		Email:     "Erin@Example.com",
		Name:      "Erin Tester",
		AvatarURL: &avatar,
	}

	t.Run("redirect sets the state cookie", func(t *testing.T) {
		resp := performRequest(t, env.app, fiber.MethodGet, "/auth/oauth/google", nil, nil)
		assertStatus(t, resp, http.StatusTemporaryRedirect)
		defer resp.Body.Close()

		location := resp.Header.Get("Location")
		if location == "" {
			t.Fatal("expected a Location header")
		}

		var state string
		for _, cookie := range resp.Cookies() {
			if cookie.Name == "oauth_state" {
				state = cookie.Value
			}
		}
		if state == "" {
			t.Fatal("expected oauth_state cookie to be set")
		}

		t.Run("callback with matching state logs in", func(t *testing.T) {
			headers := map[string]string{"Cookie": "oauth_state=" + state}
			resp := performRequest(t, env.app, fiber.MethodGet, "/auth/oauth/google/callback?state="+state+"&code=good-code", nil, headers)
			assertStatus(t, resp, http.StatusOK)

			data := dataMap(t, decodeJSONMap(t, resp))
			user, _ := data["user"].(map[string]any)
			if user["email"] != "erin@example.com" {
				t.Errorf("expected lowercased email, got %v", user["email"])
			}
			if user["name"] != "Erin Tester" {
				t.Errorf("expected provider name, got %v", user["name"])
			}
		})
	})

	t.Run("callback with mismatched state is rejected", func(t *testing.T) {
		headers := map[string]string{"Cookie": "oauth_state=expected"}
		resp := performRequest(t, env.app, fiber.MethodGet, "/auth/oauth/google/callback?state=tampered&code=good-code", nil, headers)
		assertStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	})

	t.Run("callback with a bad code fails opaquely", func(t *testing.T) {
		headers := map[string]string{"Cookie": "oauth_state=abc"}
		resp := performRequest(t, env.app, fiber.MethodGet, "/auth/oauth/google/callback?state=abc&code=bad-code", nil, headers)
		assertStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, fiber.MethodGet, "/auth/oauth/github", nil, nil)
		assertStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	})
}
