package handlers

import (
	"net/mail"
	"strings"
	"time"

	"github.com/drivehub/backend/internal/middleware"
	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const oauthStateCookie = "oauth_state"

type AuthHandler struct {
	DB       *gorm.DB
	Provider services.IdentityProvider
}

func NewAuthHandler(db *gorm.DB, provider services.IdentityProvider) *AuthHandler {
	return &AuthHandler{DB: db, Provider: provider}
}

type devLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DevLogin turns a bare email into a session without an external provider.
// Users are upserted by email; first login grants the member role.
func (h *AuthHandler) DevLogin(c *fiber.Ctx) error {
	var req devLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	user, err := h.upsertUser(c, email, name, nil)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed upserting user")
	}

	pair, err := utils.GenerateTokenPair(user.ID, user.Email, user.RoleNames())
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed issuing tokens")
	}

	logger.InfoWithUser(user.ID.String(), "dev_login", map[string]interface{}{
		"email":      user.Email,
		"request_id": getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":   pair.SessionToken,
		"refresh": pair.RefreshToken,
		"user":    user,
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Refresh) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "refresh token is required")
	}

	session, err := utils.RotateSessionToken(req.Refresh)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired refresh token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": session})
}

// OAuthRedirect sends the client to the provider's consent screen. The
// state nonce round-trips through a short-lived cookie.
func (h *AuthHandler) OAuthRedirect(c *fiber.Ctx) error {
	if c.Params("provider") != "google" {
		return utils.Error(c, fiber.StatusBadRequest, "unknown provider")
	}

	state, err := utils.RandomHex(16)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating state")
	}

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
	})

	return c.Redirect(h.Provider.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

func (h *AuthHandler) OAuthCallback(c *fiber.Ctx) error {
	if c.Params("provider") != "google" {
		return utils.Error(c, fiber.StatusBadRequest, "unknown provider")
	}

	state := c.Query("state")
	if state == "" || state != c.Cookies(oauthStateCookie) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid oauth state")
	}

	code := c.Query("code")
	if code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "missing authorization code")
	}

	profile, err := h.Provider.ExchangeCodeForProfile(c.Context(), code)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication failed")
	}

	name := profile.Name
	if name == "" {
		name = strings.SplitN(profile.Email, "@", 2)[0]
	}

	user, err := h.upsertUser(c, strings.ToLower(profile.Email), name, profile.AvatarURL)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed upserting user")
	}

	pair, err := utils.GenerateTokenPair(user.ID, user.Email, user.RoleNames())
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed issuing tokens")
	}

	logger.InfoWithUser(user.ID.String(), "oauth_login", map[string]interface{}{
		"provider": "google",
		"email":    user.Email,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":   pair.SessionToken,
		"refresh": pair.RefreshToken,
		"user":    user,
	})
}

// Logout is a stateless acknowledgement; tokens expire on their own.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{"loggedOut": true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.DB.Preload("Roles").First(&user, "id = ?", identity.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

// upsertUser finds or creates the user row and guarantees at least the
// member role on first login.
func (h *AuthHandler) upsertUser(c *fiber.Ctx, email, name string, avatarURL *string) (*models.User, error) {
	var user models.User
	err := h.DB.Preload("Roles").First(&user, "email = ?", email).Error
	if err == nil {
		updated := false
		if avatarURL != nil && (user.AvatarURL == nil || *user.AvatarURL != *avatarURL) {
			user.AvatarURL = avatarURL
			updated = true
		}
		if updated {
			if err := h.DB.Save(&user).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	user = models.User{Email: email, Name: name, AvatarURL: avatarURL}
	if err := h.DB.Create(&user).Error; err != nil {
		return nil, err
	}

	var member models.Role
	if err := h.DB.First(&member, "name = ?", models.RoleMember).Error; err == nil {
		if err := h.DB.Model(&user).Association("Roles").Append(&member); err != nil {
			return nil, err
		}
		user.Roles = []models.Role{member}
	}

	logger.Info("user_created", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   email,
	})

	return &user, nil
}
