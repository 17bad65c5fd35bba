package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// UsersHandler exposes the account endpoints.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(accountService *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accountService}
}

// Register handles POST /api/account/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	exists, err := h.accounts.Exists(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.NewConflict("user id already exists", map[string]any{"userId": req.UserID})
	}

	user, err := h.accounts.Register(c.UserContext(), service.RegisterInput{
		UserID:   req.UserID,
		Name:     req.UserName,
		Email:    req.UserEmail,
		Password: req.UserPassword,
	})
	if err != nil {
		// A taken email is reported as a bad request; a taken id stays a 409.
		if service.IsEmailConflict(err) {
			de := apperrors.ToDomainError(err)
			return apperrors.NewValidationError(de.Message, de.Details)
		}
		return err
	}

	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Get handles GET /api/account/:userId.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.accounts.GetByID(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// GetByEmail handles GET /api/account/email?email=.
func (h *UsersHandler) GetByEmail(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	user, ok, err := h.accounts.GetByEmail(c.UserContext(), email)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound("user", map[string]any{"userEmail": email})
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ListByName handles GET /api/account/name?name=&page=&size=.
func (h *UsersHandler) ListByName(c *fiber.Ctx) error {
	name := c.Query("name")
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}

	page, err := h.accounts.ListByName(c.UserContext(), name, c.QueryInt("page", 0), c.QueryInt("size", domain.DefaultPageSize))
	if err != nil {
		return err
	}
	return pageResponse(c, page)
}

// ListAll handles GET /api/account/all?page=&size=.
func (h *UsersHandler) ListAll(c *fiber.Ctx) error {
	page, err := h.accounts.ListAll(c.UserContext(), c.QueryInt("page", 0), c.QueryInt("size", domain.DefaultPageSize))
	if err != nil {
		return err
	}
	return pageResponse(c, page)
}

// Update handles PUT /api/account/:userId.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.accounts.Update(c.UserContext(), c.Params("userId"), service.UpdateInput{
		Name:     req.UserName,
		Email:    req.UserEmail,
		Password: req.UserPassword,
		Status:   domain.UserStatus(strings.ToUpper(req.UserStatus)),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// SoftDelete handles DELETE /api/account/:userId.
func (h *UsersHandler) SoftDelete(c *fiber.Ctx) error {
	user, err := h.accounts.SoftDelete(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// HardDelete handles DELETE /api/account/permanent/:userId.
func (h *UsersHandler) HardDelete(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if err := h.accounts.HardDelete(c.UserContext(), userID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"userId": userID, "status": "permanently_deleted"}})
}

// Authenticate handles POST /api/account/authenticate?userId=&password=.
func (h *UsersHandler) Authenticate(c *fiber.Ctx) error {
	userID := c.Query("userId")
	password := c.Query("password")
	if userID == "" || password == "" {
		return apperrors.NewUnauthorized("userId and password required")
	}

	user, err := h.accounts.Authenticate(c.UserContext(), userID, password)
	if err != nil {
		// Unknown ids and bad credentials look the same to the caller.
		if apperrors.HasCode(err, apperrors.CodeNotFound) || apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			return apperrors.NewUnauthorized("authentication failed: " + apperrors.ToDomainError(err).Message)
		}
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"status":        "authenticated",
			"userId":        user.ID,
			"lastLoginDate": user.LastLoginDate,
		},
	})
}

func pageResponse(c *fiber.Ctx, page domain.UserPage) error {
	if !page.HasContent() {
		return apperrors.NewNotFound("users", map[string]any{"page": page.Page, "size": page.Size})
	}
	items, meta := dto.NewUserListResponse(page)
	return c.JSON(fiber.Map{"data": items, "meta": meta})
}
