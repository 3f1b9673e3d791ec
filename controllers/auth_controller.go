package controller

import (
	"errors"
	"strings"

	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewAuthController(db *gorm.DB, logger *logrus.Logger) *AuthController {
	return &AuthController{DB: db, Logger: logger}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,mailformat"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=volunteer ngo"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name     *string   `json:"name" validate:"omitempty,max=100"`
	Bio      *string   `json:"bio" validate:"omitempty,max=1000"`
	Location *string   `json:"location" validate:"omitempty,max=200"`
	Avatar   *string   `json:"avatar" validate:"omitempty,url"`
	Skills   *[]string `json:"skills"`
}

type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (ac *AuthController) Register(c *fiber.Ctx) error {
	const op = "auth.Register"

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return utils.RespondError(c, op, err)
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "role must be one of: volunteer, ngo")
	}

	var existing models.User
	err = ac.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, op, err)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.RespondError(c, op, utils.Internal("failed to hash password", err))
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Skills:       models.NormalizeSkills(nil),
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Email already registered")
		}
		return utils.RespondError(c, op, utils.Internal("failed to create user", err))
	}

	token, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.RespondError(c, op, utils.Internal("failed to generate token", err))
	}

	ac.Logger.WithFields(logrus.Fields{"operation": op, "user_id": user.ID, "role": user.Role}).Info("user registered")
	return utils.SuccessResponse(c, fiber.StatusCreated, AuthResponse{User: &user, Token: token})
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	const op = "auth.Login"

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.RespondError(c, op, err)
	}

	var user models.User
	err := ac.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	if err := utils.CheckPassword(req.Password, user.PasswordHash); err != nil {
		ac.Logger.WithFields(logrus.Fields{"operation": op, "user_id": user.ID, "ip": c.IP()}).Warn("failed login")
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.RespondError(c, op, utils.Internal("failed to generate token", err))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, AuthResponse{User: &user, Token: token})
}

func (ac *AuthController) Me(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, currentUser(c))
}

// UpdateProfile changes the caller's own profile fields. Email and role are
// not editable.
func (ac *AuthController) UpdateProfile(c *fiber.Ctx) error {
	const op = "auth.UpdateProfile"
	user := currentUser(c)

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.RespondError(c, op, err)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "name is required")
		}
		updates["name"] = name
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.Skills != nil {
		updates["skills"] = models.NormalizeSkills(*req.Skills)
	}

	if len(updates) > 0 {
		if err := ac.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return utils.RespondError(c, op, utils.Internal("failed to update profile", err))
		}
	}

	var updated models.User
	if err := ac.DB.First(&updated, user.ID).Error; err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, &updated)
}
