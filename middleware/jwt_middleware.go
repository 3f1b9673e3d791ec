package middleware

import (
	"errors"
	"strings"

	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Protected resolves the bearer token to a user and stores it in
// c.Locals("user").
func Protected(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Not authorized to access this route")
		}
		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization format")
		}

		claims, err := utils.ParseJWTToken(tokenParts[1])
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not found")
			}
			return utils.RespondError(c, "middleware.Protected", err)
		}

		c.Locals("user", &user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

// Authorize restricts a route to the given roles. It must run after
// Protected.
func Authorize(roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Not authorized to access this route")
		}
		if _, ok := allowed[user.Role]; !ok {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "User role "+string(user.Role)+" is not authorized to access this route")
		}
		return c.Next()
	}
}

// CurrentUser returns the user set by Protected, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}
