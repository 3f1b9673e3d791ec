package controller

import (
	"time"

	"collabforcause/middleware"
	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
)

func currentUser(c *fiber.Ctx) *models.User {
	return middleware.CurrentUser(c)
}

// optionalDate parses s when present.
func optionalDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := utils.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// queryID reads an optional numeric id filter. A malformed value is an
// InvalidArgument rather than being ignored.
func queryID(c *fiber.Ctx, key string) (uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return utils.ParseID(raw)
}
