package server

import (
	"bsuchat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFaculties lists the faculties that have a chat room.
func (s *Server) GetFaculties(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"faculties": models.Faculties})
}

// GetRules returns the chat rules text.
func (s *Server) GetRules(c *fiber.Ctx) error {
	rules, err := s.settings.Rules(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"rules": rules})
}

// GetDailyTopic returns the current daily topic.
func (s *Server) GetDailyTopic(c *fiber.Ctx) error {
	topic, err := s.settings.DailyTopic(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"topic": topic})
}
