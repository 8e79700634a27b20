package server

import (
	"cmp"
	"slices"
	"strings"

	"bsuchat/internal/models"
	"bsuchat/internal/moderation"
	"bsuchat/internal/rooms"
	"bsuchat/internal/settings"

	"github.com/gofiber/fiber/v2"
)

// GetReportedUsers lists users at or above the review threshold.
// The threshold can be lowered with ?threshold= for triage.
func (s *Server) GetReportedUsers(c *fiber.Ctx) error {
	threshold := c.QueryInt("threshold", moderation.ReviewThreshold)
	rows, err := s.moderation.ListReported(c.UserContext(), int64(threshold))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": rows, "threshold": threshold})
}

// ListUsers pages through users, optionally filtered by ?faculty=.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	faculty := c.Query("faculty")
	if faculty != "" && !models.IsFaculty(faculty) {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unknown faculty"))
	}
	page := parsePagination(c, 50)
	users, err := s.users.List(c.UserContext(), faculty, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users, "limit": page.Limit, "offset": page.Offset})
}

// GetUserModeration returns the report count and block relations of a user.
func (s *Server) GetUserModeration(c *fiber.Ctx) error {
	userID, ok := parseUserID(c, "id")
	if !ok {
		return nil
	}
	audit, err := s.moderation.UserAudit(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(audit)
}

// UpdateUserStatus activates or bans a user.
func (s *Server) UpdateUserStatus(c *fiber.Ctx) error {
	userID, ok := parseUserID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Status models.UserStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}
	if err := s.users.UpdateStatus(c.UserContext(), userID, req.Status); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": userID, "status": req.Status})
}

// UpdateDailyTopic stores a new topic and broadcasts it to every connection.
func (s *Server) UpdateDailyTopic(c *fiber.Ctx) error {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}
	if err := s.router.PublishDailyTopic(c.UserContext(), req.Topic); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"topic": strings.TrimSpace(req.Topic)})
}

// UpdateRules replaces the chat rules text.
func (s *Server) UpdateRules(c *fiber.Ctx) error {
	var req struct {
		Rules string `json:"rules"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}
	rules := strings.TrimSpace(req.Rules)
	if rules == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Rules cannot be empty"))
	}
	if err := s.settings.SetRules(c.UserContext(), rules); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"rules": rules})
}

// GetFilterWords returns the banned word list.
func (s *Server) GetFilterWords(c *fiber.Ctx) error {
	words, err := s.settings.BannedWords(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"words": words})
}

// UpdateFilterWords replaces the banned word list. Sends after the update
// use the new list.
func (s *Server) UpdateFilterWords(c *fiber.Ctx) error {
	var req struct {
		Words []string `json:"words"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}
	words := settings.NormalizeWords(req.Words)
	if err := s.settings.SetBannedWords(c.UserContext(), words); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"words": words})
}

// GetMessageExpiry returns the retention windows.
func (s *Server) GetMessageExpiry(c *fiber.Ctx) error {
	expiry, err := s.settings.MessageExpiry(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(expiry)
}

// UpdateMessageExpiry replaces the retention windows. The sweeper picks
// them up on its next pass.
func (s *Server) UpdateMessageExpiry(c *fiber.Ctx) error {
	var req models.MessageExpiry
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}
	if err := req.Validate(); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}
	if err := s.settings.SetMessageExpiry(c.UserContext(), req); err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

type roomSummary struct {
	Room      string   `json:"room"`
	Class     string   `json:"class"`
	Name      string   `json:"name"`
	Messages  int      `json:"messages"`
	Listeners []string `json:"listeners"`
}

// GetRooms lists every live room with its history size and current listeners.
func (s *Server) GetRooms(c *fiber.Ctx) error {
	var keys []rooms.RoomKey
	if s.rooms != nil {
		keys = s.rooms.AllKeys()
	}
	slices.SortFunc(keys, func(a, b rooms.RoomKey) int {
		return cmp.Or(cmp.Compare(a.Class, b.Class), cmp.Compare(a.Name, b.Name))
	})

	out := make([]roomSummary, 0, len(keys))
	for _, key := range keys {
		listeners := s.hub.RoomMembers(key)
		slices.Sort(listeners)
		out = append(out, roomSummary{
			Room:      key.String(),
			Class:     string(key.Class),
			Name:      key.Name,
			Messages:  s.rooms.Len(key),
			Listeners: listeners,
		})
	}
	return c.JSON(fiber.Map{"rooms": out})
}

// GetFeatureFlags returns configured flags and their value for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)
	return c.JSON(fiber.Map{
		"flags":     s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
