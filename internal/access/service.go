// Package access resolves residents from their room number and gates administrator operations by role.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
)

var deniedReasons = map[models.Role]string{
	models.RoleStaff:        "This action is available to staff only.",
	models.RoleLaundryAdmin: "This action is available to laundry administrators only.",
	models.RoleRooftopAdmin: "This action is available to rooftop administrators only.",
	models.RoleMasterAdmin:  "This action is available to master administrators only.",
}

// Service resolves residents and checks their roles.
type Service struct {
	users  domain.UserRepository
	logger zerolog.Logger
}

// NewService creates a new access control service.
func NewService(users domain.UserRepository, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// EnsureUser returns the resident with the given room number, registering it on first sight.
func (s *Service) EnsureUser(ctx context.Context, room string) (*models.User, error) {
	user, err := domain.EnsureUser(ctx, s.users, strings.TrimSpace(room))
	if err != nil {
		var rejection *domain.Error
		if errors.As(err, &rejection) {
			return nil, err
		}
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return user, nil
}

// Require returns the resident when it holds role, directly or through the hierarchy.
func (s *Service) Require(ctx context.Context, room string, role models.Role) (*models.User, error) {
	user, err := s.EnsureUser(ctx, room)
	if err != nil {
		return nil, err
	}
	if !user.HasRole(role) {
		s.logger.Debug().Str("room", user.RoomNumber).Str("role", string(user.Role)).Str("want", string(role)).Msg("access denied")
		return nil, &AccessDeniedError{Reason: deniedReasons[role]}
	}
	return user, nil
}

// SetRole changes the role of an existing resident. Master-admin only.
func (s *Service) SetRole(ctx context.Context, actor, room string, role models.Role) error {
	if _, err := s.Require(ctx, actor, models.RoleMasterAdmin); err != nil {
		return err
	}
	if !role.Valid() {
		return domain.Rejected("Unknown role: %s", role)
	}
	if err := s.existing(ctx, room); err != nil {
		return err
	}
	if err := s.users.SetUserRole(ctx, room, role); err != nil {
		return fmt.Errorf("set role: %w", err)
	}

	s.logger.Info().
		Str("room", room).
		Str("role", string(role)).
		Str("by", actor).
		Msg("role changed")
	return nil
}

// SetWeeklyLimits sets personal weekly minute caps. Nil restores the default. Laundry-admin only.
func (s *Service) SetWeeklyLimits(ctx context.Context, actor, room string, washer, dryer *int) error {
	if _, err := s.Require(ctx, actor, models.RoleLaundryAdmin); err != nil {
		return err
	}
	for _, v := range []*int{washer, dryer} {
		if v != nil && *v < 0 {
			return domain.Rejected("Weekly limits must not be negative.")
		}
	}
	if err := s.existing(ctx, room); err != nil {
		return err
	}
	if err := s.users.SetWeeklyLimits(ctx, room, washer, dryer); err != nil {
		return fmt.Errorf("set weekly limits: %w", err)
	}

	s.logger.Info().Str("room", room).Str("by", actor).Msg("weekly limits changed")
	return nil
}

// LinkTelegram stores the chat that receives the resident's notifications.
func (s *Service) LinkTelegram(ctx context.Context, room string, chatID int64) error {
	if _, err := s.EnsureUser(ctx, room); err != nil {
		return err
	}
	if err := s.users.SetTelegramChat(ctx, room, chatID); err != nil {
		return fmt.Errorf("link telegram: %w", err)
	}
	return nil
}

// List returns all residents. Staff only.
func (s *Service) List(ctx context.Context, actor string) ([]models.User, error) {
	if _, err := s.Require(ctx, actor, models.RoleStaff); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// PromoteAdmins grants MASTER_ADMIN to the configured rooms, registering them when needed.
func (s *Service) PromoteAdmins(ctx context.Context, rooms []string) error {
	for _, room := range rooms {
		if _, err := s.EnsureUser(ctx, room); err != nil {
			return err
		}
		if err := s.users.SetUserRole(ctx, strings.TrimSpace(room), models.RoleMasterAdmin); err != nil {
			return fmt.Errorf("promote %s: %w", room, err)
		}
	}
	if len(rooms) > 0 {
		s.logger.Info().Strs("rooms", rooms).Msg("configured admins promoted")
	}
	return nil
}

func (s *Service) existing(ctx context.Context, room string) error {
	user, err := s.users.GetUser(ctx, room)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return domain.NotFound("User not found: %s", room)
	}
	return nil
}

// AccessDeniedError is returned when the resident lacks the required role.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// Is makes access denials match domain.ErrForbidden.
func (e *AccessDeniedError) Is(target error) bool {
	var t *domain.Error
	return errors.As(target, &t) && t.Kind == domain.KindForbidden
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
