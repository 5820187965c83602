package domain

import "errors"

// Domain errors
var (
	ErrProfileNotFound     = errors.New("gamification profile not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrSettingsNotFound    = errors.New("no active gamification settings")
	ErrInvalidEvent        = errors.New("invalid event payload")
	ErrInvalidSettings     = errors.New("invalid gamification settings")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAchievementNotFound)
}
