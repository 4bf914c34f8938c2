package broker

import (
	"fmt"

	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

// AlreadyQueuedError rejects a submission from a user who already has a
// live request. It carries the existing request so the front-end can say
// what the user is already waiting on.
type AlreadyQueuedError struct {
	Existing *trade.Request
}

func (e *AlreadyQueuedError) Error() string {
	return fmt.Sprintf("user %d is already queued for %s", e.Existing.UserID, e.Existing.Item)
}

// GameDisabledError rejects a submission for a game whose trading toggle
// is off (or has never been turned on).
type GameDisabledError struct {
	Platform trade.Platform
	Game     int
}

func (e *GameDisabledError) Error() string {
	return fmt.Sprintf("trading is disabled for %s bn%d", e.Platform, e.Game)
}

// UnsupportedGameError rejects a submission for a (platform, game) pair
// that has no task queue.
type UnsupportedGameError struct {
	Platform trade.Platform
	Game     int
}

func (e *UnsupportedGameError) Error() string {
	return fmt.Sprintf("no task queue for %s bn%d", e.Platform, e.Game)
}
