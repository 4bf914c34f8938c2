package trade

import "fmt"

// Platform identifies where a game runs. Workers announce theirs over the
// state channel and queues are declared per (platform, game) pair.
type Platform string

const (
	PlatformSwitch Platform = "switch"
	PlatformSteam  Platform = "steam"
)

// SupportedGames maps each platform to the Battle Network entries that have
// trade workers.
var SupportedGames = map[Platform][]int{
	PlatformSwitch: {3, 4, 5, 6},
	PlatformSteam:  {3, 4, 5, 6},
}

// Platforms returns the supported platforms in a stable order.
func Platforms() []Platform {
	return []Platform{PlatformSwitch, PlatformSteam}
}

// RoutingKey is the topic-exchange routing key for a (platform, game) pair.
func RoutingKey(platform Platform, game int) string {
	return fmt.Sprintf("requests.%s.bn%d", platform, game)
}

// QueueName is the durable task queue name for a (platform, game) pair.
func QueueName(platform Platform, game int) string {
	return fmt.Sprintf("%s_bn%d_task_queue", platform, game)
}

// GameEnabledTopic is the retained state channel topic carrying the
// enabled flag for a (platform, game) pair.
func GameEnabledTopic(platform Platform, game int) string {
	return fmt.Sprintf("game/%s/bn%d/enabled", platform, game)
}

// IsSupported reports whether the (platform, game) pair has a task queue.
func IsSupported(platform Platform, game int) bool {
	for _, g := range SupportedGames[platform] {
		if g == game {
			return true
		}
	}
	return false
}
