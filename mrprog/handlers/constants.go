package handlers

import "github.com/wchill/MrProgDiscordBot/mrprog/trade"

const (
	EmoteOK      = "✅"
	EmoteError   = "❌"
	EmoteWarning = "⚠️"
	EmoteSteam   = "<:Steam:1102729564230254643>"
	EmoteSwitch  = "<:Switch:1102729586040647710>"
)

const (
	ColorSuccess = 0x57F287
	ColorError   = 0xED4245
	ColorNeutral = 0x2B2D31
)

// PlatformEmote renders the platform icon used across embeds.
func PlatformEmote(p trade.Platform) string {
	if p == trade.PlatformSteam {
		return EmoteSteam
	}
	return EmoteSwitch
}
