// Package commands declares and implements the bot's slash commands. Every
// handler is a thin wrapper over the broker's public operations; no queue
// state lives here.
package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/json"
)

var manageMessages = json.NewNullablePtr(discord.PermissionManageMessages)

func platformChoices() []discord.ApplicationCommandOptionChoiceString {
	return []discord.ApplicationCommandOptionChoiceString{
		{Name: "Switch", Value: "switch"},
		{Name: "Steam", Value: "steam"},
	}
}

func gameChoices() []discord.ApplicationCommandOptionChoiceInt {
	return []discord.ApplicationCommandOptionChoiceInt{
		{Name: "Battle Network 3", Value: 3},
		{Name: "Battle Network 4", Value: 4},
		{Name: "Battle Network 5", Value: 5},
		{Name: "Battle Network 6", Value: 6},
	}
}

func chipOptions() []discord.ApplicationCommandOption {
	return []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "platform",
			Description: "Which platform to trade on",
			Required:    true,
			Choices:     platformChoices(),
		},
		discord.ApplicationCommandOptionInt{
			Name:        "game",
			Description: "Which game to trade in",
			Required:    true,
			Choices:     gameChoices(),
		},
		discord.ApplicationCommandOptionString{
			Name:         "chip_name",
			Description:  "Name of the chip",
			Required:     true,
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "chip_code",
			Description: "Chip code (A-Z or *)",
			Required:    true,
		},
	}
}

func ncpOptions() []discord.ApplicationCommandOption {
	return []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "platform",
			Description: "Which platform to trade on",
			Required:    true,
			Choices:     platformChoices(),
		},
		discord.ApplicationCommandOptionInt{
			Name:        "game",
			Description: "Which game to trade in",
			Required:    true,
			Choices:     gameChoices(),
		},
		discord.ApplicationCommandOptionString{
			Name:         "part_name",
			Description:  "Name of the NaviCust part",
			Required:     true,
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "part_color",
			Description: "Color of the NaviCust part",
			Required:    true,
		},
	}
}

var Request = discord.SlashCommandCreate{
	Name:        "request",
	Description: "Request an item to be traded to you",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "chip",
			Description: "Request a chip",
			Options:     chipOptions(),
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "ncp",
			Description: "Request a NaviCust part",
			Options:     ncpOptions(),
		},
	},
}

var RequestFor = discord.SlashCommandCreate{
	Name:                     "requestfor",
	Description:              "Request an item for someone else",
	DefaultMemberPermissions: manageMessages,
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "chip",
			Description: "Request a chip for someone",
			Options: append([]discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Who the trade is for",
					Required:    true,
				},
			}, append(chipOptions(), discord.ApplicationCommandOptionInt{
				Name:        "priority",
				Description: "Queue priority (higher is served first)",
				Required:    false,
			})...),
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "ncp",
			Description: "Request a NaviCust part for someone",
			Options: append([]discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Who the trade is for",
					Required:    true,
				},
			}, append(ncpOptions(), discord.ApplicationCommandOptionInt{
				Name:        "priority",
				Description: "Queue priority (higher is served first)",
				Required:    false,
			})...),
		},
	},
}

var Queue = discord.SlashCommandCreate{
	Name:        "queue",
	Description: "Show the queue for pending trades",
}

var Cancel = discord.SlashCommandCreate{
	Name:        "cancel",
	Description: "Cancel your pending trade request",
}

var ClearQueue = discord.SlashCommandCreate{
	Name:                     "clearqueue",
	Description:              "Remove every pending trade request",
	DefaultMemberPermissions: manageMessages,
}

var ToggleGame = discord.SlashCommandCreate{
	Name:                     "togglegame",
	Description:              "Enable or disable trading for a game",
	DefaultMemberPermissions: manageMessages,
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "platform",
			Description: "Which platform",
			Required:    true,
			Choices:     platformChoices(),
		},
		discord.ApplicationCommandOptionInt{
			Name:        "game",
			Description: "Which game",
			Required:    true,
			Choices:     gameChoices(),
		},
		discord.ApplicationCommandOptionBool{
			Name:        "state",
			Description: "Whether trading is enabled",
			Required:    true,
		},
	},
}

var ToggleWorker = discord.SlashCommandCreate{
	Name:                     "toggleworker",
	Description:              "Enable or disable a single worker",
	DefaultMemberPermissions: manageMessages,
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "worker_id",
			Description:  "Which worker",
			Required:     true,
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionBool{
			Name:        "state",
			Description: "Whether the worker accepts trades",
			Required:    true,
		},
	},
}

var ToggleBot = discord.SlashCommandCreate{
	Name:                     "togglebot",
	Description:              "Enable or disable trade processing globally",
	DefaultMemberPermissions: manageMessages,
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionBool{
			Name:        "state",
			Description: "Whether trades are processed",
			Required:    true,
		},
	},
}

var TopTrades = discord.SlashCommandCreate{
	Name:        "toptrades",
	Description: "Show the most requested items",
}

var TopUsers = discord.SlashCommandCreate{
	Name:        "topusers",
	Description: "Show the users with the most trades",
}

var Trades = discord.SlashCommandCreate{
	Name:        "trades",
	Description: "Show a user's trade history",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "member",
			Description: "Whose trades to show (defaults to you)",
			Required:    false,
		},
	},
}

var TradeCount = discord.SlashCommandCreate{
	Name:        "tradecount",
	Description: "Show overall trade totals",
}

var ListWorkers = discord.SlashCommandCreate{
	Name:        "listworkers",
	Description: "List every known trade worker",
}

var WorkerStatus = discord.SlashCommandCreate{
	Name:        "workerstatus",
	Description: "Show detailed status for one worker",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "worker_id",
			Description:  "Which worker",
			Required:     true,
			Autocomplete: true,
		},
	},
}

var Commands = []discord.ApplicationCommandCreate{
	Request,
	RequestFor,
	Queue,
	Cancel,
	ClearQueue,
	ToggleGame,
	ToggleWorker,
	ToggleBot,
	TopTrades,
	TopUsers,
	Trades,
	TradeCount,
	ListWorkers,
	WorkerStatus,
}
