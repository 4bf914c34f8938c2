package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wchill/MrProgDiscordBot/mrprog/registry"
	"github.com/wchill/MrProgDiscordBot/mrprog/statechannel"
	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

func boundRegistry() (*registry.Registry, *statechannel.Memory) {
	r := registry.New()
	sc := statechannel.NewMemory()
	r.Bind(sc)
	return r, sc
}

func TestWorkerBuiltFromFieldTopics(t *testing.T) {
	r, sc := boundRegistry()

	sc.Deliver("worker/switch-1/hostname", []byte("pi-switch"))
	sc.Deliver("worker/switch-1/address", []byte("100.64.0.7"))
	sc.Deliver("worker/switch-1/system", []byte("switch"))
	sc.Deliver("worker/switch-1/game", []byte("6"))
	sc.Deliver("worker/switch-1/available", []byte("1"))
	sc.Deliver("worker/switch-1/enabled", []byte("1"))
	sc.Deliver("worker/switch-1/version", []byte(`{"app":"1.2.3"}`))

	w, ok := r.Get("switch-1")
	require.True(t, ok)
	assert.Equal(t, "pi-switch", w.Hostname)
	assert.Equal(t, "100.64.0.7", w.Address)
	assert.Equal(t, trade.PlatformSwitch, w.Platform)
	assert.Equal(t, 6, w.Game)
	assert.Equal(t, "1.2.3", w.Version["app"])
	assert.Equal(t, registry.StateOnline, w.State())
}

func TestStateDerivation(t *testing.T) {
	tests := []struct {
		name      string
		available string
		enabled   string
		want      registry.State
	}{
		{"available and enabled", "1", "1", registry.StateOnline},
		{"available but disabled", "1", "0", registry.StateDisabled},
		{"unavailable", "0", "1", registry.StateOffline},
		{"unavailable and disabled", "0", "0", registry.StateOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, sc := boundRegistry()
			sc.Deliver("worker/w/available", []byte(tt.available))
			sc.Deliver("worker/w/enabled", []byte(tt.enabled))

			w, ok := r.Get("w")
			require.True(t, ok)
			assert.Equal(t, tt.want, w.State())
		})
	}
}

func TestCurrentTradeRoundTrip(t *testing.T) {
	r, sc := boundRegistry()

	body, err := (&trade.Request{
		UserName: "tester",
		Platform: trade.PlatformSteam,
		Game:     4,
		TradeID:  9,
		Item:     trade.Item{Game: 4, Kind: trade.ItemChip, Name: "Roll", Code: "R"},
	}).Encode()
	require.NoError(t, err)

	sc.Deliver("worker/steam-1/current_trade", body)
	w, ok := r.Get("steam-1")
	require.True(t, ok)
	require.NotNil(t, w.CurrentTrade)
	assert.Equal(t, 9, w.CurrentTrade.TradeID)

	// An empty retained payload means the worker went idle.
	sc.Deliver("worker/steam-1/current_trade", nil)
	w, _ = r.Get("steam-1")
	assert.Nil(t, w.CurrentTrade)
}

func TestMalformedPayloadDoesNotStickOrPanic(t *testing.T) {
	r, sc := boundRegistry()

	sc.Deliver("worker/w/game", []byte("6"))
	sc.Deliver("worker/w/game", []byte("not-a-number"))
	sc.Deliver("worker/w/version", []byte("{broken"))

	w, ok := r.Get("w")
	require.True(t, ok)
	assert.Equal(t, 6, w.Game)
	assert.Nil(t, w.Version)
}

func TestUnknownFieldIgnored(t *testing.T) {
	r, sc := boundRegistry()

	sc.Deliver("worker/w/shoe_size", []byte("42"))
	sc.Deliver("worker/w/hostname", []byte("host"))

	w, ok := r.Get("w")
	require.True(t, ok)
	assert.Equal(t, "host", w.Hostname)
}

func TestWorkersAndIDsSorted(t *testing.T) {
	r, sc := boundRegistry()

	sc.Deliver("worker/zeta/hostname", []byte("z"))
	sc.Deliver("worker/alpha/hostname", []byte("a"))
	sc.Deliver("worker/mid/hostname", []byte("m"))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.IDs())

	workers := r.Workers()
	require.Len(t, workers, 3)
	assert.Equal(t, "alpha", workers[0].ID)
	assert.Equal(t, "zeta", workers[2].ID)
}

func TestModifiedFlag(t *testing.T) {
	r, sc := boundRegistry()
	assert.False(t, r.Modified())

	sc.Deliver("worker/w/hostname", []byte("host"))
	assert.True(t, r.Modified())

	r.ResetModified()
	assert.False(t, r.Modified())

	// A rejected update does not count as a change.
	sc.Deliver("worker/w/game", []byte("junk"))
	assert.False(t, r.Modified())
}
