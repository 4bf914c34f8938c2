package stats

import (
	"path/filepath"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

var (
	chipA = trade.Item{Game: 6, Kind: trade.ItemChip, Name: "FolderBak", Code: "*"}
	chipB = trade.Item{Game: 6, Kind: trade.ItemChip, Name: "Roll", Code: "R"}
	ncpA  = trade.Item{Game: 3, Kind: trade.ItemNCP, Name: "HP+500", Code: "yellow"}
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Load(filepath.Join(t.TempDir(), "stats.json"))
	require.NoError(t, err)
	return s
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s := tempStore(t)
	assert.Equal(t, 0, s.TotalTrades())
	assert.Equal(t, 0, s.TotalUsers())
}

func TestRecordTradePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, s.RecordTrade(1, chipA))
	require.NoError(t, s.RecordTrade(1, chipA))
	require.NoError(t, s.RecordTrade(2, ncpA))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.TotalTrades())
	assert.Equal(t, 2, reloaded.TotalUsers())

	user, ok := reloaded.User(1)
	require.True(t, ok)
	assert.Equal(t, 2, user.Trades[chipA.Key()].Count)
}

func TestTopUsersOrderedByCount(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.RecordTrade(1, chipA))
	require.NoError(t, s.RecordTrade(2, chipA))
	require.NoError(t, s.RecordTrade(2, chipB))
	require.NoError(t, s.RecordTrade(2, ncpA))

	top := s.TopUsers()
	require.Len(t, top, 2)
	assert.Equal(t, snowflake.ID(2), top[0].UserID)
	assert.Equal(t, 3, top[0].Count)
	assert.Equal(t, snowflake.ID(1), top[1].UserID)
}

func TestTopItemsAggregatesAcrossUsers(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.RecordTrade(1, chipA))
	require.NoError(t, s.RecordTrade(2, chipA))
	require.NoError(t, s.RecordTrade(2, chipB))

	top := s.TopItems()
	require.Len(t, top, 2)
	assert.Equal(t, chipA.Key(), top[0].Item.Key())
	assert.Equal(t, 2, top[0].Count)
}

func TestUserReturnsCopy(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.RecordTrade(1, chipA))

	user, ok := s.User(1)
	require.True(t, ok)
	user.Trades[chipA.Key()].Count = 99

	again, _ := s.User(1)
	assert.Equal(t, 1, again.Trades[chipA.Key()].Count)
}
