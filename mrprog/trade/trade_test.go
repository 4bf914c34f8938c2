package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestToleratesUnknownFields(t *testing.T) {
	raw := []byte(`{"v":2,"user_name":"tester","user_id":"1001","platform":"switch","game":6,"trade_id":7,"item":{"game":6,"kind":"chip","name":"Roll","code":"R"},"future_field":true}`)

	req, err := DecodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, 7, req.TradeID)
	assert.Equal(t, PlatformSwitch, req.Platform)
	assert.Equal(t, "Roll R", req.Item.String())
}

func TestEncodeStampsWireVersion(t *testing.T) {
	body, err := (&Request{UserName: "tester", Platform: PlatformSteam, Game: 3}).Encode()
	require.NoError(t, err)

	req, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, WireVersion, req.Version)
}

func TestResponseRoomReady(t *testing.T) {
	assert.False(t, (&Response{Status: StatusInProgress}).RoomReady())
	assert.True(t, (&Response{Status: StatusInProgress, Image: []byte("img")}).RoomReady())
	assert.False(t, (&Response{Status: StatusSuccess, Image: []byte("img")}).RoomReady())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailure.Terminal())
	assert.True(t, StatusCriticalFailure.Terminal())
}

func TestRoutingAndQueueNames(t *testing.T) {
	assert.Equal(t, "requests.switch.bn6", RoutingKey(PlatformSwitch, 6))
	assert.Equal(t, "steam_bn3_task_queue", QueueName(PlatformSteam, 3))
	assert.Equal(t, "game/switch/bn4/enabled", GameEnabledTopic(PlatformSwitch, 4))
	assert.True(t, IsSupported(PlatformSwitch, 6))
	assert.False(t, IsSupported(PlatformSwitch, 2))
	assert.False(t, IsSupported("gamecube", 6))
}
