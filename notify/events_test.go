package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDecodeNewMessageReceived(t *testing.T) {
	frame := `{
		"eventName": "new-msg-received",
		"data": {
			"messageId": "mNEWqgSMAeDAmBAkBDWr",
			"from": {
				"deviceId": "dnN3Ea43bhMTHtTvpytS",
				"name": "deviceB",
				"prodUniqueId": "XYZABC001"
			},
			"receivedDate": "2018-01-29T23:27:39.657Z"
		}
	}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))
	assert.Equal(t, NewMessageReceived, ev.Name)

	data, err := ev.DecodeNewMessageReceived()
	require.NoError(t, err)
	assert.Equal(t, "mNEWqgSMAeDAmBAkBDWr", data.MessageID)
	assert.Equal(t, "dnN3Ea43bhMTHtTvpytS", data.From.DeviceID)
	assert.Equal(t, "deviceB", data.From.Name)
	assert.Equal(t, 2018, data.ReceivedDate.Year())
}

func TestEventDecodeSentMessageRead(t *testing.T) {
	frame := `{
		"eventName": "sent-msg-read",
		"data": {
			"messageId": "mNEWqgSMAeDAmBAkBDWr",
			"to": {"deviceId": "dv3htgvK7hjnKx3617Re"},
			"readDate": "2018-01-30T01:02:12.162Z"
		}
	}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))

	data, err := ev.DecodeSentMessageRead()
	require.NoError(t, err)
	assert.Equal(t, "dv3htgvK7hjnKx3617Re", data.To.DeviceID)
	assert.False(t, data.ReadDate.IsZero())
}

func TestEventDecodeAssetReceived(t *testing.T) {
	frame := `{
		"eventName": "asset-received",
		"data": {
			"assetId": "aQjlzShmrnEZeeYBZihc",
			"amount": 54.25,
			"issuer": {"deviceId": "dnN3Ea43bhMTHtTvpytS"},
			"from": {"deviceId": "dv3htgvK7hjnKx3617Re"},
			"receivedDate": "2018-03-14T21:43:15.050Z"
		}
	}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))

	data, err := ev.DecodeAssetReceived()
	require.NoError(t, err)
	assert.Equal(t, "aQjlzShmrnEZeeYBZihc", data.AssetID)
	assert.Equal(t, 54.25, data.Amount)
	assert.Equal(t, "dnN3Ea43bhMTHtTvpytS", data.Issuer.DeviceID)
}

func TestEventDecodeAssetConfirmed(t *testing.T) {
	frame := `{
		"eventName": "asset-confirmed",
		"data": {
			"assetId": "aQjlzShmrnEZeeYBZihc",
			"amount": 54.25,
			"issuer": {"deviceId": "dnN3Ea43bhMTHtTvpytS"},
			"from": {"deviceId": "dv3htgvK7hjnKx3617Re"},
			"confirmedDate": "2018-03-14T22:10:19.311Z"
		}
	}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))

	data, err := ev.DecodeAssetConfirmed()
	require.NoError(t, err)
	assert.Equal(t, 54.25, data.Amount)
	assert.False(t, data.ConfirmedDate.IsZero())
}

func TestEventDecodeFinalMessageProgress(t *testing.T) {
	frame := `{
		"eventName": "final-msg-progress",
		"data": {
			"ephemeralMessageId": "pJiMtfdB94YkvRvXp7dA",
			"action": "log",
			"progress": {
				"bytesProcessed": 28,
				"done": true,
				"success": true,
				"finishDate": "2019-03-13T14:09:10.121Z"
			},
			"result": {"messageId": "mt7ZYbBYpM3zcgAf3H8X"}
		}
	}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))

	data, err := ev.DecodeFinalMessageProgress()
	require.NoError(t, err)
	assert.Equal(t, "pJiMtfdB94YkvRvXp7dA", data.EphemeralMessageID)
	assert.Equal(t, "log", data.Action)
	assert.True(t, data.Progress.Done)
	assert.True(t, data.Progress.Success)
	assert.Nil(t, data.Progress.Error)
	require.NotNil(t, data.Result)
	assert.Equal(t, "mt7ZYbBYpM3zcgAf3H8X", data.Result.MessageID)
}

func TestEventDecodeFinalMessageProgressError(t *testing.T) {
	frame := `{
		"eventName": "final-msg-progress",
		"data": {
			"ephemeralMessageId": "hEXMdtTMzkhyJ4WssQmp",
			"action": "read",
			"progress": {
				"bytesProcessed": 0,
				"done": true,
				"success": false,
				"error": {"code": 500, "message": "Internal server error"},
				"finishDate": "2019-03-13T14:09:10.121Z"
			}
		}
	}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))

	data, err := ev.DecodeFinalMessageProgress()
	require.NoError(t, err)
	assert.False(t, data.Progress.Success)
	require.NotNil(t, data.Progress.Error)
	assert.Equal(t, 500, data.Progress.Error.Code)
	assert.Nil(t, data.Result)
}

func TestEventDecodeKindMismatch(t *testing.T) {
	ev := Event{Name: SentMessageRead, Data: json.RawMessage(`{}`)}

	_, err := ev.DecodeNewMessageReceived()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sent-msg-read")
}

func TestEventUnknownKindPassesThrough(t *testing.T) {
	frame := `{"eventName": "some-future-event", "data": {"answer": 42}}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))
	assert.Equal(t, EventKind("some-future-event"), ev.Name)
	assert.JSONEq(t, `{"answer": 42}`, string(ev.Data))
}

func TestProcessProgressDoneFinishDateParses(t *testing.T) {
	var p ProcessProgressDone
	require.NoError(t, json.Unmarshal([]byte(`{
		"bytesProcessed": 12,
		"done": true,
		"success": true,
		"finishDate": "2019-03-13T14:09:10.121Z"
	}`), &p))
	want := time.Date(2019, 3, 13, 14, 9, 10, 121000000, time.UTC)
	assert.True(t, p.FinishDate.Equal(want))
}
