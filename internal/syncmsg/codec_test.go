package syncmsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/internal/health"
)

func sampleMessages() []*Message {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	rec := health.DailyRecord{
		Date:             day,
		Steps:            10432,
		ActiveEnergyKcal: 512.5,
		ExerciseMinutes:  38,
		StandHours:       11,
		RestingHeartRate: 54,
		AverageHeartRate: 72,
		SleepMinutes:     452,
		WorkoutCount:     1,
	}

	return []*Message{
		NewRequestData([]time.Time{day, day.AddDate(0, 0, 1)}),
		NewRequestAllData(),
		NewHealthData(SyncPayload{
			DeviceName:    "test-phone",
			SyncTimestamp: time.Date(2024, 3, 11, 8, 30, 0, 0, time.UTC),
			HealthRecords: []health.DailyRecord{rec},
		}),
		NewSyncProgress(SyncProgressInfo{
			TotalDays:      365,
			ProcessedDays:  120,
			RecordsInBatch: 30,
			Message:        "processing 2024-03",
		}),
		NewPing(),
		NewPong(),
	}
}

func TestCodec_RoundTrip_JSON(t *testing.T) {
	for _, msg := range sampleMessages() {
		t.Run(msg.Type.String(), func(t *testing.T) {
			data, err := Marshal(msg, EncodingJSON)
			require.NoError(t, err)

			decoded, enc, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, EncodingJSON, enc)
			assert.Equal(t, msg, decoded)
		})
	}
}

func TestCodec_RoundTrip_MsgPack(t *testing.T) {
	for _, msg := range sampleMessages() {
		t.Run(msg.Type.String(), func(t *testing.T) {
			data, err := Marshal(msg, EncodingMsgPack)
			require.NoError(t, err)

			decoded, enc, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, EncodingMsgPack, enc)
			require.Equal(t, msg.Id, decoded.Id)
			require.Equal(t, msg.Type, decoded.Type)
			assertPayloadEqual(t, msg.Data, decoded.Data)
		})
	}
}

// msgpack decodes time.Time into the local zone, so payloads with timestamps
// are compared instant-by-instant rather than with DeepEqual.
func assertPayloadEqual(t *testing.T, want, got any) {
	t.Helper()

	switch w := want.(type) {
	case RequestData:
		g, ok := got.(RequestData)
		require.True(t, ok, "payload type %T", got)
		require.Len(t, g.Dates, len(w.Dates))
		for i := range w.Dates {
			assert.True(t, w.Dates[i].Equal(g.Dates[i]), "date %d", i)
		}
	case HealthData:
		g, ok := got.(HealthData)
		require.True(t, ok, "payload type %T", got)
		assert.Equal(t, w.Payload.DeviceName, g.Payload.DeviceName)
		assert.True(t, w.Payload.SyncTimestamp.Equal(g.Payload.SyncTimestamp))
		require.Len(t, g.Payload.HealthRecords, len(w.Payload.HealthRecords))
		for i, wr := range w.Payload.HealthRecords {
			gr := g.Payload.HealthRecords[i]
			assert.True(t, wr.Date.Equal(gr.Date))
			wr.Date, gr.Date = time.Time{}, time.Time{}
			assert.Equal(t, wr, gr)
		}
	default:
		assert.Equal(t, want, got)
	}
}

func TestCodec_UnknownTag_IsRecoverable(t *testing.T) {
	bogus := &Message{Id: "abc123", Type: MessageType(99), Data: Ping{}}

	_, err := Marshal(bogus, EncodingJSON)
	var unknownErr *ErrUnknownMessageType
	require.ErrorAs(t, err, &unknownErr)

	_, err = Marshal(bogus, EncodingMsgPack)
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, MessageType(99), unknownErr.Type)

	// A well-formed envelope carrying an unknown tag decodes to an error,
	// never a panic.
	data, err := Marshal(NewPing(), EncodingJSON)
	require.NoError(t, err)
	tampered := []byte(`{"id":"abc123","typ":99,"dat":{}}`)
	envelope := append(append([]byte{}, data[:4]...), tampered...)
	_, _, err = Unmarshal(envelope)
	require.ErrorAs(t, err, &unknownErr)
}

func TestCodec_MissingEnvelope(t *testing.T) {
	_, _, err := Unmarshal([]byte(`{"id":"x","typ":4,"dat":{}}`))
	require.Error(t, err)

	_, _, err = Unmarshal(nil)
	require.Error(t, err)
}

func TestCodec_UnsupportedVersion(t *testing.T) {
	data, err := Marshal(NewPing(), EncodingJSON)
	require.NoError(t, err)

	data[2] = 42
	_, _, err = Unmarshal(data)
	require.ErrorContains(t, err, "unsupported envelope version")
}

func TestPreferredEncoding(t *testing.T) {
	assert.Equal(t, EncodingMsgPack, PreferredEncoding(""))
	assert.Equal(t, EncodingJSON, PreferredEncoding("json,msgpack"))
	assert.Equal(t, EncodingMsgPack, PreferredEncoding(" MSGPACK "))
	assert.Equal(t, EncodingMsgPack, PreferredEncoding("protobuf"))
}

func TestSyncProgressInfo_FractionComplete(t *testing.T) {
	assert.Equal(t, 0.0, SyncProgressInfo{}.FractionComplete())
	assert.Equal(t, 0.5, SyncProgressInfo{TotalDays: 10, ProcessedDays: 5}.FractionComplete())
	assert.Equal(t, 1.0, SyncProgressInfo{TotalDays: 3, ProcessedDays: 3, IsComplete: true}.FractionComplete())
}
