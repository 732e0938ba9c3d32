package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_PickMade(t *testing.T) {
	ts := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	raw, err := Encode(TypePickMade, PickMadePayload{
		LeagueID:   "league-1",
		TeamID:     1,
		PlayerID:   "101",
		PickNumber: 1,
		Timestamp:  ts,
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"PICK_MADE"`)
	assert.Contains(t, string(raw), `"pickNumber":1`)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypePickMade, env.Type)

	var p PickMadePayload
	require.NoError(t, env.DecodeData(&p))
	assert.Equal(t, "101", p.PlayerID)
	assert.True(t, p.Timestamp.Equal(ts))
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"data":{}}`))
	require.ErrorIs(t, err, ErrMissingType)
}

func TestPingHasNoData(t *testing.T) {
	raw, err := Encode(TypePing, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PING"}`, string(raw))

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Error(t, env.DecodeData(&struct{}{}))
}
