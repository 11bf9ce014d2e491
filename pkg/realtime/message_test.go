package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantKind Kind
		wantErr  bool
	}{
		{
			name:     "mutation frame",
			frame:    `{"kind":"mutation","documentId":"B1","data":{"elements":[{"id":"r1"}]}}`,
			wantKind: KindMutation,
		},
		{
			name:    "missing kind",
			frame:   `{"documentId":"B1"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			frame:   `hello`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, msg.Kind)
		})
	}
}

func TestMutationElementsArePassedThroughVerbatim(t *testing.T) {
	msg, err := Parse([]byte(`{"kind":"mutation","documentId":"B1","data":{"elements":[{"id":"r1","x":10}]}}`))
	require.NoError(t, err)

	var payload MutationPayload
	require.NoError(t, msg.Decode(&payload))
	require.Len(t, payload.Elements, 1)
	assert.JSONEq(t, `{"id":"r1","x":10}`, string(payload.Elements[0]))
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(KindTitle, "B1", TitlePayload{Title: "Roadmap"})
	require.NoError(t, err)

	frame, err := msg.Encode()
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(frame, &raw))
	assert.Equal(t, "title", raw["kind"])
	assert.Equal(t, "B1", raw["documentId"])

	empty, err := NewMessage(KindLeave, "B1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
	assert.Error(t, empty.Decode(&TitlePayload{}))
}

func TestRelayable(t *testing.T) {
	assert.True(t, KindMutation.Relayable())
	assert.True(t, KindCursor.Relayable())
	assert.True(t, KindTitle.Relayable())
	assert.False(t, KindJoin.Relayable())
	assert.False(t, KindPresence.Relayable())
}
