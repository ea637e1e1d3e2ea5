package tag

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) Identifier {
	t.Helper()
	id, err := Parse(raw)
	require.NoError(t, err)
	return id
}

func TestNew(t *testing.T) {
	tg := New(mustParse(t, "04f7eda4df6181"))

	assert.Equal(t, "04f7eda4df6181", tg.Identifier.UID())
	assert.False(t, tg.IsAssociated())
	assert.Zero(t, tg.DetectionCount)
	assert.Nil(t, tg.LastDetectedAt)
	assert.NotNil(t, tg.Metadata)
}

func TestTag_RecordDetection(t *testing.T) {
	tg := New(mustParse(t, "abcd1234"))
	first := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	tg.RecordDetection(first)
	require.NotNil(t, tg.LastDetectedAt)
	assert.Equal(t, first, *tg.LastDetectedAt)
	assert.Equal(t, 1, tg.DetectionCount)

	tg.RecordDetection(second)
	assert.Equal(t, second, *tg.LastDetectedAt)
	assert.Equal(t, 2, tg.DetectionCount)
}

func TestTag_Associate(t *testing.T) {
	tests := []struct {
		name       string
		playlistID string
		wantErr    bool
	}{
		{name: "valid playlist id", playlistID: "p1"},
		{name: "empty rejected", playlistID: "", wantErr: true},
		{name: "whitespace rejected", playlistID: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := New(mustParse(t, "abcd1234"))
			err := tg.Associate(tt.playlistID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrEmptyPlaylistID))
				assert.False(t, tg.IsAssociated())
				return
			}
			require.NoError(t, err)
			assert.True(t, tg.IsAssociated())
			assert.True(t, tg.IsAssociatedWith(tt.playlistID))
		})
	}
}

func TestTag_Dissociate(t *testing.T) {
	tg := New(mustParse(t, "abcd1234"))

	assert.False(t, tg.Dissociate(), "no association to clear")

	require.NoError(t, tg.Associate("p1"))
	assert.True(t, tg.Dissociate())
	assert.False(t, tg.IsAssociated())
	assert.False(t, tg.Dissociate(), "second dissociate is a no-op")
}

func TestTag_IsAssociatedWith(t *testing.T) {
	tg := New(mustParse(t, "abcd1234"))
	require.NoError(t, tg.Associate("p1"))

	assert.True(t, tg.IsAssociatedWith("p1"))
	assert.False(t, tg.IsAssociatedWith("p2"))
	assert.False(t, tg.IsAssociatedWith(""))
}
