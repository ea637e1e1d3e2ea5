package tag

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "plain lowercase hex",
			raw:  "04f7eda4df6181",
			want: "04f7eda4df6181",
		},
		{
			name: "uppercase is lowercased",
			raw:  "04F7EDA4DF6181",
			want: "04f7eda4df6181",
		},
		{
			name: "colon separators stripped",
			raw:  "04:F7:ED:A4:DF:61:81",
			want: "04f7eda4df6181",
		},
		{
			name: "dash separators stripped",
			raw:  "04-f7-ed-a4-df-61-81",
			want: "04f7eda4df6181",
		},
		{
			name: "space separators stripped",
			raw:  "04 f7 ed a4 df 61 81",
			want: "04f7eda4df6181",
		},
		{
			name: "surrounding whitespace stripped",
			raw:  "  abcd1234  ",
			want: "abcd1234",
		},
		{
			name: "minimum length accepted",
			raw:  "ABCD",
			want: "abcd",
		},
		{
			name:    "empty input rejected",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "separators only rejected",
			raw:     ":- ",
			wantErr: true,
		},
		{
			name:    "too short rejected",
			raw:     "abc",
			wantErr: true,
		},
		{
			name:    "non-hex characters rejected",
			raw:     "abcg1234",
			wantErr: true,
		},
		{
			name:    "unicode rejected",
			raw:     "abcd12Ä4",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidIdentifier))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.UID())
		})
	}
}

func TestParse_EquivalentRepresentations(t *testing.T) {
	variants := []string{
		"04f7eda4df6181",
		"04F7EDA4DF6181",
		"04:f7:ed:a4:df:61:81",
		"04-F7-ED-A4-DF-61-81",
		"04 f7 ED a4 DF 61 81",
	}

	canonical, err := Parse(variants[0])
	require.NoError(t, err)

	for _, v := range variants {
		id, err := Parse(v)
		require.NoError(t, err, "variant %q", v)
		assert.Equal(t, canonical, id, "variant %q should normalize identically", v)
	}
}

func TestFromBytes(t *testing.T) {
	id, err := FromBytes([]byte{0x04, 0xf7, 0xed, 0xa4})
	require.NoError(t, err)
	assert.Equal(t, "04f7eda4", id.UID())

	_, err = FromBytes([]byte{0x04})
	assert.Error(t, err, "one byte is below the minimum uid length")
}

func TestIdentifier_IsZero(t *testing.T) {
	var zero Identifier
	assert.True(t, zero.IsZero())

	id, err := Parse("abcd1234")
	require.NoError(t, err)
	assert.False(t, id.IsZero())
}

func TestIdentifier_MapKey(t *testing.T) {
	a, err := Parse("AB:CD:12:34")
	require.NoError(t, err)
	b, err := Parse("abcd1234")
	require.NoError(t, err)

	seen := map[Identifier]int{}
	seen[a]++
	seen[b]++
	assert.Len(t, seen, 1, "equivalent identifiers must collide as map keys")
}
