package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepository(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Repository
		wantErr bool
	}{
		{
			name: "valid reference",
			ref:  "acme/widgets",
			want: Repository{Owner: "acme", Name: "widgets"},
		},
		{
			name: "surrounding whitespace trimmed",
			ref:  "  acme/widgets ",
			want: Repository{Owner: "acme", Name: "widgets"},
		},
		{
			name:    "missing separator",
			ref:     "acmewidgets",
			wantErr: true,
		},
		{
			name:    "empty owner",
			ref:     "/widgets",
			wantErr: true,
		},
		{
			name:    "empty name",
			ref:     "acme/",
			wantErr: true,
		},
		{
			name:    "too many segments",
			ref:     "acme/widgets/extra",
			wantErr: true,
		},
		{
			name:    "empty string",
			ref:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepository(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRepository)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepositoryKey(t *testing.T) {
	repo := Repository{Owner: "acme", Name: "widgets"}
	assert.Equal(t, "acme/widgets", repo.Key())
}

func TestCommitShortID(t *testing.T) {
	assert.Equal(t, "abc1234", Commit{ID: "abc1234def5678"}.ShortID())
	assert.Equal(t, "abc", Commit{ID: "abc"}.ShortID())
	assert.Equal(t, "", Commit{}.ShortID())
}

func TestCursorGetSet(t *testing.T) {
	cursor := Cursor{}

	_, ok := cursor.Get("acme/widgets", "main")
	assert.False(t, ok)
	assert.False(t, cursor.HasRepo("acme/widgets"))

	cursor.Set("acme/widgets", "main", "c3")
	id, ok := cursor.Get("acme/widgets", "main")
	require.True(t, ok)
	assert.Equal(t, "c3", id)
	assert.True(t, cursor.HasRepo("acme/widgets"))

	cursor.Set("acme/widgets", "main", "c5")
	id, _ = cursor.Get("acme/widgets", "main")
	assert.Equal(t, "c5", id)

	cursor.Set("acme/widgets", "develop", "c1")
	assert.Len(t, cursor["acme/widgets"], 2)

	_, ok = cursor.Get("acme/gadgets", "main")
	assert.False(t, ok)
}
