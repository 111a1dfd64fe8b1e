package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapNilRecord(t *testing.T) {
	assert.Nil(t, Map(nil))
}

func TestMapFullRecord(t *testing.T) {
	rec := &Record{
		ID:        "u-1",
		Email:     "ada@example.com",
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-02-01T00:00:00Z",
		Metadata: map[string]any{
			"name":        "Ada",
			"avatarColor": "violet",
			"title":       "Engineer",
			"timezone":    "Europe/London",
			"bio":         "hi",
			"preferences": map[string]any{"weeklySummary": false, "productUpdates": true},
		},
	}

	u := Map(rec)
	require.NotNil(t, u)
	assert.Equal(t, User{
		ID:          "u-1",
		Email:       "ada@example.com",
		DisplayName: "Ada",
		AvatarColor: "violet",
		Title:       "Engineer",
		Timezone:    "Europe/London",
		Bio:         "hi",
		Preferences: Preferences{WeeklySummary: false, ProductUpdates: true},
		CreatedAt:   "2026-01-01T00:00:00Z",
		UpdatedAt:   "2026-02-01T00:00:00Z",
	}, *u)
}

func TestMapDefaultsForSparseRecords(t *testing.T) {
	cases := []struct {
		name     string
		rec      *Record
		wantName string
	}{
		{name: "no metadata", rec: &Record{ID: "a", Email: "grace@example.com", CreatedAt: "c"}, wantName: "grace"},
		{name: "empty email", rec: &Record{ID: "b", CreatedAt: "c"}, wantName: PlaceholderName},
		{name: "email without local part", rec: &Record{ID: "c", Email: "@example.com", CreatedAt: "c"}, wantName: PlaceholderName},
		{name: "non-string name", rec: &Record{ID: "d", Email: "x@y.z", CreatedAt: "c", Metadata: map[string]any{"name": 42}}, wantName: "x"},
		{name: "blank name", rec: &Record{ID: "e", Email: "x@y.z", CreatedAt: "c", Metadata: map[string]any{"name": "  "}}, wantName: "x"},
		{name: "garbage metadata", rec: &Record{ID: "f", CreatedAt: "c", Metadata: map[string]any{
			"title": 1, "timezone": false, "bio": []any{}, "preferences": "yes",
		}}, wantName: PlaceholderName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := Map(tc.rec)
			require.NotNil(t, u)
			assert.Equal(t, tc.wantName, u.DisplayName)
			assert.Equal(t, "rose", u.AvatarColor)
			assert.Equal(t, "", u.Title)
			assert.Equal(t, DefaultTimezone, u.Timezone)
			assert.Equal(t, "", u.Bio)
			assert.Equal(t, DefaultPreferences(), u.Preferences)
			assert.Equal(t, "c", u.UpdatedAt)
		})
	}
}

func TestMapIsDeterministic(t *testing.T) {
	rec := &Record{ID: "u", Email: "a@b.c", CreatedAt: "t", Metadata: map[string]any{"avatarColor": "sky"}}
	assert.Equal(t, Map(rec), Map(rec))
}

func TestSafeAvatarColor(t *testing.T) {
	for _, c := range Palette() {
		assert.Equal(t, c, SafeAvatarColor(c))
	}
	for _, c := range []string{"", "red", "SKY", " sky"} {
		assert.Equal(t, "rose", SafeAvatarColor(c), "color %q", c)
	}
}

func TestEnsurePreferencesStrictBooleans(t *testing.T) {
	prefs := EnsurePreferences(map[string]any{"weeklySummary": "false", "productUpdates": 1})
	assert.Equal(t, DefaultPreferences(), prefs)

	prefs = EnsurePreferences(map[string]any{"productUpdates": true})
	assert.True(t, prefs.WeeklySummary)
	assert.True(t, prefs.ProductUpdates)
}

func TestProfileMetadata(t *testing.T) {
	meta := ProfileMetadata(ProfileInput{Name: "Ada", AvatarColor: "mauve"})
	assert.Equal(t, "Ada", meta["name"])
	assert.Equal(t, DefaultTimezone, meta["timezone"])
	assert.Equal(t, "rose", meta["avatarColor"])
	assert.Equal(t, map[string]any{"weeklySummary": true, "productUpdates": false}, meta["preferences"])

	meta = ProfileMetadata(ProfileInput{Name: "Ada", AvatarColor: "sky"})
	assert.Equal(t, "sky", meta["avatarColor"])
}

func TestRandomAvatarColorInPalette(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := RandomAvatarColor()
		assert.Equal(t, c, SafeAvatarColor(c))
	}
}
