package identity

import (
	"math/rand/v2"
	"strings"
)

const (
	DefaultTimezone = "UTC"
	PlaceholderName = "Queue member"
)

var palette = []string{"rose", "amber", "emerald", "sky", "violet", "pink"}

// Preferences are the notification toggles stored in user metadata.
type Preferences struct {
	WeeklySummary  bool `json:"weeklySummary"`
	ProductUpdates bool `json:"productUpdates"`
}

// User is the application's view of an authenticated identity.
type User struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"name"`
	AvatarColor string      `json:"avatarColor"`
	Title       string      `json:"title"`
	Timezone    string      `json:"timezone"`
	Bio         string      `json:"bio"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
}

// Record is the raw user object returned by the identity provider.
type Record struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Metadata  map[string]any `json:"user_metadata"`
}

// Palette returns the avatar colors in display order.
func Palette() []string {
	return append([]string(nil), palette...)
}

func DefaultPreferences() Preferences {
	return Preferences{WeeklySummary: true, ProductUpdates: false}
}

// Map normalizes a provider record. It is pure and only returns nil for a nil record.
func Map(rec *Record) *User {
	if rec == nil {
		return nil
	}
	meta := rec.Metadata

	u := &User{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: displayName(meta, rec.Email),
		AvatarColor: SafeAvatarColor(stringField(meta, "avatarColor", "")),
		Title:       stringField(meta, "title", ""),
		Timezone:    stringField(meta, "timezone", DefaultTimezone),
		Bio:         stringField(meta, "bio", ""),
		Preferences: EnsurePreferences(meta["preferences"]),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if u.Timezone == "" {
		u.Timezone = DefaultTimezone
	}
	if u.UpdatedAt == "" {
		u.UpdatedAt = rec.CreatedAt
	}
	return u
}

// SafeAvatarColor falls back to the first palette entry for unknown colors.
func SafeAvatarColor(color string) string {
	for _, c := range palette {
		if c == color {
			return color
		}
	}
	return palette[0]
}

// EnsurePreferences reads each toggle independently, keeping only strict booleans.
func EnsurePreferences(raw any) Preferences {
	prefs := DefaultPreferences()
	m, ok := raw.(map[string]any)
	if !ok {
		return prefs
	}
	if v, ok := m["weeklySummary"].(bool); ok {
		prefs.WeeklySummary = v
	}
	if v, ok := m["productUpdates"].(bool); ok {
		prefs.ProductUpdates = v
	}
	return prefs
}

// ProfileInput is what a user can change about their own profile.
type ProfileInput struct {
	Name        string
	Title       string
	Timezone    string
	Bio         string
	AvatarColor string
	Preferences map[string]any
}

// ProfileMetadata builds the user_metadata payload for a profile update.
func ProfileMetadata(in ProfileInput) map[string]any {
	tz := in.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	prefs := EnsurePreferences(in.Preferences)
	return map[string]any{
		"name":        in.Name,
		"title":       in.Title,
		"timezone":    tz,
		"bio":         in.Bio,
		"avatarColor": SafeAvatarColor(in.AvatarColor),
		"preferences": map[string]any{
			"weeklySummary":  prefs.WeeklySummary,
			"productUpdates": prefs.ProductUpdates,
		},
	}
}

// RandomAvatarColor picks a palette color for a new account.
func RandomAvatarColor() string {
	return palette[rand.IntN(len(palette))]
}

func displayName(meta map[string]any, email string) string {
	if name := strings.TrimSpace(stringField(meta, "name", "")); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(email, "@"); local != "" {
		return local
	}
	return PlaceholderName
}

func stringField(meta map[string]any, key, fallback string) string {
	v, ok := meta[key].(string)
	if !ok {
		return fallback
	}
	return v
}
