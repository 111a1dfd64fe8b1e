package validation

type Profile struct {
	Name           string `form:"name" validate:"min=2,max=50"`
	Title          string `form:"title" validate:"max=80"`
	Timezone       string `form:"timezone" validate:"omitempty,timezone"`
	Bio            string `form:"bio" validate:"max=280"`
	AvatarColor    string `form:"avatarColor" validate:"omitempty,oneof=rose amber emerald sky violet pink"`
	WeeklySummary  bool   `form:"weeklySummary"`
	ProductUpdates bool   `form:"productUpdates"`
}

var profileMessages = Messages{
	"name.min":          "Name required",
	"name.max":          "Max 50 characters",
	"title.max":         "Max 80 characters",
	"timezone.timezone": "Unknown timezone",
	"bio.max":           "Max 280 characters",
	"avatarColor.oneof": "Pick a color from the palette",
}

// ParseProfile reads the profile form. Unchecked preference boxes are absent
// from the submission and read as false.
func ParseProfile(v Values) Result[Profile] {
	return Check(Profile{
		Name:           v["name"],
		Title:          v["title"],
		Timezone:       v["timezone"],
		Bio:            v["bio"],
		AvatarColor:    v["avatarColor"],
		WeeklySummary:  checkbox(v["weeklySummary"]),
		ProductUpdates: checkbox(v["productUpdates"]),
	}, profileMessages)
}
