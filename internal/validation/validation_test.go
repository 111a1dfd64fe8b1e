package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postForm(form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseFormTrimsValues(t *testing.T) {
	r := postForm(url.Values{"email": {"  a@b.co  "}, "name": {"\tAda\n", "ignored"}})
	v, err := ParseForm(r)
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", v["email"])
	assert.Equal(t, "Ada", v["name"])
	assert.False(t, v.Has("password"))
	assert.Nil(t, v.Ptr("password"))
	require.NotNil(t, v.Ptr("name"))
}

func TestEchoDropsSecrets(t *testing.T) {
	v := Values{"email": "a@b.co", "password": "x", "confirmPassword": "y"}
	assert.Equal(t, Values{"email": "a@b.co"}, v.Echo())
	assert.Len(t, v, 3)
}

func TestParseLogin(t *testing.T) {
	res := ParseLogin(Values{"email": "ada@example.com", "password": "pw", "remember": "on"})
	got, ok := res.Get()
	require.True(t, ok)
	assert.True(t, got.Remember)

	res = ParseLogin(Values{"email": "nope", "password": ""})
	_, ok = res.Get()
	require.False(t, ok)
	f, _ := res.Failure()
	assert.Equal(t, []string{"Invalid email"}, f.FieldErrors["email"])
	assert.Equal(t, []string{"Password required"}, f.FieldErrors["password"])
	assert.Empty(t, f.FormErrors)
}

func TestParseSignUpPasswordRules(t *testing.T) {
	cases := map[string]string{
		"Sh0rt!":    "At least 8 characters",
		"lower123!": "Include an uppercase letter",
		"UPPER123!": "Include a lowercase letter",
		"NoDigits!": "Include a number",
		"NoSymb0ls": "Include a symbol",
	}
	for pw, want := range cases {
		res := ParseSignUp(Values{"email": "ada@example.com", "password": pw, "name": "Ada"})
		f, failed := res.Failure()
		require.True(t, failed, pw)
		assert.Equal(t, []string{want}, f.FieldErrors["password"], pw)
	}

	res := ParseSignUp(Values{"email": "ada@example.com", "password": "Secret123!", "name": "Ada"})
	got, ok := res.Get()
	require.True(t, ok)
	assert.Equal(t, "Ada", got.Name)
}

func TestParseSignUpName(t *testing.T) {
	res := ParseSignUp(Values{"email": "ada@example.com", "password": "Secret123!", "name": "A"})
	f, _ := res.Failure()
	assert.Equal(t, []string{"Name required"}, f.FieldErrors["name"])

	res = ParseSignUp(Values{"email": "ada@example.com", "password": "Secret123!", "name": strings.Repeat("a", 51)})
	f, _ = res.Failure()
	assert.Equal(t, []string{"Max 50 characters"}, f.FieldErrors["name"])
}

func TestParseReset(t *testing.T) {
	_, ok := ParseReset(Values{"email": "ada@example.com"}).Get()
	assert.True(t, ok)

	f, failed := ParseReset(Values{}).Failure()
	require.True(t, failed)
	assert.Equal(t, []string{"Invalid email"}, f.FieldErrors["email"])
}

func TestHandleRejectsBeforeNext(t *testing.T) {
	called := false
	h := Handle(ParseLogin, func(w http.ResponseWriter, r *http.Request, data Login, raw Values) {
		called = true
	})

	rec := httptest.NewRecorder()
	h(rec, postForm(url.Values{"email": {"bad"}, "password": {"hunter2"}}))

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body FailureBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Invalid email"}, body.Errors.FieldErrors["email"])
	assert.Equal(t, "bad", body.Values["email"])
	assert.NotContains(t, body.Values, "password")
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestHandlePassesValidData(t *testing.T) {
	var got Login
	h := Handle(ParseLogin, func(w http.ResponseWriter, r *http.Request, data Login, raw Values) {
		got = data
		assert.Equal(t, "ada@example.com", raw["email"])
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h(rec, postForm(url.Values{"email": {" ada@example.com "}, "password": {"pw"}}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestFailedNormalizesEmptyCollections(t *testing.T) {
	f, failed := Failed[int](Failure{}).Failure()
	require.True(t, failed)
	assert.NotNil(t, f.FieldErrors)
	assert.NotNil(t, f.FormErrors)
	assert.True(t, f.Empty())
}

func TestParseProfile(t *testing.T) {
	res := ParseProfile(Values{"name": "Ada", "timezone": "UTC", "avatarColor": "sky", "weeklySummary": "on"})
	got, ok := res.Get()
	require.True(t, ok)
	assert.Equal(t, "sky", got.AvatarColor)
	assert.True(t, got.WeeklySummary)
	assert.False(t, got.ProductUpdates)

	res = ParseProfile(Values{"name": "A", "timezone": "Mars/Olympus", "avatarColor": "teal"})
	f, failed := res.Failure()
	require.True(t, failed)
	assert.Equal(t, []string{"Name required"}, f.FieldErrors["name"])
	assert.Equal(t, []string{"Unknown timezone"}, f.FieldErrors["timezone"])
	assert.Equal(t, []string{"Pick a color from the palette"}, f.FieldErrors["avatarColor"])
}
