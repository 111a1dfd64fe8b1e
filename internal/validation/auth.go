package validation

import "strings"

const emailMessage = "Invalid email"

type Login struct {
	Email    string `form:"email" validate:"email"`
	Password string `form:"password" validate:"min=1"`
	Remember bool   `form:"remember"`
}

var loginMessages = Messages{
	"email":        emailMessage,
	"password.min": "Password required",
}

func ParseLogin(v Values) Result[Login] {
	return Check(Login{
		Email:    v["email"],
		Password: v["password"],
		Remember: checkbox(v["remember"]),
	}, loginMessages)
}

type SignUp struct {
	Email    string `form:"email" validate:"email"`
	Password string `form:"password" validate:"min=8,hasupper,haslower,hasdigit,hassymbol"`
	Name     string `form:"name" validate:"min=2,max=50"`
}

var signUpMessages = Messages{
	"email":              emailMessage,
	"password.min":       "At least 8 characters",
	"password.hasupper":  "Include an uppercase letter",
	"password.haslower":  "Include a lowercase letter",
	"password.hasdigit":  "Include a number",
	"password.hassymbol": "Include a symbol",
	"name.min":           "Name required",
	"name.max":           "Max 50 characters",
}

func ParseSignUp(v Values) Result[SignUp] {
	return Check(SignUp{
		Email:    v["email"],
		Password: v["password"],
		Name:     v["name"],
	}, signUpMessages)
}

type Reset struct {
	Email string `form:"email" validate:"email"`
}

func ParseReset(v Values) Result[Reset] {
	return Check(Reset{Email: v["email"]}, Messages{"email": emailMessage})
}

func checkbox(s string) bool {
	s = strings.ToLower(s)
	return s == "on" || s == "true"
}
