package api

import (
	"net/http"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"blogicum/pkg/censor"
	"blogicum/pkg/storage"
)

const (
	maxTitleLen    = 256
	maxUsernameLen = 150
)

const msgBanned = "Please remove the forbidden words."

var usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

// Usernames that collide with fixed routes under /profile/. Names made only of
// dots are rejected too since the router cleans them out of the path.
var reservedUsernames = map[string]bool{"edit": true}

type fieldErrors map[string]string

type postForm struct {
	Title       string
	Text        string
	PubDate     string
	Category    string
	Location    string
	IsPublished bool
	Errors      fieldErrors
}

func newPostForm(p storage.Post) postForm {
	f := postForm{
		Title:       p.Title,
		Text:        p.Text,
		PubDate:     p.PubDate.UTC().Format(inputDate),
		IsPublished: p.IsPublished,
	}
	if p.CategoryID != nil {
		f.Category = strconv.FormatInt(*p.CategoryID, 10)
	}
	if p.LocationID != nil {
		f.Location = strconv.FormatInt(*p.LocationID, 10)
	}
	return f
}

func parsePostForm(r *http.Request) postForm {
	return postForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Text:        strings.TrimSpace(r.PostFormValue("text")),
		PubDate:     strings.TrimSpace(r.PostFormValue("pub_date")),
		Category:    r.PostFormValue("category"),
		Location:    r.PostFormValue("location"),
		IsPublished: r.PostFormValue("is_published") != "",
	}
}

// apply validates the form against the known categories and locations and
// copies the values into p. It reports false and fills f.Errors on failure.
func (f *postForm) apply(p *storage.Post, cats []storage.Category, locs []storage.Location, c *censor.Censor) bool {
	f.Errors = fieldErrors{}

	switch n := utf8.RuneCountInString(f.Title); {
	case n == 0:
		f.Errors["title"] = "This field is required."
	case n > maxTitleLen:
		f.Errors["title"] = "Ensure this value has at most 256 characters."
	}
	if f.Text == "" {
		f.Errors["text"] = "This field is required."
	}
	if _, ok := f.Errors["title"]; !ok && c.Check(f.Title) {
		f.Errors["title"] = msgBanned
	}
	if _, ok := f.Errors["text"]; !ok && c.Check(f.Text) {
		f.Errors["text"] = msgBanned
	}

	pubDate, err := time.ParseInLocation(inputDate, f.PubDate, time.UTC)
	if f.PubDate == "" {
		f.Errors["pub_date"] = "This field is required."
	} else if err != nil {
		f.Errors["pub_date"] = "Enter a valid date and time."
	}

	catID, ok := lookupID(f.Category, func(id int64) bool {
		for _, c := range cats {
			if c.ID == id {
				return true
			}
		}
		return false
	})
	if !ok {
		f.Errors["category"] = "Select a valid choice."
	}
	locID, ok := lookupID(f.Location, func(id int64) bool {
		for _, l := range locs {
			if l.ID == id {
				return true
			}
		}
		return false
	})
	if !ok {
		f.Errors["location"] = "Select a valid choice."
	}

	if len(f.Errors) > 0 {
		return false
	}

	p.Title = f.Title
	p.Text = f.Text
	p.PubDate = pubDate
	p.CategoryID = catID
	p.LocationID = locID
	p.IsPublished = f.IsPublished
	return true
}

// lookupID parses an optional id select value. An empty value is a valid nil choice.
func lookupID(s string, exists func(int64) bool) (*int64, bool) {
	if s == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || !exists(id) {
		return nil, false
	}
	return &id, true
}

type commentForm struct {
	Text   string
	Errors fieldErrors
}

func parseCommentForm(r *http.Request) commentForm {
	return commentForm{Text: strings.TrimSpace(r.PostFormValue("text"))}
}

func (f *commentForm) valid(c *censor.Censor) bool {
	f.Errors = fieldErrors{}
	switch {
	case f.Text == "":
		f.Errors["text"] = "This field is required."
	case c.Check(f.Text):
		f.Errors["text"] = msgBanned
	}
	return len(f.Errors) == 0
}

type profileForm struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Errors    fieldErrors
}

func newProfileForm(u storage.User) profileForm {
	return profileForm{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Email:     u.Email,
	}
}

func parseProfileForm(r *http.Request) profileForm {
	return profileForm{
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
	}
}

func (f *profileForm) valid() bool {
	f.Errors = fieldErrors{}
	if msg := checkUsername(f.Username); msg != "" {
		f.Errors["username"] = msg
	}
	if msg := checkEmail(f.Email); msg != "" {
		f.Errors["email"] = msg
	}
	return len(f.Errors) == 0
}

func (f *profileForm) apply(u *storage.User) {
	u.FirstName = f.FirstName
	u.LastName = f.LastName
	u.Username = f.Username
	u.Email = f.Email
}

type registrationForm struct {
	Username  string
	Email     string
	Password1 string
	Password2 string
	Errors    fieldErrors
}

func parseRegistrationForm(r *http.Request) registrationForm {
	return registrationForm{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}
}

func (f *registrationForm) valid() bool {
	f.Errors = fieldErrors{}
	if msg := checkUsername(f.Username); msg != "" {
		f.Errors["username"] = msg
	}
	if msg := checkEmail(f.Email); msg != "" {
		f.Errors["email"] = msg
	}
	if f.Password1 == "" {
		f.Errors["password1"] = "This field is required."
	}
	if f.Password1 != f.Password2 {
		f.Errors["password2"] = "The two password fields didn't match."
	}
	return len(f.Errors) == 0
}

func checkUsername(username string) string {
	switch {
	case username == "":
		return "This field is required."
	case utf8.RuneCountInString(username) > maxUsernameLen:
		return "Ensure this value has at most 150 characters."
	case !usernameRe.MatchString(username):
		return "Enter a valid username. It may contain only letters, numbers, and @/./+/-/_ characters."
	case reservedUsernames[strings.ToLower(username)], strings.Trim(username, ".") == "":
		return "This username is not available."
	}
	return ""
}

func checkEmail(email string) string {
	if email == "" {
		return ""
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "Enter a valid email address."
	}
	return ""
}
