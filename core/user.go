package core

type (
	// User is the identity returned by the auth endpoints.
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	}

	// Session pairs the opaque access token with the user it was issued for.
	Session struct {
		Token string
		User  User
	}

	// AuthResponse is the body of a successful login or register call.
	AuthResponse struct {
		AccessToken string `json:"accessToken"`
		User        User   `json:"user"`
	}
)
