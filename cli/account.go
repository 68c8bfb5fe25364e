package cli

import (
	"context"
	"flavorai-client/core"
	"fmt"
)

func runLogin(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("login", a.out)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password (prompted when empty)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if err := a.askCredentials(email, password); err != nil {
		return err
	}

	user, err := a.Session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	a.printf("Signed in as %s\n", displayName(user))
	return nil
}

func runRegister(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("register", a.out)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password (prompted when empty)")
	name := fs.String("name", "", "Display name")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if err := a.askCredentials(email, password); err != nil {
		return err
	}

	user, err := a.Session.Register(ctx, *email, *password, *name)
	if err != nil {
		return err
	}
	a.printf("Welcome, %s! You are signed in.\n", displayName(user))
	return nil
}

func (a *App) askCredentials(email, password *string) error {
	var err error
	if *email == "" {
		if *email, err = a.prompt("Email:"); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.prompt("Password:"); err != nil {
			return err
		}
	}
	return nil
}

func runLogout(ctx context.Context, a *App, args []string) error {
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	a.printf("Signed out.\n")
	return nil
}

func runWhoami(ctx context.Context, a *App, args []string) error {
	user := a.Session.User()
	if user == nil {
		a.printf("Not signed in.\n")
		return nil
	}
	a.printf("%s <%s> (id %s)\n", displayName(user), user.Email, user.ID)
	return nil
}

// requireSignIn refuses actions that only make sense for a signed-in user.
func (a *App) requireSignIn(action string) error {
	if _, ok := a.Session.UserID(); !ok {
		return core.NewForbidden(fmt.Sprintf("Sign in to %s.", action))
	}
	return nil
}

func displayName(u *core.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
