package cli

import (
	"bytes"
	"context"
	"errors"
	"flavorai-client/core"
	"flavorai-client/gateway"
	"flavorai-client/mockapi"
	"flavorai-client/recipes"
	"flavorai-client/session"
	"flavorai-client/stores/memory"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type env struct {
	api *mockapi.Server
	url string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	api := mockapi.NewServer("test-secret", mockapi.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &env{api: api, url: srv.URL}
}

// app returns an App whose store holds a token for userID, or nothing when
// userID is empty. input feeds prompts.
func (e *env) app(t *testing.T, userID, input string) (*App, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	if userID != "" {
		token, err := e.api.TokenFor(userID)
		if err != nil {
			t.Fatal(err)
		}
		store.Set(ctx, token)
	}
	gw := gateway.New(e.url, store)
	mgr := session.NewManager(ctx, gw, store)
	t.Cleanup(mgr.Close)

	out := &bytes.Buffer{}
	return New(gw, mgr, strings.NewReader(input), out), out
}

func TestAccountCommands(t *testing.T) {
	e := newEnv(t)
	e.api.AddUser("ann@example.com", "x", "Ann")
	a, out := e.app(t, "", "x\n")
	ctx := context.Background()

	if err := a.Run(ctx, []string{"login", "-email", "ann@example.com"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Password:") || !strings.Contains(out.String(), "Signed in as Ann") {
		t.Errorf("login output: %q", out)
	}

	out.Reset()
	a.Run(ctx, []string{"whoami"})
	if !strings.HasPrefix(out.String(), "Ann <ann@example.com>") {
		t.Errorf("whoami: %q", out)
	}

	out.Reset()
	a.Run(ctx, []string{"logout"})
	a.Run(ctx, []string{"whoami"})
	if out.String() != "Signed out.\nNot signed in.\n" {
		t.Errorf("after logout: %q", out)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newEnv(t)
	e.api.AddUser("ann@example.com", "x", "Ann")
	a, _ := e.app(t, "", "")

	err := a.Run(context.Background(), []string{"login", "-email", "ann@example.com", "-password", "nope"})
	if core.Message(err, "") != "Invalid credentials" {
		t.Errorf("got %v", err)
	}
}

func TestRestoredSession(t *testing.T) {
	e := newEnv(t)
	id := e.api.AddUser("ann@example.com", "x", "Ann")
	a, out := e.app(t, id, "")

	if err := a.Run(context.Background(), []string{"whoami"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), id) {
		t.Errorf("whoami after restore: %q", out)
	}
}

func TestList(t *testing.T) {
	e := newEnv(t)
	u := e.api.AddUser("ann@example.com", "x", "")
	e.api.AddRecipe(u, "Tomato soup", "tomato", "simmer")
	e.api.AddRecipe(u, "Pancakes", "flour", "fry")
	a, out := e.app(t, "", "")

	if err := a.Run(context.Background(), []string{"list", "-search", "soup"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Tomato soup") || strings.Contains(out.String(), "Pancakes") {
		t.Errorf("list output: %q", out)
	}

	out.Reset()
	a.Run(context.Background(), []string{"list", "-search", "risotto"})
	if out.String() != "No recipes found.\n" {
		t.Errorf("empty list: %q", out)
	}
}

func TestMine_RequiresSignIn(t *testing.T) {
	e := newEnv(t)
	a, _ := e.app(t, "", "")

	err := a.Run(context.Background(), []string{"mine"})
	if !core.Is(err, core.KindForbidden) {
		t.Errorf("got %v", err)
	}
	if len(e.api.CallsTo(http.MethodGet, "/recipes/mine")) != 0 {
		t.Error("anonymous mine reached the server")
	}
}

func TestShow(t *testing.T) {
	e := newEnv(t)
	u := e.api.AddUser("ann@example.com", "x", "")
	id := e.api.AddRecipe(u, "Omelette", "eggs\n\n butter ", "whisk\nfry")
	e.api.SetRatings(id, map[string]int{"a": 5, "b": 5, "c": 4, "d": 3, u: 4})
	a, out := e.app(t, u, "")

	if err := a.Run(context.Background(), []string{"show", id}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Omelette\n",
		"  - eggs\n  - butter\n",
		"  1. whisk\n  2. fry\n",
		"Rating: 4.2 / 5 (5 ratings), your rating: 4\n",
		"You created this recipe",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestShow_NotFound(t *testing.T) {
	e := newEnv(t)
	a, _ := e.app(t, "", "")

	err := a.Run(context.Background(), []string{"show", "missing"})
	if !core.Is(err, core.KindNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	u := e.api.AddUser("ann@example.com", "x", "")
	ctx := context.Background()

	t.Run("declined", func(t *testing.T) {
		id := e.api.AddRecipe(u, "Keep me", "a", "b")
		a, out := e.app(t, u, "n\n")

		if err := a.Run(ctx, []string{"delete", id}); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), recipes.DeletePrompt) || !strings.HasSuffix(out.String(), "Cancelled.\n") {
			t.Errorf("output: %q", out)
		}
		if n := len(e.api.CallsTo(http.MethodDelete, "/recipes/"+id)); n != 0 {
			t.Errorf("declined delete issued %d calls", n)
		}
	})

	t.Run("confirmed then listing", func(t *testing.T) {
		id := e.api.AddRecipe(u, "Remove me", "a", "b")
		a, out := e.app(t, u, "")

		if err := a.Run(ctx, []string{"delete", id, "-yes"}); err != nil {
			t.Fatal(err)
		}
		if e.api.RecipeExists(id) {
			t.Error("recipe still exists")
		}
		if !strings.Contains(out.String(), "Deleted \"Remove me\".") || !strings.Contains(out.String(), "Keep me") {
			t.Errorf("expected the listing after delete: %q", out)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		other := e.api.AddUser("bob@example.com", "x", "")
		id := e.api.AddRecipe(u, "Not yours", "a", "b")
		a, _ := e.app(t, other, "y\n")

		if err := a.Run(ctx, []string{"delete", id}); !core.Is(err, core.KindForbidden) {
			t.Errorf("got %v", err)
		}
		if len(e.api.CallsTo(http.MethodDelete, "/recipes/"+id)) != 0 {
			t.Error("non-owner delete reached the server")
		}
	})
}

func TestCreateAndEdit(t *testing.T) {
	e := newEnv(t)
	u := e.api.AddUser("ann@example.com", "x", "")
	a, out := e.app(t, u, "")
	ctx := context.Background()

	img := filepath.Join(t.TempDir(), "dish.png")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	if err := os.WriteFile(img, png, 0o600); err != nil {
		t.Fatal(err)
	}

	err := a.Run(ctx, []string{"create",
		"-title", "Toast",
		"-ingredient", "bread", "-ingredient", "butter",
		"-step", "toast the bread", "-step", "butter it",
		"-image", img,
	})
	if err != nil {
		t.Fatal(err)
	}
	var id string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "Created recipe ") {
			id = strings.TrimPrefix(line, "Created recipe ")
		}
	}
	if id == "" || !e.api.RecipeExists(id) {
		t.Fatalf("create output: %q", out)
	}

	out.Reset()
	if err := a.Run(ctx, []string{"edit", id, "-title", "Buttered toast"}); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Saved Buttered toast\n" {
		t.Errorf("edit output: %q", out)
	}

	detail, _ := a.Recipes.Get(ctx, id)
	if detail.Ingredients != "bread\nbutter" || detail.Instructions != "toast the bread\nbutter it" || detail.ImageURL == "" {
		t.Errorf("edit should keep unspecified fields: %+v", detail)
	}

	out.Reset()
	if err := a.Run(ctx, []string{"show", id}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Image: "+e.url+"/uploads/") {
		t.Errorf("image url should be absolute: %q", out)
	}
}

func TestCreate_RejectsNonImage(t *testing.T) {
	e := newEnv(t)
	u := e.api.AddUser("ann@example.com", "x", "")
	a, _ := e.app(t, u, "")

	path := filepath.Join(t.TempDir(), "notes.png")
	os.WriteFile(path, []byte("just some text"), 0o600)

	err := a.Run(context.Background(), []string{"create", "-title", "x", "-image", path})
	if !core.Is(err, core.KindValidation) {
		t.Errorf("got %v", err)
	}
	if len(e.api.CallsTo(http.MethodPost, "/recipes")) != 0 {
		t.Error("invalid image reached the server")
	}
}

func TestEdit_Forbidden(t *testing.T) {
	e := newEnv(t)
	owner := e.api.AddUser("ann@example.com", "x", "")
	other := e.api.AddUser("bob@example.com", "x", "")
	id := e.api.AddRecipe(owner, "Ann's", "a", "b")
	a, _ := e.app(t, other, "")

	err := a.Run(context.Background(), []string{"edit", id, "-title", "Bob's now"})
	if !core.Is(err, core.KindForbidden) || core.Message(err, "") != recipes.ForbiddenMessage {
		t.Errorf("got %v", err)
	}
	if len(e.api.CallsTo(http.MethodPatch, "/recipes/"+id)) != 0 {
		t.Error("forbidden edit reached the server")
	}
}

func TestRate(t *testing.T) {
	e := newEnv(t)
	u := e.api.AddUser("ann@example.com", "x", "")
	id := e.api.AddRecipe(u, "Soup", "a", "b")
	ctx := context.Background()

	a, out := e.app(t, u, "")
	if err := a.Run(ctx, []string{"rate", id, "4"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Rating: 4.0 / 5 (1 ratings), your rating: 4") {
		t.Errorf("rate output: %q", out)
	}

	anon, _ := e.app(t, "", "")
	if err := anon.Run(ctx, []string{"rate", id, "5"}); !core.Is(err, core.KindForbidden) {
		t.Errorf("anonymous rate: %v", err)
	}
	if err := a.Run(ctx, []string{"rate", id, "9"}); !core.Is(err, core.KindValidation) {
		t.Errorf("out of range: %v", err)
	}
	if n := len(e.api.CallsTo(http.MethodPost, "/ratings")); n != 1 {
		t.Errorf("got %d submissions, want 1", n)
	}
}

func TestUsage(t *testing.T) {
	e := newEnv(t)
	a, out := e.app(t, "", "")

	if err := a.Run(context.Background(), []string{"bake"}); !errors.Is(err, ErrUsage) {
		t.Errorf("got %v", err)
	}
	if !strings.Contains(out.String(), "delete <id> [-yes]") {
		t.Errorf("usage: %q", out)
	}
	if err := a.Run(context.Background(), []string{"show"}); !errors.Is(err, ErrUsage) {
		t.Errorf("missing id: %v", err)
	}
}
