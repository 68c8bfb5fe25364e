// Package recipes performs ownership-gated reads and mutations of catalog
// recipes and derives the view state shown for them.
package recipes

import (
	"context"
	"flavorai-client/core"
	"flavorai-client/gateway"
	"flavorai-client/session"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DeletePrompt is the question asked before a recipe is deleted.
const DeletePrompt = "Delete this recipe? This cannot be undone."

// ForbiddenMessage is shown when a non-owner reaches a mutation path.
const ForbiddenMessage = "You can only edit recipes that you created."

// DeleteForbiddenMessage is shown when a delete is attempted on a recipe the
// viewer does not own.
const DeleteForbiddenMessage = "You can only delete recipes that you created."

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Controller issues one gateway call per operation. It remembers the author
// of every recipe it has fetched so that mutations can be refused locally
// once a copy shows the caller is not the owner.
type Controller struct {
	gw       *gateway.Gateway
	identity session.Identity

	mu      sync.Mutex
	authors map[string]string
}

// NewController creates a controller acting as identity. identity may be nil
// for an anonymous client.
func NewController(gw *gateway.Gateway, identity session.Identity) *Controller {
	return &Controller{
		gw:       gw,
		identity: identity,
		authors:  make(map[string]string),
	}
}

// List returns the catalog, filtered by the server when search is non-empty.
func (c *Controller) List(ctx context.Context, search string) ([]core.Recipe, error) {
	opts := gateway.Options{}
	if term := strings.TrimSpace(search); term != "" {
		opts.Query = url.Values{"search": {term}}
	}

	list, err := gateway.Fetch[[]core.Recipe](ctx, c.gw, "/recipes", opts)
	if err != nil {
		logrus.WithError(err).WithField("search", search).Warn("Failed to list recipes")
		return nil, err
	}
	c.remember(list...)
	return list, nil
}

// Mine returns the recipes authored by the signed-in user.
func (c *Controller) Mine(ctx context.Context) ([]core.Recipe, error) {
	list, err := gateway.Fetch[[]core.Recipe](ctx, c.gw, "/recipes/mine", gateway.Options{})
	if err != nil {
		logrus.WithError(err).Warn("Failed to list own recipes")
		return nil, err
	}
	c.remember(list...)
	return list, nil
}

// Get fetches one recipe. Reading is never ownership restricted.
func (c *Controller) Get(ctx context.Context, id string) (*core.Recipe, error) {
	rec, err := gateway.Fetch[core.Recipe](ctx, c.gw, recipePath(id), gateway.Options{})
	if err != nil {
		logrus.WithError(err).WithField("recipe_id", id).Warn("Failed to fetch recipe")
		return nil, err
	}
	c.remember(rec)
	return &rec, nil
}

// Create uploads a new recipe and returns its id.
func (c *Controller) Create(ctx context.Context, in core.RecipeInput) (string, error) {
	created, err := gateway.Fetch[core.CreatedRecipe](ctx, c.gw, "/recipes", gateway.Options{
		Method:    http.MethodPost,
		Multipart: payload(in),
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to create recipe")
		return "", err
	}
	if created.ID == "" {
		logrus.Warn("Create response carried no recipe id")
		return "", core.NewAPI(0, "The server did not return the new recipe id")
	}

	logrus.WithField("recipe_id", created.ID).Info("Recipe created")
	return created.ID, nil
}

// Update replaces the editable fields of a recipe. It is refused without a
// request when the last fetched copy belongs to someone else.
func (c *Controller) Update(ctx context.Context, id string, in core.RecipeInput) (*core.Recipe, error) {
	if err := c.gate(id); err != nil {
		return nil, err
	}

	rec, err := gateway.Fetch[core.Recipe](ctx, c.gw, recipePath(id), gateway.Options{
		Method:    http.MethodPatch,
		Multipart: payload(in),
	})
	if err != nil {
		logrus.WithError(err).WithField("recipe_id", id).Warn("Failed to update recipe")
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	c.remember(rec)

	logrus.WithField("recipe_id", id).Info("Recipe updated")
	return &rec, nil
}

// Delete removes a recipe after confirm approves DeletePrompt. A declined or
// missing confirmation returns (false, nil) without touching the network.
func (c *Controller) Delete(ctx context.Context, id string, confirm Confirmer) (bool, error) {
	if err := c.gate(id); err != nil {
		return false, err
	}
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		logrus.WithField("recipe_id", id).Debug("Delete not confirmed")
		return false, nil
	}

	if _, err := c.gw.Request(ctx, recipePath(id), gateway.Options{Method: http.MethodDelete}); err != nil {
		logrus.WithError(err).WithField("recipe_id", id).Warn("Failed to delete recipe")
		return false, err
	}

	c.mu.Lock()
	delete(c.authors, id)
	c.mu.Unlock()

	logrus.WithField("recipe_id", id).Info("Recipe deleted")
	return true, nil
}

// LoadForEdit fetches a recipe and applies the ownership gate once the fetch
// has completed. Only the owner gets StateReady with the form filled in.
func (c *Controller) LoadForEdit(ctx context.Context, id string) EditView {
	rec, err := c.Get(ctx, id)
	if err != nil {
		return failedEditView(err, "Failed to load recipe")
	}
	if !c.CanMutate(rec) {
		logrus.WithField("recipe_id", id).Warn("Edit refused: not the author")
		return EditView{State: StateForbidden, Message: ForbiddenMessage}
	}
	return EditView{
		State:    StateReady,
		Recipe:   rec,
		Form:     rec.ToInput(),
		ImageURL: rec.ImageURL,
	}
}

// CanMutate reports whether the current user authored rec. Anonymous users
// and recipes without an author never qualify.
func (c *Controller) CanMutate(rec *core.Recipe) bool {
	if rec == nil || rec.AuthorID == "" || c.identity == nil {
		return false
	}
	uid, ok := c.identity.UserID()
	return ok && uid != "" && uid == rec.AuthorID
}

// gate refuses mutations of recipes last seen owned by someone else.
// Unknown recipes are left to the server to decide.
func (c *Controller) gate(id string) error {
	c.mu.Lock()
	author, known := c.authors[id]
	c.mu.Unlock()

	if !known {
		return nil
	}
	if !c.CanMutate(&core.Recipe{AuthorID: author}) {
		logrus.WithField("recipe_id", id).Warn("Mutation refused: not the author")
		return core.NewForbidden(ForbiddenMessage)
	}
	return nil
}

func (c *Controller) remember(list ...core.Recipe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range list {
		if r.ID != "" {
			c.authors[r.ID] = r.AuthorID
		}
	}
}

func recipePath(id string) string {
	return "/recipes/" + url.PathEscape(id)
}

// payload always builds a multipart body; the image part is added only when set.
func payload(in core.RecipeInput) *gateway.Multipart {
	return gateway.NewMultipart().
		Field("title", in.Title).
		Field("description", in.Description).
		Field("ingredients", in.Ingredients).
		Field("instructions", in.Instructions).
		Field("cuisine", in.Cuisine).
		File("image", in.Image)
}
