package recipes

import (
	"context"
	"flavorai-client/core"
	"sync"

	"github.com/sirupsen/logrus"
)

// ViewState is the transient state a recipe view renders.
type ViewState int

const (
	StateLoading ViewState = iota
	StateReady
	StateForbidden
	StateNotFound
	StateError
	// StateDeleted means the recipe is gone and the view must navigate away.
	StateDeleted
)

func (s ViewState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateForbidden:
		return "forbidden"
	case StateNotFound:
		return "not_found"
	case StateError:
		return "error"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Route names where the presentation layer should go next.
type Route int

const (
	RouteStay Route = iota
	RouteListing
)

// EditView is the outcome of loading a recipe for editing.
type EditView struct {
	State    ViewState
	Recipe   *core.Recipe
	Form     core.RecipeInput
	ImageURL string
	Message  string
}

func failedEditView(err error, fallback string) EditView {
	if core.Is(err, core.KindNotFound) {
		return EditView{State: StateNotFound, Message: "Recipe not found."}
	}
	return EditView{State: StateError, Message: core.Message(err, fallback)}
}

// DetailSnapshot is a consistent copy of a DetailView.
type DetailSnapshot struct {
	State    ViewState
	Recipe   *core.Recipe
	IsOwner  bool
	Deleting bool
	Message  string
	Next     Route
}

// DetailView shows one recipe and owns its delete flow. Results that arrive
// after Close or after a newer Load are dropped.
type DetailView struct {
	ctrl  *Controller
	id    string
	guard core.Guard

	mu       sync.Mutex
	state    ViewState
	recipe   *core.Recipe
	isOwner  bool
	deleting bool
	message  string
	next     Route
}

// Detail returns a view for recipe id in StateLoading.
func (c *Controller) Detail(id string) *DetailView {
	return &DetailView{ctrl: c, id: id}
}

// Load fetches the recipe. Errors are reflected in the view state.
func (v *DetailView) Load(ctx context.Context) {
	ticket := v.guard.Begin()
	v.mu.Lock()
	v.state = StateLoading
	v.message = ""
	v.mu.Unlock()

	rec, err := v.ctrl.Get(ctx, v.id)
	owner := err == nil && v.ctrl.CanMutate(rec)

	applied := ticket.Apply(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if err != nil {
			v.recipe = nil
			v.isOwner = false
			if core.Is(err, core.KindNotFound) {
				v.state = StateNotFound
				v.message = "Recipe not found."
			} else {
				v.state = StateError
				v.message = core.Message(err, "Failed to load recipe")
			}
			return
		}
		v.recipe = rec
		v.isOwner = owner
		v.state = StateReady
	})
	if !applied {
		logrus.WithField("recipe_id", v.id).Debug("Dropping stale recipe load")
	}
}

// Delete asks for confirmation and removes the recipe. On success the view
// drops the recipe and sets Next to RouteListing. Declining is a no-op. It
// is refused with a forbidden error unless the loaded recipe is owned by the
// viewer.
func (v *DetailView) Delete(ctx context.Context, confirm Confirmer) (bool, error) {
	v.mu.Lock()
	if v.deleting || v.state == StateDeleted {
		v.mu.Unlock()
		return false, nil
	}
	// Only a loaded recipe owned by the viewer may be deleted.
	if v.state != StateReady || !v.isOwner {
		v.mu.Unlock()
		return false, core.NewForbidden(DeleteForbiddenMessage)
	}
	v.deleting = true
	v.message = ""
	v.mu.Unlock()

	ticket := v.guard.Current()
	deleted, err := v.ctrl.Delete(ctx, v.id, confirm)

	ticket.Apply(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		switch {
		case err != nil:
			v.message = core.Message(err, "Failed to delete recipe")
		case deleted:
			v.recipe = nil
			v.isOwner = false
			v.state = StateDeleted
			v.next = RouteListing
		}
	})

	v.mu.Lock()
	v.deleting = false
	v.mu.Unlock()
	return deleted, err
}

// Snapshot returns the current view state.
func (v *DetailView) Snapshot() DetailSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	var rec *core.Recipe
	if v.recipe != nil {
		r := *v.recipe
		rec = &r
	}
	return DetailSnapshot{
		State:    v.state,
		Recipe:   rec,
		IsOwner:  v.isOwner,
		Deleting: v.deleting,
		Message:  v.message,
		Next:     v.next,
	}
}

// Close discards the view.
func (v *DetailView) Close() {
	v.guard.Close()
}
