package cli

import (
	"context"
	"flag"
	"flavorai-client/core"
	"flavorai-client/ratings"
	"flavorai-client/recipes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

func runList(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("list", a.out)
	search := fs.String("search", "", "Only recipes matching this term")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	list, err := a.Recipes.List(ctx, *search)
	if err != nil {
		return err
	}
	a.printRecipes(list, "No recipes found.")
	return nil
}

func runMine(ctx context.Context, a *App, args []string) error {
	if err := a.requireSignIn("see your recipes"); err != nil {
		return err
	}
	list, err := a.Recipes.Mine(ctx)
	if err != nil {
		return err
	}
	a.printRecipes(list, "You have not created any recipes yet.")
	return nil
}

func (a *App) printRecipes(list []core.Recipe, empty string) {
	if len(list) == 0 {
		a.printf("%s\n", empty)
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCUISINE\tADDED")
	for _, r := range list {
		cuisine := r.Cuisine
		if cuisine == "" {
			cuisine = "-"
		}
		added := "-"
		if !r.CreatedAt.IsZero() {
			added = humanize.Time(r.CreatedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Title, cuisine, added)
	}
	tw.Flush()
}

func runShow(ctx context.Context, a *App, args []string) error {
	pos, err := parseArgs(newFlagSet("show", a.out), args)
	if err != nil {
		return err
	}
	if err := requireArgs("show", pos, 1); err != nil {
		return err
	}

	view := a.Recipes.Detail(pos[0])
	defer view.Close()
	view.Load(ctx)
	snap := view.Snapshot()
	if err := stateError(snap.State, snap.Message); err != nil {
		return err
	}

	widget := ratings.NewWidget(a.Gateway, pos[0])
	defer widget.Close()
	widget.Load(ctx)

	a.printRecipe(snap.Recipe, snap.IsOwner, widget)
	return nil
}

func (a *App) printRecipe(r *core.Recipe, isOwner bool, widget *ratings.Widget) {
	a.printf("%s\n", r.Title)
	if r.Cuisine != "" {
		a.printf("Cuisine: %s\n", r.Cuisine)
	}
	if !r.CreatedAt.IsZero() {
		a.printf("Added %s\n", humanize.Time(r.CreatedAt))
	}
	if r.Description != "" {
		a.printf("\n%s\n", r.Description)
	}
	if r.ImageURL != "" {
		a.printf("Image: %s\n", a.absoluteURL(r.ImageURL))
	}

	a.printf("\nIngredients\n")
	for _, line := range recipes.Lines(r.Ingredients) {
		a.printf("  - %s\n", line)
	}
	a.printf("\nInstructions\n")
	for i, line := range recipes.Lines(r.Instructions) {
		a.printf("  %d. %s\n", i+1, line)
	}

	a.printf("\n")
	a.printRating(widget)
	if isOwner {
		a.printf("You created this recipe: edit %[1]s | delete %[1]s\n", r.ID)
	}
}

// absoluteURL resolves server-relative upload paths against the API root.
func (a *App) absoluteURL(u string) string {
	if strings.HasPrefix(u, "/") {
		return a.Gateway.BaseURL() + u
	}
	return u
}

func (a *App) printRating(w *ratings.Widget) {
	s := w.Summary()
	a.printf("Rating: %s (%s ratings)", w.AverageLabel(), w.CountLabel())
	if s.UserRating != nil {
		a.printf(", your rating: %d", *s.UserRating)
	}
	a.printf("\n")
}

// recipeFlags registers the editable recipe fields on fs.
type recipeFlags struct {
	fs          *flag.FlagSet
	title       *string
	description *string
	cuisine     *string
	image       *string
	ingredients lines
	steps       lines
}

func newRecipeFlags(fs *flag.FlagSet) *recipeFlags {
	f := &recipeFlags{
		fs:          fs,
		title:       fs.String("title", "", "Recipe title"),
		description: fs.String("description", "", "Short description"),
		cuisine:     fs.String("cuisine", "", "Cuisine, e.g. Italian"),
		image:       fs.String("image", "", "Path to an image file"),
	}
	fs.Var(&f.ingredients, "ingredient", "Ingredient line (repeatable)")
	fs.Var(&f.steps, "step", "Instruction step (repeatable)")
	return f
}

// apply copies the flags that were given on the command line onto in.
func (f *recipeFlags) apply(in *core.RecipeInput) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "title":
			in.Title = *f.title
		case "description":
			in.Description = *f.description
		case "cuisine":
			in.Cuisine = *f.cuisine
		case "ingredient":
			in.Ingredients = f.ingredients.String()
		case "step":
			in.Instructions = f.steps.String()
		}
	})
}

func runCreate(ctx context.Context, a *App, args []string) error {
	if err := a.requireSignIn("create recipes"); err != nil {
		return err
	}
	fs := newFlagSet("create", a.out)
	rf := newRecipeFlags(fs)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	editor := recipes.NewEditor(recipes.EditView{})
	defer editor.Close()
	in := editor.Input()
	rf.apply(&in)
	editor.SetForm(in)
	if err := a.selectImage(editor, *rf.image); err != nil {
		return err
	}

	id, err := a.Recipes.Create(ctx, editor.Input())
	if err != nil {
		return err
	}
	a.printf("Created recipe %s\n", id)
	return nil
}

func runEdit(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("edit", a.out)
	rf := newRecipeFlags(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs("edit", pos, 1); err != nil {
		return err
	}

	view := a.Recipes.LoadForEdit(ctx, pos[0])
	if err := stateError(view.State, view.Message); err != nil {
		return err
	}

	editor := recipes.NewEditor(view)
	defer editor.Close()
	in := editor.Input()
	rf.apply(&in)
	editor.SetForm(in)
	if err := a.selectImage(editor, *rf.image); err != nil {
		return err
	}

	updated, err := a.Recipes.Update(ctx, pos[0], editor.Input())
	if err != nil {
		return err
	}
	a.printf("Saved %s\n", updated.Title)
	return nil
}

func (a *App) selectImage(editor *recipes.Editor, path string) error {
	if path == "" {
		return nil
	}
	img, err := loadImage(path)
	if err != nil {
		return err
	}
	if err := editor.SetImage(img); err != nil {
		return err
	}
	a.printf("Image preview: %s\n", editor.PreviewLocation())
	return nil
}

func loadImage(path string) (*core.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewValidation(fmt.Sprintf("Cannot read image: %v", err))
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, core.NewValidation(fmt.Sprintf("%s is not an image (%s)", filepath.Base(path), mt.String()))
	}
	return &core.Image{
		Filename:    filepath.Base(path),
		ContentType: mt.String(),
		Data:        data,
	}, nil
}

func runDelete(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("delete", a.out)
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs("delete", pos, 1); err != nil {
		return err
	}

	view := a.Recipes.Detail(pos[0])
	defer view.Close()
	view.Load(ctx)
	snap := view.Snapshot()
	if err := stateError(snap.State, snap.Message); err != nil {
		return err
	}
	var confirm recipes.Confirmer = recipes.ConfirmFunc(a.confirm)
	if *yes {
		confirm = recipes.ConfirmFunc(func(string) bool { return true })
	}
	deleted, err := view.Delete(ctx, confirm)
	if err != nil {
		return err
	}
	if !deleted {
		a.printf("Cancelled.\n")
		return nil
	}

	a.printf("Deleted %q.\n\n", snap.Recipe.Title)
	if view.Snapshot().Next == recipes.RouteListing {
		return runList(ctx, a, nil)
	}
	return nil
}

func runRate(ctx context.Context, a *App, args []string) error {
	pos, err := parseArgs(newFlagSet("rate", a.out), args)
	if err != nil {
		return err
	}
	if err := requireArgs("rate", pos, 2); err != nil {
		return err
	}
	value, err := strconv.Atoi(pos[1])
	if err != nil {
		return core.NewValidation(fmt.Sprintf("Rating must be a number between %d and %d", core.MinRating, core.MaxRating))
	}
	if err := a.requireSignIn("rate recipes"); err != nil {
		return err
	}

	widget := ratings.NewWidget(a.Gateway, pos[0])
	defer widget.Close()
	if err := widget.Rate(ctx, value); err != nil {
		return err
	}
	a.printf("Thanks for rating!\n")
	a.printRating(widget)
	return nil
}

// stateError converts a non-ready view state to an error.
func stateError(state recipes.ViewState, message string) error {
	switch state {
	case recipes.StateReady:
		return nil
	case recipes.StateForbidden:
		return core.NewForbidden(message)
	case recipes.StateNotFound:
		return core.NewNotFound(0, message)
	default:
		return core.NewAPI(0, message)
	}
}

// lines collects a repeatable flag into newline-separated text.
type lines []string

func (l *lines) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, "\n")
}

func (l *lines) Set(v string) error {
	*l = append(*l, v)
	return nil
}
