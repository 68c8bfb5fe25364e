package recipes

import (
	"errors"
	"flavorai-client/core"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Preview is a temporary on-disk copy of a selected image. It must be
// released once the selection is replaced or the editor is closed.
type Preview struct {
	path string
	once sync.Once
	err  error
}

// NewPreview writes img to a temporary file.
func NewPreview(img *core.Image) (*Preview, error) {
	f, err := os.CreateTemp("", "flavorai-preview-*"+filepath.Ext(img.Filename))
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return &Preview{path: f.Name()}, nil
}

// Path is the location of the preview file.
func (p *Preview) Path() string {
	return p.path
}

// Release removes the file. Only the first call does any work.
func (p *Preview) Release() error {
	p.once.Do(func() {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.err = err
			logrus.WithError(err).WithField("path", p.path).Warn("Failed to remove image preview")
		}
	})
	return p.err
}

// Editor holds the form of a recipe being created or edited together with the
// preview of the selected image.
type Editor struct {
	mu          sync.Mutex
	form        core.RecipeInput
	existingURL string
	preview     *Preview
	closed      bool
}

// NewEditor starts an editor from a loaded EditView. Use the zero EditView
// for a new recipe.
func NewEditor(view EditView) *Editor {
	return &Editor{form: view.Form, existingURL: view.ImageURL}
}

// SetForm replaces the text fields, keeping the selected image.
func (e *Editor) SetForm(in core.RecipeInput) {
	e.mu.Lock()
	defer e.mu.Unlock()
	img := e.form.Image
	e.form = in
	e.form.Image = img
}

// SetImage selects img, releasing the previous preview first. A nil img
// reverts to the recipe's stored image.
func (e *Editor) SetImage(img *core.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("recipes: editor closed")
	}

	if e.preview != nil {
		e.preview.Release()
		e.preview = nil
	}
	e.form.Image = nil
	if img == nil {
		return nil
	}

	p, err := NewPreview(img)
	if err != nil {
		return err
	}
	e.preview = p
	e.form.Image = img
	return nil
}

// PreviewLocation returns the selected image's preview path, or the stored
// image URL when nothing new is selected.
func (e *Editor) PreviewLocation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.preview != nil {
		return e.preview.Path()
	}
	return e.existingURL
}

// Input returns the payload to submit.
func (e *Editor) Input() core.RecipeInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form
}

// Close releases the current preview.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.preview == nil {
		return nil
	}
	err := e.preview.Release()
	e.preview = nil
	return err
}
