package mockapi

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const maxUploadSize = 5 << 20

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))

	s.mu.RLock()
	out := make([]recipe, 0, len(s.order))
	for _, id := range s.order {
		rec := s.recipes[id]
		if search != "" && !strings.Contains(strings.ToLower(rec.Title), search) {
			continue
		}
		out = append(out, *rec)
	}
	s.mu.RUnlock()

	newestFirst(out)
	render.JSON(w, r, out)
}

func (s *Server) handleMyRecipes(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r)

	s.mu.RLock()
	out := make([]recipe, 0)
	for _, id := range s.order {
		if rec := s.recipes[id]; rec.AuthorID == claims.Subject {
			out = append(out, *rec)
		}
	}
	s.mu.RUnlock()

	newestFirst(out)
	render.JSON(w, r, out)
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	rec, ok := s.recipes[id]
	var out recipe
	if ok {
		out = *rec
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, r, http.StatusNotFound, "Recipe not found")
		return
	}
	render.JSON(w, r, out)
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "Expected multipart form data")
		return
	}

	var problems []string
	for _, field := range []string{"title", "ingredients", "instructions"} {
		if strings.TrimSpace(r.FormValue(field)) == "" {
			problems = append(problems, field+" should not be empty")
		}
	}
	if len(problems) > 0 {
		writeErrors(w, r, http.StatusBadRequest, problems)
		return
	}

	rec := &recipe{
		ID:        ulid.Make().String(),
		AuthorID:  claims.Subject,
		CreatedAt: s.now().UTC(),
	}
	applyForm(rec, r)

	if err := s.storeImage(rec, r); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.recipes[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"recipe_id": rec.ID, "author_id": rec.AuthorID}).Debug("mockapi: recipe created")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"id": rec.ID})
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r)
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "Expected multipart form data")
		return
	}

	s.mu.RLock()
	rec, ok := s.recipes[id]
	s.mu.RUnlock()

	if !ok {
		writeError(w, r, http.StatusNotFound, "Recipe not found")
		return
	}
	if rec.AuthorID != claims.Subject {
		writeError(w, r, http.StatusForbidden, "You can only edit your own recipes")
		return
	}

	updated := *rec
	applyForm(&updated, r)
	if err := s.storeImage(&updated, r); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.recipes[id] = &updated
	s.mu.Unlock()

	render.JSON(w, r, updated)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r)
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recipes[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Recipe not found")
		return
	}
	if rec.AuthorID != claims.Subject {
		writeError(w, r, http.StatusForbidden, "You can only delete your own recipes")
		return
	}

	delete(s.recipes, id)
	delete(s.ratings, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	up, ok := s.uploads[chi.URLParam(r, "id")]
	s.mu.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", up.contentType)
	w.Write(up.data)
}

// applyForm copies the text fields present in the form. Optional fields sent
// empty are stored as null.
func applyForm(rec *recipe, r *http.Request) {
	if v, ok := formValue(r, "title"); ok {
		rec.Title = v
	}
	if v, ok := formValue(r, "ingredients"); ok {
		rec.Ingredients = v
	}
	if v, ok := formValue(r, "instructions"); ok {
		rec.Instructions = v
	}
	if v, ok := formValue(r, "description"); ok {
		rec.Description = nullable(v)
	}
	if v, ok := formValue(r, "cuisine"); ok {
		rec.Cuisine = nullable(v)
	}
}

func (s *Server) storeImage(rec *recipe, r *http.Request) error {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return nil
	}
	if err != nil {
		return fmt.Errorf("Invalid image upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("Invalid image upload")
	}

	uploadID := ulid.Make().String()
	s.mu.Lock()
	s.uploads[uploadID] = upload{contentType: header.Header.Get("Content-Type"), data: data}
	s.mu.Unlock()

	url := "/uploads/" + uploadID
	rec.ImageURL = &url
	return nil
}

func formValue(r *http.Request, key string) (string, bool) {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func nullable(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func newestFirst(list []recipe) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
