package mockapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type (
	rateRequest struct {
		RecipeID string `json:"recipeId"`
		Rating   *int   `json:"rating"`
	}

	ratingSummary struct {
		Average    *float64 `json:"average"`
		Count      int      `json:"count"`
		UserRating *int     `json:"userRating,omitempty"`
	}
)

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r)

	var in rateRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	var problems []string
	if in.RecipeID == "" {
		problems = append(problems, "recipeId should not be empty")
	}
	switch {
	case in.Rating == nil:
		problems = append(problems, "rating must be an integer number")
	case *in.Rating < 1:
		problems = append(problems, "rating must not be less than 1")
	case *in.Rating > 5:
		problems = append(problems, "rating must not be greater than 5")
	}
	if len(problems) > 0 {
		writeErrors(w, r, http.StatusBadRequest, problems)
		return
	}

	s.mu.Lock()
	if _, ok := s.recipes[in.RecipeID]; !ok {
		s.mu.Unlock()
		writeError(w, r, http.StatusNotFound, "Recipe not found")
		return
	}
	byUser := s.ratings[in.RecipeID]
	if byUser == nil {
		byUser = make(map[string]int)
		s.ratings[in.RecipeID] = byUser
	}
	// One live rating per (user, recipe): a second submission replaces the first.
	byUser[claims.Subject] = *in.Rating
	summary := s.summaryLocked(in.RecipeID, claims.Subject)
	s.mu.Unlock()

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, summary)
}

func (s *Server) handleRatingSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var userID string
	if claims, ok := claimsFrom(r); ok {
		userID = claims.Subject
	}

	s.mu.RLock()
	_, exists := s.recipes[id]
	summary := s.summaryLocked(id, userID)
	s.mu.RUnlock()

	if !exists {
		writeError(w, r, http.StatusNotFound, "Recipe not found")
		return
	}
	render.JSON(w, r, summary)
}

func (s *Server) summaryLocked(recipeID, userID string) ratingSummary {
	byUser := s.ratings[recipeID]
	out := ratingSummary{Count: len(byUser)}
	if len(byUser) > 0 {
		total := 0
		for _, v := range byUser {
			total += v
		}
		avg := float64(total) / float64(len(byUser))
		out.Average = &avg
	}
	if v, ok := byUser[userID]; ok && userID != "" {
		rating := v
		out.UserRating = &rating
	}
	return out
}

// SetRatings replaces every rating of a recipe; keys are user ids. Used to
// seed aggregates in tests.
func (s *Server) SetRatings(recipeID string, byUser map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]int, len(byUser))
	for k, v := range byUser {
		copied[k] = v
	}
	s.ratings[recipeID] = copied
}
