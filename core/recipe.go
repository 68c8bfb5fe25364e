package core

import (
	"context"
	"time"
)

type (
	// Recipe is a catalog entry as served by the remote API.
	// AuthorID is the only field consulted for ownership.
	Recipe struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		Description  string    `json:"description,omitempty"`
		Ingredients  string    `json:"ingredients"`
		Instructions string    `json:"instructions"`
		Cuisine      string    `json:"cuisine,omitempty"`
		AuthorID     string    `json:"authorId,omitempty"`
		ImageURL     string    `json:"imageUrl,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Image is a binary attachment sent alongside recipe fields.
	Image struct {
		Filename    string
		ContentType string
		Data        []byte
	}

	// RecipeInput carries the editable recipe fields for create and update.
	RecipeInput struct {
		Title        string
		Description  string
		Ingredients  string
		Instructions string
		Cuisine      string
		Image        *Image
	}

	// RatingSummary is the server-computed aggregate for one recipe.
	// Average is nil while nobody has rated it yet.
	RatingSummary struct {
		Average    *float64 `json:"average"`
		Count      int      `json:"count"`
		UserRating *int     `json:"userRating,omitempty"`
	}

	// RatingSubmission is the body of POST /ratings.
	RatingSubmission struct {
		RecipeID string `json:"recipeId"`
		Rating   int    `json:"rating"`
	}

	// CreatedRecipe is the body returned by POST /recipes.
	CreatedRecipe struct {
		ID string `json:"id"`
	}

	// TokenStore holds the single persisted access token.
	// Implementations treat the token as an opaque string.
	TokenStore interface {
		// Get returns the stored token; ok is false when the slot is empty.
		Get(ctx context.Context) (token string, ok bool, err error)

		// Set replaces the stored token.
		Set(ctx context.Context, token string) error

		// Clear empties the slot. Clearing an empty slot is not an error.
		Clear(ctx context.Context) error
	}
)

// TokenKey is the well-known key the token is persisted under.
const TokenKey = "token"

// MinRating and MaxRating bound a rating submission.
const (
	MinRating = 1
	MaxRating = 5
)

// ToInput returns the editable fields of r, without an image.
func (r *Recipe) ToInput() RecipeInput {
	return RecipeInput{
		Title:        r.Title,
		Description:  r.Description,
		Ingredients:  r.Ingredients,
		Instructions: r.Instructions,
		Cuisine:      r.Cuisine,
	}
}
