// Package recipes resolves recipe ids to ingredient lists across the three
// recipe sources: the external recipe API, editorial recipes and user
// recipes. Each source has its own record shape and its own normalization
// into core.Ingredient.
package recipes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"smartplates/internal/core"
	"smartplates/internal/spoonacular"
	"smartplates/internal/store"
)

type Kind string

const (
	KindExternal  Kind = "external"
	KindEditorial Kind = "editorial"
	KindUser      Kind = "user"
)

// Source looks a recipe up in one backing store. Unknown ids return an
// error wrapping core.ErrNotFound.
type Source interface {
	Kind() Kind
	Lookup(ctx context.Context, id string) (core.RecipeIngredients, error)
}

// ExternalClient is the part of the external API client the source uses.
type ExternalClient interface {
	Recipe(ctx context.Context, id int) (spoonacular.Recipe, error)
}

// ExternalSource serves ids of the form "spoonacular-<n>", "ext-<n>" or a
// bare number.
type ExternalSource struct {
	client ExternalClient
}

func NewExternalSource(client ExternalClient) *ExternalSource {
	return &ExternalSource{client: client}
}

func (s *ExternalSource) Kind() Kind { return KindExternal }

// ParseExternalID extracts the numeric API id from a recipe id.
func ParseExternalID(id string) (int, bool) {
	id = strings.TrimSpace(id)
	for _, prefix := range []string{"spoonacular-", "ext-"} {
		if strings.HasPrefix(id, prefix) {
			id = strings.TrimPrefix(id, prefix)
			break
		}
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *ExternalSource) Lookup(ctx context.Context, id string) (core.RecipeIngredients, error) {
	n, ok := ParseExternalID(id)
	if !ok {
		return core.RecipeIngredients{}, fmt.Errorf("external recipe %s: %w", id, core.ErrNotFound)
	}
	r, err := s.client.Recipe(ctx, n)
	if err != nil {
		return core.RecipeIngredients{}, err
	}
	out := core.RecipeIngredients{RecipeID: id, Title: r.Title, Source: string(KindExternal)}
	for _, ing := range r.ExtendedIngredients {
		name := ing.NameClean
		if name == "" {
			name = ing.Name
		}
		out.Ingredients = append(out.Ingredients, core.Ingredient{
			Name:     name,
			Amount:   ing.Amount,
			Unit:     ing.Unit,
			Category: aisleCategory(ing.Aisle),
		})
	}
	return out, nil
}

// aisleCategory keeps the first aisle of a "A;B" aisle list.
func aisleCategory(aisle string) string {
	aisle, _, _ = strings.Cut(aisle, ";")
	aisle = strings.TrimSpace(aisle)
	if aisle == "" || strings.EqualFold(aisle, "?") {
		return ""
	}
	return aisle
}

type EditorialSource struct {
	repo store.EditorialRecipeReader
}

func NewEditorialSource(repo store.EditorialRecipeReader) *EditorialSource {
	return &EditorialSource{repo: repo}
}

func (s *EditorialSource) Kind() Kind { return KindEditorial }

func (s *EditorialSource) Lookup(ctx context.Context, id string) (core.RecipeIngredients, error) {
	r, err := s.repo.GetEditorialRecipe(ctx, id)
	if err != nil {
		return core.RecipeIngredients{}, err
	}
	out := core.RecipeIngredients{RecipeID: id, Title: r.Title, Source: string(KindEditorial)}
	for _, ing := range r.Ingredients {
		out.Ingredients = append(out.Ingredients, core.Ingredient{
			Name:     ing.Name,
			Amount:   ing.Quantity,
			Unit:     ing.Unit,
			Category: ing.Category,
		})
	}
	return out, nil
}

type UserSource struct {
	repo store.UserRecipeReader
}

func NewUserSource(repo store.UserRecipeReader) *UserSource {
	return &UserSource{repo: repo}
}

func (s *UserSource) Kind() Kind { return KindUser }

func (s *UserSource) Lookup(ctx context.Context, id string) (core.RecipeIngredients, error) {
	r, err := s.repo.GetUserRecipe(ctx, id)
	if err != nil {
		return core.RecipeIngredients{}, err
	}
	out := core.RecipeIngredients{RecipeID: id, Title: r.Title, Source: string(KindUser)}
	for _, line := range r.IngredientLines {
		if ing, ok := ParseIngredientLine(line); ok {
			out.Ingredients = append(out.Ingredients, ing)
		}
	}
	return out, nil
}
