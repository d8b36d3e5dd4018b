package recipes

import (
	"context"
	"errors"
	"log/slog"

	"smartplates/internal/core"
)

// Resolver probes sources in priority order. The first source returning a
// non-empty ingredient list wins. A recipe no source knows resolves to an
// empty result; source failures are logged and the next source is tried.
type Resolver struct {
	sources []Source
	logger  *slog.Logger
}

func NewResolver(logger *slog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{sources: sources, logger: logger}
}

// Fetch implements grocery.Fetcher. It returns an error only when every
// source that failed did so with something other than not-found and none
// produced ingredients.
func (r *Resolver) Fetch(ctx context.Context, recipeID string) (core.RecipeIngredients, error) {
	var lastErr error
	var fallback core.RecipeIngredients

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return core.RecipeIngredients{}, err
		}
		res, err := src.Lookup(ctx, recipeID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			continue
		case err != nil:
			r.logger.WarnContext(ctx, "Recipe source lookup failed",
				"source", src.Kind(), "recipe_id", recipeID, "error", err)
			lastErr = err
			continue
		}
		if len(res.Ingredients) > 0 {
			return res, nil
		}
		// Remember the title of an empty hit in case nothing better turns up.
		if fallback.Title == "" {
			fallback = res
		}
	}

	if lastErr != nil && fallback.Title == "" {
		return core.RecipeIngredients{}, lastErr
	}
	fallback.RecipeID = recipeID
	return fallback, nil
}
