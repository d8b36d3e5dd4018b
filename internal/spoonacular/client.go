// Package spoonacular is a small client for the Spoonacular recipe API,
// limited to the recipe information endpoint the grocery aggregator needs.
package spoonacular

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"smartplates/internal/cache"
	"smartplates/internal/core"
)

const DefaultBaseURL = "https://api.spoonacular.com"

type Ingredient struct {
	ID        int     `json:"id"`
	Aisle     string  `json:"aisle"`
	Name      string  `json:"name"`
	NameClean string  `json:"nameClean"`
	Original  string  `json:"original"`
	Amount    float64 `json:"amount"`
	Unit      string  `json:"unit"`
}

type Recipe struct {
	ID                  int          `json:"id"`
	Title               string       `json:"title"`
	Image               string       `json:"image"`
	Servings            int          `json:"servings"`
	ExtendedIngredients []Ingredient `json:"extendedIngredients"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      cache.Cache[Recipe]
	logger     *slog.Logger
}

type Option func(*Client)

// WithCache puts a recipe cache in front of the API.
func WithCache(c cache.Cache[Recipe]) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.httpClient = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Recipe loads recipe information by numeric id. Unknown recipes return
// core.ErrNotFound.
func (c *Client) Recipe(ctx context.Context, id int) (Recipe, error) {
	key := strconv.Itoa(id)
	if c.cache != nil {
		if r, ok := c.cache.Get(ctx, key); ok {
			return r, nil
		}
	}

	q := url.Values{}
	q.Set("includeNutrition", "false")
	endpoint := fmt.Sprintf("%s/recipes/%d/information?%s", c.baseURL, id, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Recipe{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// transport errors quote the URL, so the key must stay out of it
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Recipe{}, fmt.Errorf("get recipe %d: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Recipe{}, fmt.Errorf("recipe %d: %w", id, core.ErrNotFound)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Recipe{}, fmt.Errorf("get recipe %d: unexpected status %d: %s", id, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var r Recipe
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Recipe{}, fmt.Errorf("decode recipe %d: %w", id, err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, r)
	}
	c.logger.DebugContext(ctx, "Fetched external recipe", "recipe_id", id, "ingredients", len(r.ExtendedIngredients))
	return r, nil
}
