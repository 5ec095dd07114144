package catalog

import (
	"context"
	"fmt"
	"strings"

	"watchlog/pkg/models"
)

// SuggestLimit caps the catalog search behind Suggest.
const SuggestLimit = 20

// Suggest looks up catalog entries whose title contains the series key and
// drops the ones whose title is already registered. Matching of registered
// names ignores case and surrounding space.
func Suggest(ctx context.Context, repo *Repo, key string, registered []string) ([]models.CatalogEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return []models.CatalogEntry{}, nil
	}

	entries, err := repo.List(ctx, ListQuery{Q: key, Limit: SuggestLimit})
	if err != nil {
		return nil, fmt.Errorf("suggest %q: %w", key, err)
	}

	have := make(map[string]struct{}, len(registered))
	for _, name := range registered {
		have[fold(name)] = struct{}{}
	}

	out := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := have[fold(e.Title)]; ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
