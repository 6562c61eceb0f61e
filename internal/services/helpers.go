package services

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/lylaw27/glaze-store/internal/platform/pagination"
	"github.com/lylaw27/glaze-store/internal/repositories"
)

// EventLogger is the structured logging hook injected into services.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

func nopLogger(context.Context, string, map[string]any) {}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func defaultIDGenerator() string {
	return ulid.Make().String()
}

func prefixedID(prefix string, gen func() string) string {
	return prefix + gen()
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// MaxLineQuantity bounds a single product's quantity in a cart or order, after merging repeated lines.
// It stays well inside the INTEGER stock column.
const MaxLineQuantity = 100_000

// mergeLines trims product ids and sums quantities of repeated products, keeping first-seen order.
// The returned id is non-empty when a merged quantity exceeds MaxLineQuantity.
func mergeLines(lines []CartLine) ([]CartLine, string) {
	merged := make([]CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if line.Quantity > MaxLineQuantity {
			return nil, id
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += line.Quantity
			if merged[i].Quantity > MaxLineQuantity {
				return nil, id
			}
			continue
		}
		index[id] = len(merged)
		merged = append(merged, CartLine{ProductID: id, Quantity: line.Quantity})
	}
	return merged, ""
}

func uniqueProductIDs(lines []CartLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func uniqueTrimmed(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

var errInvalidPageToken = pagination.ErrInvalidPageToken
