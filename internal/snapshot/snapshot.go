package snapshot

import (
	"context"
	goerrors "errors"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
)

// Save stores the table of projectID
func Save(ctx context.Context, cache Cache, projectID string, store *table.Store) error {
	data, err := store.Marshal(projectID)
	if err != nil {
		return err
	}
	sealed, err := Seal(data)
	if err != nil {
		return err
	}
	return cache.Put(ctx, TableKey(projectID), sealed)
}

// Restore returns the stored table of projectID. With no snapshot it returns
// ErrSnapshotNotFound. A corrupt snapshot is deleted and reported as
// ErrSnapshotCorrupt; callers then start from an empty table.
func Restore(ctx context.Context, cache Cache, projectID string) (*table.Store, error) {
	key := TableKey(projectID)
	sealed, err := cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	store, err := decodeTable(sealed)
	if err != nil {
		logger.LogWarn("Discarding corrupt table snapshot", map[string]interface{}{
			"project": projectID,
			"error":   err.Error(),
		})
		if delErr := cache.Delete(ctx, key); delErr != nil {
			logger.LogWarn("Failed to delete corrupt snapshot", map[string]interface{}{"error": delErr.Error()})
		}
		return nil, err
	}
	return store, nil
}

func decodeTable(sealed []byte) (*table.Store, error) {
	data, err := Open(sealed)
	if err != nil {
		return nil, err
	}
	store, _, err := table.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotCorrupt, err.Error())
	}
	return store, nil
}

// Discard removes the stored table of projectID
func Discard(ctx context.Context, cache Cache, projectID string) error {
	return cache.Delete(ctx, TableKey(projectID))
}

// SaveToken remembers the API token
func SaveToken(ctx context.Context, cache Cache, token string) error {
	sealed, err := Seal([]byte(strings.TrimSpace(token)))
	if err != nil {
		return err
	}
	return cache.Put(ctx, TokenKey, sealed)
}

// LoadToken returns the remembered API token, or "" when none is stored
func LoadToken(ctx context.Context, cache Cache) (string, error) {
	sealed, err := cache.Get(ctx, TokenKey)
	if goerrors.Is(err, errors.ErrSnapshotNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	data, err := Open(sealed)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
