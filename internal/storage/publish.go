package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/precountlive/precount/internal/projection"
	"github.com/precountlive/precount/internal/record"
)

// Keys names the two store entries a run writes.
type Keys struct {
	Records    string
	Projection string
}

// Publish writes the record set and the projection under their keys. The
// writes are independent: a failure of one does not prevent the other. A nil
// result leaves the projection key untouched. The returned error joins every
// failed write.
func Publish(ctx context.Context, store Store, keys Keys, set *record.Set, result *projection.Result) error {
	var errs []error

	if set != nil {
		if err := publish(ctx, store, keys.Records, set.Marshal); err != nil {
			errs = append(errs, err)
		}
	}
	if result != nil {
		if err := publish(ctx, store, keys.Projection, result.Marshal); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func publish(ctx context.Context, store Store, key string, marshal func() ([]byte, error)) error {
	data, err := marshal()
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if err := store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("publishing %s: %w", key, err)
	}
	return nil
}
