package submission

import (
	"errors"
	"fmt"

	"estimator/internal/utils"
	"estimator/pkg/types"
)

const (
	CustomerIDPrefix = "CUS-"
	EstimateIDPrefix = "EST-"

	DefaultMaxIDAttempts = 3
)

// IDFunc returns a fresh human readable identifier for prefix
type IDFunc func(prefix string) string

// insertWithRetry calls insert with freshly generated ids until it stops
// reporting types.ErrDuplicateID or attempts run out.
func insertWithRetry(newID IDFunc, prefix string, attempts int, insert func(id string) error) (string, error) {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for range attempts {
		id := newID(prefix)
		err = insert(id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, types.ErrDuplicateID) {
			return "", err
		}
	}

	return "", fmt.Errorf("no unique %s id after %d attempts: %w", prefix, attempts, err)
}

func defaultIDFunc(prefix string) string {
	return utils.HumanID(prefix)
}
