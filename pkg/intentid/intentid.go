// Package intentid derives stable idempotency tokens from workflow execution
// context. The same (execution id, item index, operation) triple always maps
// to the same token, across retries and process restarts, so the remote
// service can recognize a resubmitted spend as the same intent.
package intentid

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Unit separator: cannot occur in workflow identifiers, so distinct triples
// never concatenate to the same hash input.
const sep = "\x1f"

// Derive maps execution context to a UUID-formatted token. Pure: no clock,
// no randomness, no state. itemIndex must be non-negative.
func Derive(executionID string, itemIndex int, operation string) (string, error) {
	if itemIndex < 0 {
		return "", fmt.Errorf("intentid: item index must be non-negative, got %d", itemIndex)
	}

	digest := sha256.Sum256([]byte(executionID + sep + strconv.Itoa(itemIndex) + sep + operation))

	id, err := uuid.FromBytes(digest[:16])
	if err != nil {
		return "", fmt.Errorf("intentid: format digest: %w", err)
	}
	return id.String(), nil
}
