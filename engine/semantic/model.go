package semantic

import (
	"fmt"

	"github.com/google/uuid"
)

// PointID derives the deterministic Qdrant point ID for a chunk. The same
// resource and chunk index always map to the same UUID, so re-embedding a
// resource overwrites its points in place instead of duplicating them.
func PointID(resourceID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", resourceID, chunkIndex))).String()
}
