package repository

import (
	"context"
	"time"
)

// SeenRepository remembers which permalinks were already submitted as leads
// for a keyword. The same message matched by another keyword is not seen.
type SeenRepository interface {
	// MarkSeen records a keyword match with a specific expiry time.
	MarkSeen(ctx context.Context, keyword, permalink string, expiry time.Duration) error
	// IsSeen checks whether the keyword match was submitted recently.
	IsSeen(ctx context.Context, keyword, permalink string) (bool, error)
}
