package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/lead-scraper/pkg/utils"
)

const seenPermalinkPrefix = "leadscraper:seen:"

// SeenRepoImpl implements repository.SeenRepository with expiring Redis keys.
type SeenRepoImpl struct {
	client redis.Cmdable
}

// NewSeenRepo creates a new instance of SeenRepoImpl.
func NewSeenRepo(client redis.Cmdable) *SeenRepoImpl {
	return &SeenRepoImpl{client: client}
}

// generateKey creates a consistent Redis key for a keyword match by hashing
// the permalink. Keywords compare case-insensitively.
func (r *SeenRepoImpl) generateKey(keyword, permalink string) string {
	return fmt.Sprintf("%s%s:%s", seenPermalinkPrefix, utils.HashURL(permalink), strings.ToLower(strings.TrimSpace(keyword)))
}

// MarkSeen sets the keyword match key with an expiry.
func (r *SeenRepoImpl) MarkSeen(ctx context.Context, keyword, permalink string, expiry time.Duration) error {
	return r.client.SetEx(ctx, r.generateKey(keyword, permalink), "1", expiry).Err()
}

// IsSeen checks for the keyword match key.
func (r *SeenRepoImpl) IsSeen(ctx context.Context, keyword, permalink string) (bool, error) {
	val, err := r.client.Exists(ctx, r.generateKey(keyword, permalink)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// Ping checks the connection.
func (r *SeenRepoImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
