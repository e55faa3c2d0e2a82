package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/iho/ledgerbook/internal/domain"
)

const (
	// SyncNoticeChannel is the pub/sub channel downgrade notices go out on.
	SyncNoticeChannel = "ledgerbook:sync-notices"
	noticeHistorySize = 50
)

// SyncNotifier implements usecase.SyncNotifier. Notices are published for
// live subscribers and kept in a short per-account list for later reads.
type SyncNotifier struct {
	client *redis.Client
	prefix string
}

// NewSyncNotifier creates a new SyncNotifier.
func NewSyncNotifier(client *redis.Client) *SyncNotifier {
	return &SyncNotifier{
		client: client,
		prefix: "notices:",
	}
}

// NotifySyncDowngraded publishes a notice and records it for the account.
func (n *SyncNotifier) NotifySyncDowngraded(ctx context.Context, notice domain.SyncNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	key := n.prefix + notice.AccountID
	pipe := n.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, noticeHistorySize-1)
	pipe.Publish(ctx, SyncNoticeChannel, payload)
	_, err = pipe.Exec(ctx)

	return err
}

// RecentNotices returns the account's newest notices first.
func (n *SyncNotifier) RecentNotices(ctx context.Context, accountID string, limit int) ([]domain.SyncNotice, error) {
	if limit <= 0 || limit > noticeHistorySize {
		limit = noticeHistorySize
	}

	raw, err := n.client.LRange(ctx, n.prefix+accountID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	notices := make([]domain.SyncNotice, 0, len(raw))
	for _, item := range raw {
		var notice domain.SyncNotice
		if err := json.Unmarshal([]byte(item), &notice); err != nil {
			return nil, err
		}
		notices = append(notices, notice)
	}

	return notices, nil
}
