package cache

import (
	"context"
	"log/slog"
	"time"
)

// Purger は期限切れの値を削除できるバックエンド。
type Purger interface {
	Purge() int
}

// PurgeAll は各バックエンドの期限切れの値を削除し、合計件数を返す。
func PurgeAll(purgers ...Purger) int {
	removed := 0
	for _, p := range purgers {
		removed += p.Purge()
	}
	return removed
}

// StartPurge は interval ごとに PurgeAll を実行するゴルーチンを開始する。
// ctx がキャンセルされると停止する。Redisは自身で期限切れを処理するため対象外。
func StartPurge(ctx context.Context, interval time.Duration, logger *slog.Logger, purgers ...Purger) {
	if interval <= 0 || len(purgers) == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if n := PurgeAll(purgers...); n > 0 {
					logger.Info("期限切れのキャッシュを削除しました",
						slog.Int("removed", n),
						slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
					)
				}
			}
		}
	}()
}
