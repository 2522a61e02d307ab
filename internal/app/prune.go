package app

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/linkpreview/internal/infra/cache"
)

// StartCachePruner 按 cron 表达式 schedule 定期清理过期缓存；缓存禁用时返回 nil。
// 调用方负责 Stop 返回的调度器。
func StartCachePruner(store *cache.Store, schedule string, log zerolog.Logger) (*cron.Cron, error) {
	if !store.Enabled() || store.TTL <= 0 {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() { pruneOnce(store, log) })
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Debug().Str("schedule", schedule).Str("root", store.Root).Msg("Started cache pruner")
	return c, nil
}

func pruneOnce(store *cache.Store, log zerolog.Logger) {
	n, err := store.Prune()
	if err != nil {
		log.Warn().Err(err).Int("removed", n).Msg("Failed to prune cache")
		return
	}
	if n > 0 {
		log.Info().Int("removed", n).Msg("Pruned expired cache entries")
	}
}
