// Package redis connects to Redis with go-redis/v9.
//
// The client is used as the pub/sub transport for limits invalidation
// (see limits.RedisInvalidator), so several notekit instances refresh the
// sessions of a user whose subscription or note count changed elsewhere.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	if cfg.Enabled() {
//		client, err := redis.Connect(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		defer client.Close()
//	}
package redis
