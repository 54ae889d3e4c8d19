package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

const userKeyPrefix = "shule:user:"

// cachedUser keeps the fields user.User hides from JSON.
type cachedUser struct {
	user.User
	PasswordHash []byte `json:"password_hash"`
}

// UserCache stores users in redis for ttl. Cache failures are logged and treated as misses.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
	logger core.Logger
}

var _ user.Cache = (*UserCache)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewUserCache(client *redis.Client, ttl time.Duration, logger core.Logger) *UserCache {
	return &UserCache{client: client, ttl: ttl, logger: logger}
}

// NewUserCacheFromConfig returns a redis-backed cache, or user.NopCache when redis is not configured.
func NewUserCacheFromConfig(conf *core.Config, logger core.Logger) user.Cache {
	if conf.Redis.Addr == "" {
		return user.NopCache{}
	}
	return NewUserCache(NewRedisClient(conf), conf.Redis.UserTTL, logger)
}

func (c *UserCache) Get(ctx context.Context, id string) (user.User, bool) {
	data, err := c.client.Get(ctx, userKeyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cachesvc.UserCache: get", err)
		}
		return user.User{}, false
	}
	var cu cachedUser
	if err = json.Unmarshal(data, &cu); err != nil {
		c.logger.Warn("cachesvc.UserCache: decoding user", err)
		return user.User{}, false
	}
	usr := cu.User
	usr.PasswordHash = cu.PasswordHash
	return usr, true
}

func (c *UserCache) Set(ctx context.Context, usr user.User) {
	data, err := json.Marshal(cachedUser{User: usr, PasswordHash: usr.PasswordHash})
	if err != nil {
		c.logger.Warn("cachesvc.UserCache: encoding user", err)
		return
	}
	if err = c.client.Set(ctx, userKeyPrefix+usr.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cachesvc.UserCache: set", err)
	}
}

func (c *UserCache) Delete(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, userKeyPrefix+id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cachesvc.UserCache: delete", err)
	}
}
