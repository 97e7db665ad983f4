package state

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL bounds how long an idle account's state survives. Zero keeps it.
	TTL time.Duration
}

type Redis struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.Prefix == "" {
		opts.Prefix = "genesis"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Redis{rdb: rdb, prefix: opts.Prefix, ttl: opts.TTL}, nil
}

func (r *Redis) cursorKey(account string) string { return r.prefix + ":" + account + ":cursor" }
func (r *Redis) ledgerKey(account string) string { return r.prefix + ":" + account + ":ledger" }

func (r *Redis) LoadCursor(ctx context.Context, account string) (int64, error) {
	v, err := r.rdb.Get(ctx, r.cursorKey(account)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// SaveCursor only ever raises the stored value.
var raiseCursor = goredis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local nxt = tonumber(ARGV[1])
if nxt > cur then
	redis.call("SET", KEYS[1], ARGV[1])
end
if tonumber(ARGV[2]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

func (r *Redis) SaveCursor(ctx context.Context, account string, cursor int64) error {
	return raiseCursor.Run(ctx, r.rdb, []string{r.cursorKey(account)}, cursor, r.ttl.Milliseconds()).Err()
}

func (r *Redis) LoadLedger(ctx context.Context, account string) ([]string, error) {
	keys, err := r.rdb.LRange(ctx, r.ledgerKey(account), 0, -1).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return keys, err
}

func (r *Redis) SaveLedger(ctx context.Context, account string, keys []string) error {
	key := r.ledgerKey(account)
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		if len(keys) > 0 {
			vals := make([]interface{}, len(keys))
			for i, k := range keys {
				vals[i] = k
			}
			p.RPush(ctx, key, vals...)
		}
		if r.ttl > 0 {
			p.PExpire(ctx, key, r.ttl)
		}
		return nil
	})
	return err
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
