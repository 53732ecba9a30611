package funds

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Balances are integer counters, so the debit check and both writes run inside one script.
var transferScript = redis.NewScript(`
local balance = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if balance < amount then
  return 0
end
if KEYS[1] ~= KEYS[2] then
  redis.call("DECRBY", KEYS[1], ARGV[1])
  redis.call("INCRBY", KEYS[2], ARGV[1])
end
return 1
`)

// RedisBank keeps account balances in redis under Prefix+account.
type RedisBank struct {
	Client *redis.Client
	Prefix string
}

func NewRedisBank(client *redis.Client) *RedisBank {
	return &RedisBank{
		Client: client,
		Prefix: "funds:",
	}
}

func (b *RedisBank) key(account string) string {
	return b.Prefix + account
}

func checkAmount(amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("amount %d exceeds redis counter range", amount)
	}
	return nil
}

func (b *RedisBank) Deposit(ctx context.Context, account string, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := b.Client.IncrBy(ctx, b.key(account), int64(amount)).Err(); err != nil {
		return fmt.Errorf("failed to deposit to %s: %w", account, err)
	}
	return nil
}

func (b *RedisBank) Transfer(ctx context.Context, amount uint64, from, to string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	ok, err := transferScript.Run(ctx, b.Client, []string{b.key(from), b.key(to)}, strconv.FormatUint(amount, 10)).Int()
	if err != nil {
		return fmt.Errorf("transfer script failed: %w", err)
	}
	if ok != 1 {
		return fmt.Errorf("%w: %s cannot cover %d", ErrInsufficientBalance, from, amount)
	}
	return nil
}

func (b *RedisBank) Balance(ctx context.Context, account string) (uint64, error) {
	raw, err := b.Client.Get(ctx, b.key(account)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance for %s: %w", account, err)
	}
	if balance < 0 {
		return 0, nil
	}
	return uint64(balance), nil
}
