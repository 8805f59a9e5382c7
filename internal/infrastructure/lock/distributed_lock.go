package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 结算和参与的最终一致性由数据库的条件更新（CAS）保证，
// 但触发方可能来自多个进程（请求、定时扫描、外部 cron），
// 这里用 Redis 锁在入口处把同一实例/同一用户的并发请求挡掉，
// 避免大量事务在数据库侧互相回滚空转
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本保证"检查+删除"的原子性

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】先验证 value 再删除，防止处理超时后误删下一个持有者的锁；
// 验证和删除用 Lua 脚本合成一步
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：业务维度的锁
// ============================================================================

// NewJoinLock 参与锁（按用户维度）
//
// 同一用户的并发参与请求串行化，不同用户互不影响；
// 防止同一用户的重复提交在余额预检阶段互相穿透
func NewJoinLock(client *redis.Client, userID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("join:lock:user:%d", userID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// NewSettleLock 结算锁（按实例维度）
//
// 结算可能同时被管理操作和后台扫描触发，按实例加锁让同一个
// 赌局/竞答同一时刻只有一个结算流程在跑
func NewSettleLock(client *redis.Client, instanceNo string, holder string) *DistributedLock {
	key := fmt.Sprintf("settle:lock:instance:%s", instanceNo)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// NewRefundLock 退款锁（按实例维度）
func NewRefundLock(client *redis.Client, instanceNo string, holder string) *DistributedLock {
	key := fmt.Sprintf("refund:lock:instance:%s", instanceNo)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
