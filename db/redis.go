// db/redis.go
package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/model"
)

var (
	RedisClient   *redis.Client
	encryptionKey []byte
)

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	encryptionKey = []byte(viper.GetString("redis.encryptionKey"))
	if len(encryptionKey) != 32 {
		return fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// SessionCacheStore is the Redis-backed retention tier for per-session
// permission entries. One namespaced key holds the serialized entry list,
// encrypted at rest since cached decisions reveal what a clinician may see.
type SessionCacheStore struct {
	SessionID string
}

func NewSessionCacheStore(sessionID string) *SessionCacheStore {
	return &SessionCacheStore{SessionID: sessionID}
}

func (s *SessionCacheStore) key() string {
	return fmt.Sprintf("authcache:%s", s.SessionID)
}

// SaveEntries replaces the stored entry list for the session.
func (s *SessionCacheStore) SaveEntries(ctx context.Context, entries []model.CacheEntry) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entries: %w", err)
	}

	encryptedEntries, err := encrypt(entriesJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt cache entries: %w", err)
	}

	sessionTTL := viper.GetDuration("redis.sessionCacheTTL")
	err = RedisClient.Set(ctx, s.key(), base64.StdEncoding.EncodeToString(encryptedEntries), sessionTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to persist cache entries: %w", err)
	}

	logger.Debug("Session cache entries persisted",
		zap.String("sessionID", s.SessionID),
		zap.Int("count", len(entries)))
	return nil
}

// LoadEntries returns the stored entry list, or nil when the key is absent.
func (s *SessionCacheStore) LoadEntries(ctx context.Context) ([]model.CacheEntry, error) {
	encryptedStr, err := RedisClient.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		logger.Debug("No session cache entries found", zap.String("sessionID", s.SessionID))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}

	encryptedEntries, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cache entries: %w", err)
	}

	entriesJSON, err := decrypt(encryptedEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cache entries: %w", err)
	}

	var entries []model.CacheEntry
	err = json.Unmarshal(entriesJSON, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entries: %w", err)
	}

	logger.Debug("Session cache entries loaded",
		zap.String("sessionID", s.SessionID),
		zap.Int("count", len(entries)))
	return entries, nil
}

// ClearEntries removes the session's entry list.
func (s *SessionCacheStore) ClearEntries(ctx context.Context) error {
	err := RedisClient.Del(ctx, s.key()).Err()
	if err != nil {
		return fmt.Errorf("failed to clear cache entries: %w", err)
	}
	logger.Debug("Session cache entries cleared", zap.String("sessionID", s.SessionID))
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
