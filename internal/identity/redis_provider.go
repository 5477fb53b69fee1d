package identity

import (
	"context"
	"fmt"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"

	rd "github.com/redis/go-redis/v9"
)

// SessionKey is the Redis hash holding one session: fields user_id and username
func SessionKey(token string) string {
	return fmt.Sprintf("auction:session:%s", token)
}

// RedisProvider resolves sessions written to Redis by the sign-in flow
type RedisProvider struct {
	rdb *rd.Client
}

func NewRedisProvider(rdb *rd.Client) *RedisProvider {
	return &RedisProvider{rdb: rdb}
}

func (p *RedisProvider) ResolveSession(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, fmt.Errorf("resolve session: %w - missing token", biddingerrors.ErrIdentityRequired)
	}

	m, err := p.rdb.HGetAll(ctx, SessionKey(token)).Result()
	if err != nil {
		return models.User{}, fmt.Errorf("resolve session: %w", err)
	}
	if len(m) == 0 || m["user_id"] == "" {
		return models.User{}, fmt.Errorf("resolve session: %w - unknown token", biddingerrors.ErrIdentityRequired)
	}
	return models.User{UserID: m["user_id"], Username: m["username"]}, nil
}

// PutSession stores a session with a TTL. Session issuance happens elsewhere;
// this is used to seed demo users.
func (p *RedisProvider) PutSession(ctx context.Context, token string, user models.User, ttl time.Duration) error {
	key := SessionKey(token)
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", user.UserID,
		"username", user.Username,
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
