package refund

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// GatewayLockTTL borne la durée du marqueur "appel passerelle en cours" :
// si le processus meurt pendant l'appel, le marqueur expire tout seul.
const GatewayLockTTL = 2 * time.Minute

// luaReleaseIfMatch ne supprime le marqueur que si le token correspond,
// pour ne pas effacer le marqueur d'un appel plus récent.
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// RedisGatewayLock pose le marqueur d'appel passerelle dans Redis via
// SET NX PX. Le verrou n'est jamais tenu par la base pendant l'appel réseau.
type RedisGatewayLock struct {
	client *rd.Client
}

func NewRedisGatewayLock(client *rd.Client) *RedisGatewayLock {
	return &RedisGatewayLock{client: client}
}

func gatewayLockKey(refundID gocql.UUID) string {
	return "refund:gateway_inflight:" + refundID.String()
}

func (l *RedisGatewayLock) Acquire(ctx context.Context, refundID gocql.UUID) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, gatewayLockKey(refundID), token, GatewayLockTTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisGatewayLock) Release(ctx context.Context, refundID gocql.UUID, token string) error {
	_, err := l.client.Eval(ctx, luaReleaseIfMatch, []string{gatewayLockKey(refundID)}, token).Int()
	return err
}
