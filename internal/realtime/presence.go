package realtime

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/modality/pkg/Logger"
)

const presenceKeyPrefix = "modality:realtime:session:"

// Presence mirrors live session ids into redis with a TTL so multiple
// gateway instances can report cluster-wide activity. A nil *Presence
// (redis not configured) is valid and does nothing.
type Presence struct {
	rc     *redis.Client
	ttl    time.Duration
	logger *Logger.Logger
}

func NewPresence(rc *redis.Client, ttl time.Duration, logger *Logger.Logger) *Presence {
	if rc == nil {
		return nil
	}
	return &Presence{rc: rc, ttl: ttl, logger: logger.Component("presence")}
}

// Register records a session as live.
func (p *Presence) Register(id string) {
	if p == nil {
		return
	}
	if err := p.rc.Set(presenceKeyPrefix+id, time.Now().Unix(), p.ttl).Err(); err != nil {
		p.logger.Warnw("presence register failed", "session_id", id, "error", err)
	}
}

// Touch refreshes a session's TTL. Called on every inbound event.
func (p *Presence) Touch(id string) {
	if p == nil {
		return
	}
	if err := p.rc.Expire(presenceKeyPrefix+id, p.ttl).Err(); err != nil {
		p.logger.Warnw("presence touch failed", "session_id", id, "error", err)
	}
}

// Remove drops a session's presence key on disconnect.
func (p *Presence) Remove(id string) {
	if p == nil {
		return
	}
	if err := p.rc.Del(presenceKeyPrefix + id).Err(); err != nil {
		p.logger.Warnw("presence remove failed", "session_id", id, "error", err)
	}
}

// Count reports the number of live sessions across all instances, or
// -1 when presence is disabled or unreachable.
func (p *Presence) Count() int {
	if p == nil {
		return -1
	}
	keys, err := p.rc.Keys(presenceKeyPrefix + "*").Result()
	if err != nil {
		p.logger.Warnw("presence count failed", "error", err)
		return -1
	}
	return len(keys)
}
