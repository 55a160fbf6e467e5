package network

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"

	"github.com/verity-secure/evidence-services/models/service"
)

// RedisClient persists sessions, evidence records, and the dedup
// index. Keys:
//
//	session:<sessionID>           -> service.Session JSON
//	record:<recordID>             -> service.EvidenceRecord JSON
//	dedup:<sessionID>:<digest>    -> recordID
//
// Sessions and dedup entries expire with the operator's session
// window. Records do not expire.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

func (c *RedisClient) SessionSave(session *service.Session, window time.Duration) error {
	jsonData, err := session.ToJson()
	if err != nil {
		return err
	}
	return c.client.Set(sessionKey(session.ID), jsonData, window).Err()
}

// SessionGet returns nil, nil when the session is unknown. Callers
// decide whether an unknown id is acceptable (see session.Manager).
func (c *RedisClient) SessionGet(sessionID string) (*service.Session, error) {
	data, err := c.client.Get(sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("SessionGet (%s): %s", sessionID, err.Error())
	}
	return service.SessionFromJson(data)
}

func (c *RedisClient) EvidenceRecordSave(record *service.EvidenceRecord) error {
	jsonData, err := record.ToJson()
	if err != nil {
		return err
	}
	return c.client.Set(recordKey(record.RecordID), jsonData, 0).Err()
}

func (c *RedisClient) EvidenceRecordGet(recordID string) (*service.EvidenceRecord, error) {
	data, err := c.client.Get(recordKey(recordID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("EvidenceRecordGet (%s): %s", recordID, err.Error())
	}
	return service.EvidenceRecordFromJson(data)
}

// DedupGet returns the id of an existing record for this
// (session, digest) pair, or empty string.
func (c *RedisClient) DedupGet(sessionID, digest string) (string, error) {
	recordID, err := c.client.Get(dedupKey(sessionID, digest)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("DedupGet (%s, %s): %s", sessionID, digest, err.Error())
	}
	return recordID, nil
}

func (c *RedisClient) DedupSet(sessionID, digest, recordID string, window time.Duration) error {
	return c.client.Set(dedupKey(sessionID, digest), recordID, window).Err()
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func recordKey(recordID string) string {
	return fmt.Sprintf("record:%s", recordID)
}

func dedupKey(sessionID, digest string) string {
	return fmt.Sprintf("dedup:%s:%s", sessionID, digest)
}
