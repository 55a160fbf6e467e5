package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/verity-secure/evidence-services/models/service"
)

// FakeRedis is an in-memory stand-in for network.RedisClient. It
// satisfies session.Store and custody.RecordStore.
type FakeRedis struct {
	sessions map[string]string
	records  map[string]string
	dedup    map[string]string
	mutex    sync.Mutex
}

func NewFakeRedis() *FakeRedis {
	return &FakeRedis{
		sessions: make(map[string]string),
		records:  make(map[string]string),
		dedup:    make(map[string]string),
	}
}

func (f *FakeRedis) SessionSave(session *service.Session, window time.Duration) error {
	jsonData, err := session.ToJson()
	if err != nil {
		return err
	}
	f.mutex.Lock()
	f.sessions[session.ID] = jsonData
	f.mutex.Unlock()
	return nil
}

func (f *FakeRedis) SessionGet(sessionID string) (*service.Session, error) {
	f.mutex.Lock()
	jsonData, exists := f.sessions[sessionID]
	f.mutex.Unlock()
	if !exists {
		return nil, nil
	}
	return service.SessionFromJson(jsonData)
}

func (f *FakeRedis) EvidenceRecordSave(record *service.EvidenceRecord) error {
	jsonData, err := record.ToJson()
	if err != nil {
		return err
	}
	f.mutex.Lock()
	f.records[record.RecordID] = jsonData
	f.mutex.Unlock()
	return nil
}

func (f *FakeRedis) EvidenceRecordGet(recordID string) (*service.EvidenceRecord, error) {
	f.mutex.Lock()
	jsonData, exists := f.records[recordID]
	f.mutex.Unlock()
	if !exists {
		return nil, nil
	}
	return service.EvidenceRecordFromJson(jsonData)
}

func (f *FakeRedis) DedupGet(sessionID, digest string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.dedup[dedupKey(sessionID, digest)], nil
}

func (f *FakeRedis) DedupSet(sessionID, digest, recordID string, window time.Duration) error {
	f.mutex.Lock()
	f.dedup[dedupKey(sessionID, digest)] = recordID
	f.mutex.Unlock()
	return nil
}

func (f *FakeRedis) RecordCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.records)
}

func dedupKey(sessionID, digest string) string {
	return fmt.Sprintf("%s:%s", sessionID, digest)
}
