package memory

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
)

type shardKey struct {
	source string
	shard  int
}

// Store holds the JSON lines documents of every shard kept on this node
type Store struct {
	lock   sync.RWMutex
	shards map[shardKey]*bytes.Buffer
}

// NewStore is a factory for Stores
func NewStore() *Store {
	return &Store{shards: make(map[shardKey]*bytes.Buffer)}
}

// Index appends docs to a shard of source, creating the shard if necessary
func (s *Store) Index(source string, shard int, docs ...string) error {
	for i, doc := range docs {
		if !gjson.Valid(doc) {
			return fmt.Errorf("Document %d for shard %d of %s is not valid JSON", i, shard, source)
		}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	key := shardKey{source, shard}
	buf, ok := s.shards[key]
	if !ok {
		buf = new(bytes.Buffer)
		s.shards[key] = buf
	}
	for _, doc := range docs {
		buf.WriteString(doc)
		buf.WriteByte('\n')
	}
	return nil
}

// Snapshot returns a copy of the contents of a shard
func (s *Store) Snapshot(source string, shard int) ([]byte, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	buf, ok := s.shards[shardKey{source, shard}]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), buf.Bytes()...), true
}
