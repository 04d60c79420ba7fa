package chatrix

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

const (
	// ArchiveNamespace prefixes every archive key.
	ArchiveNamespace = "ai-assistant-messages"
	// ArchiveLimit is the number of most recent messages kept per user.
	ArchiveLimit = 100
)

// ArchiveKey returns the storage key for userID's AI conversation.
func ArchiveKey(userID string) string {
	if userID == "" {
		userID = "anon"
	}
	return ArchiveNamespace + ":" + userID
}

// Archive is the per-user durable record of the AI conversation. It never
// reports failures: unreadable data loads as empty and writes are best
// effort.
type Archive struct {
	storage Storage
	logger  zerolog.Logger
}

// NewArchive creates an archive over storage.
func NewArchive(storage Storage, logger zerolog.Logger) *Archive {
	return &Archive{storage: storage, logger: logger}
}

// Load returns userID's archived messages, oldest first.
func (a *Archive) Load(userID string) []Message {
	key := ArchiveKey(userID)
	raw, ok, err := a.storage.Get(key)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("archive read failed")
		return []Message{}
	}
	if !ok {
		return []Message{}
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("archive corrupt, starting empty")
		return []Message{}
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs
}

// Save replaces userID's archive with the last ArchiveLimit of msgs.
func (a *Archive) Save(userID string, msgs []Message) {
	if len(msgs) > ArchiveLimit {
		msgs = msgs[len(msgs)-ArchiveLimit:]
	}
	if msgs == nil {
		msgs = []Message{}
	}

	key := ArchiveKey(userID)
	data, err := json.Marshal(msgs)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("archive encode failed")
		return
	}
	if err := a.storage.Set(key, string(data)); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("archive write failed")
	}
}
