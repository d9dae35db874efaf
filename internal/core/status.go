package core

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/RoomStatus/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthorized  = errors.New("unauthorized access")
	ErrInvalidStatus = errors.New("invalid status")
)

// ChangeRequest is the body of a status change call.
type ChangeRequest struct {
	NewStatus json.RawMessage `json:"newStatus"`
	APIKey    string          `json:"apiKey"`
}

// StatusService owns the room flag. It is safe for concurrent use.
type StatusService struct {
	accessKey string
	encoding  domain.Encoding

	mu     sync.RWMutex
	status domain.RoomStatus
	subs   map[uint64]chan domain.RoomStatus
	nextID uint64
}

func NewStatusService(accessKey string, enc domain.Encoding) *StatusService {
	if enc == "" {
		enc = domain.EncodingBool
	}
	return &StatusService{
		accessKey: accessKey,
		encoding:  enc,
		status:    domain.Closed,
		subs:      make(map[uint64]chan domain.RoomStatus),
	}
}

func (s *StatusService) Encoding() domain.Encoding { return s.encoding }

func (s *StatusService) Status() domain.RoomStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus checks the credential, then the payload, and on success stores
// the requested status. It returns the confirmation message.
func (s *StatusService) SetStatus(req ChangeRequest) (string, error) {
	if !s.authorized(req.APIKey) {
		log.Warn().Str("module", "core.status").Msg("rejected change: bad api key")
		return "", ErrUnauthorized
	}

	next, label, err := decodeStatus(req.NewStatus, s.encoding)
	if err != nil {
		log.Warn().Str("module", "core.status").Str("encoding", string(s.encoding)).Msg("rejected change: bad status")
		return "", err
	}

	s.mu.Lock()
	prev := s.status
	s.status = next
	sent := s.publishLocked(next)
	s.mu.Unlock()

	log.Info().Str("module", "core.status").Str("from", prev.String()).Str("to", next.String()).Int("subscribers", sent).Msg("room status changed")
	return fmt.Sprintf("Room status successfully changed to %q.", label), nil
}

func (s *StatusService) authorized(key string) bool {
	if s.accessKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.accessKey)) == 1
}

// decodeStatus returns the status and the word echoed in the confirmation.
func decodeStatus(raw json.RawMessage, enc domain.Encoding) (domain.RoomStatus, string, error) {
	raw = bytes.TrimSpace(raw)
	switch enc {
	case domain.EncodingString:
		var v string
		if len(raw) == 0 || raw[0] != '"' {
			return false, "", ErrInvalidStatus
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return false, "", fmt.Errorf("%w: %v", ErrInvalidStatus, err)
		}
		switch v {
		case "open":
			return domain.Open, v, nil
		case "close":
			return domain.Closed, v, nil
		}
		return false, "", ErrInvalidStatus
	default:
		switch string(raw) {
		case "true":
			return domain.Open, domain.Open.String(), nil
		case "false":
			return domain.Closed, domain.Closed.String(), nil
		}
		return false, "", ErrInvalidStatus
	}
}

// Subscribe registers for status changes. A subscriber that is not keeping up
// misses intermediate values but always receives the latest one: when its
// buffer is full the oldest queued value is dropped. Call the returned func to
// unsubscribe, which closes the channel.
func (s *StatusService) Subscribe(buf int) (<-chan domain.RoomStatus, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan domain.RoomStatus, buf)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *StatusService) publishLocked(st domain.RoomStatus) int {
	sent := 0
	for _, ch := range s.subs {
		select {
		case ch <- st:
			sent++
			continue
		default:
		}
		// Full: drop the oldest value so the newest one always lands.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
			sent++
		default:
		}
	}
	return sent
}
