package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomStatus/internal/core"
)

var ErrTooManyAttempts = errors.New("too many failed attempts")

// Notifier is told about every accepted change. Implementations must not
// block the caller.
type Notifier interface {
	Notify(payload []byte, requestID string)
}

// App ties the status service to its side concerns: failed-key throttling and
// change notification.
type App struct {
	Status   *core.StatusService
	Notifier Notifier
	Limiter  *FailureLimiter
}

// ChangeStatus applies req on behalf of client. raw is the request body as
// received and is what the notifier forwards. The notification is dispatched
// after the change is committed and its outcome never reaches the caller.
func (a *App) ChangeStatus(client, requestID string, req core.ChangeRequest, raw []byte) (string, error) {
	if a.Limiter.Blocked(client) {
		log.Warn().Str("module", "app").Str("client", client).Str("request_id", requestID).Msg("change refused: client throttled")
		return "", ErrTooManyAttempts
	}

	msg, err := a.Status.SetStatus(req)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			a.Limiter.Fail(client)
		}
		return "", err
	}

	if a.Notifier != nil {
		a.Notifier.Notify(raw, requestID)
	}
	return msg, nil
}
