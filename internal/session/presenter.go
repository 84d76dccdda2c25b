package session

import (
	"context"

	"github.com/robalobadob/codebreak/internal/protocol"
	"github.com/robalobadob/codebreak/internal/store"
)

// Link is the outbound half of the transport. Send must not block for long;
// a returned error is treated as a broken connection.
type Link interface {
	Send(protocol.Message) error
}

// Presenter receives display-agnostic notifications. All methods are called
// from the session's event loop goroutine, one at a time, and must not call
// the controller's intent methods synchronously.
type Presenter interface {
	OnStateChanged(State)
	OnHistoryAppended(Record)
	OnTimerTick(secondsLeft int)
	OnGameEnded(Outcome)
	OnRematchRequested()
	OnDisconnected()
}

// Recorder receives finished matches. store.Store satisfies it.
type Recorder interface {
	Save(ctx context.Context, r store.Result) error
}

type nopPresenter struct{}

func (nopPresenter) OnStateChanged(State)     {}
func (nopPresenter) OnHistoryAppended(Record) {}
func (nopPresenter) OnTimerTick(int)          {}
func (nopPresenter) OnGameEnded(Outcome)      {}
func (nopPresenter) OnRematchRequested()      {}
func (nopPresenter) OnDisconnected()          {}
