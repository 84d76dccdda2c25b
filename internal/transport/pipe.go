package transport

import (
	"sync"

	"github.com/google/uuid"

	"github.com/robalobadob/codebreak/internal/protocol"
)

const pipeBuffer = 256

// Pipe returns two connected in-memory Conns. Frames go through the same
// codec as the websocket, so unknown kinds are skipped the same way.
// Closing either end closes both.
func Pipe() (Conn, Conn) {
	shared := &pipeLink{done: make(chan struct{})}
	a := &pipeEnd{id: uuid.NewString(), inbox: make(chan []byte, pipeBuffer), link: shared}
	b := &pipeEnd{id: uuid.NewString(), inbox: make(chan []byte, pipeBuffer), link: shared}
	a.peer, b.peer = b, a
	return a, b
}

type pipeLink struct {
	done      chan struct{}
	closeOnce sync.Once
}

type pipeEnd struct {
	handlers

	id        string
	inbox     chan []byte
	peer      *pipeEnd
	link      *pipeLink
	startOnce sync.Once
}

func (p *pipeEnd) ID() string { return p.id }

func (p *pipeEnd) Send(m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-p.link.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.inbox <- b:
		return nil
	case <-p.link.done:
		return ErrClosed
	}
}

func (p *pipeEnd) Start() {
	p.startOnce.Do(func() {
		p.fireOpen()
		go p.read()
	})
}

func (p *pipeEnd) read() {
	for {
		select {
		case <-p.link.done:
			return
		case b := <-p.inbox:
			m, err := protocol.Decode(b)
			if err != nil {
				// Unknown kinds and malformed frames are both skipped.
				continue
			}
			p.fireMessage(m)
		}
	}
}

// Close closes both ends; this end sees a nil cause, the peer ErrPeerClosed.
func (p *pipeEnd) Close() error {
	p.link.closeOnce.Do(func() {
		close(p.link.done)
		p.fireClose(nil)
		p.peer.fireClose(ErrPeerClosed)
	})
	return nil
}
