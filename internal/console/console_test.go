package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/robalobadob/codebreak/internal/game"
	"github.com/robalobadob/codebreak/internal/session"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// fakeController records intents and returns canned results.
type fakeController struct {
	mu       sync.Mutex
	snap     session.Snapshot
	done     chan struct{}
	err      error
	commits  []string
	guesses  []string
	turns    []int
	rematchs int
}

func newFake(state session.State) *fakeController {
	return &fakeController{snap: session.Snapshot{State: state, TurnDuration: 30}, done: make(chan struct{})}
}

func (f *fakeController) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Done() <-chan struct{} { return f.done }

func (f *fakeController) CommitSecret(code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, code)
	return f.err
}

func (f *fakeController) SubmitGuess(code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guesses = append(f.guesses, code)
	return f.err
}

func (f *fakeController) SetTurnDuration(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, n)
	return f.err
}

func (f *fakeController) RequestRematch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rematchs++
	return f.err
}

func TestHandle_RoutesCodeByState(t *testing.T) {
	tests := []struct {
		state       session.State
		wantCommits int
		wantGuesses int
		wantErr     bool
	}{
		{session.AwaitingSecrets, 1, 0, false},
		{session.LocalTurn, 0, 1, false},
		{session.RemoteTurn, 0, 0, true},
		{session.Ended, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			out := &syncBuffer{}
			c := New(out)
			f := newFake(tt.state)
			err := c.Handle("1234", f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle = %v wantErr %v", err, tt.wantErr)
			}
			if len(f.commits) != tt.wantCommits || len(f.guesses) != tt.wantGuesses {
				t.Fatalf("commits = %v guesses = %v", f.commits, f.guesses)
			}
		})
	}
}

func TestHandle_TurnLength(t *testing.T) {
	c := New(&syncBuffer{})
	f := newFake(session.AwaitingSecrets)

	for _, line := range []string{"time", "time soon", "time 3", "time 500"} {
		if err := c.Handle(line, f); err == nil {
			t.Fatalf("Handle(%q) succeeded, want error", line)
		}
	}
	if len(f.turns) != 0 {
		t.Fatalf("invalid lengths reached the controller: %v", f.turns)
	}
	if err := c.Handle("time 45", f); err != nil {
		t.Fatalf("Handle(time 45): %v", err)
	}
	if len(f.turns) != 1 || f.turns[0] != 45 {
		t.Fatalf("turns = %v want [45]", f.turns)
	}
}

func TestHandle_HistoryMostRecentFirst(t *testing.T) {
	out := &syncBuffer{}
	c := New(out)
	f := newFake(session.LocalTurn)
	f.snap.History = []session.Record{
		{Kind: session.GuessRecord, Side: session.Local, Code: "1111", Score: game.Score{Cows: 1}},
		{Kind: session.TimeoutRecord, Side: session.Remote},
		{Kind: session.GuessRecord, Side: session.Local, Code: "2222", Score: game.Score{Bulls: 2}},
	}

	if err := c.Handle("history", f); err != nil {
		t.Fatalf("Handle(history): %v", err)
	}
	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"you   2222  2B 0C",
		"them  ----  timed out",
		"you   1111  0B 1C",
	}
	if len(got) != len(want) {
		t.Fatalf("history lines = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q want %q", i, got[i], want[i])
		}
	}
}

func TestHandle_ControllerErrorReturned(t *testing.T) {
	c := New(&syncBuffer{})
	f := newFake(session.Ended)
	f.err = session.ErrAlreadyRequested
	if err := c.Handle("rematch", f); !errors.Is(err, session.ErrAlreadyRequested) {
		t.Fatalf("Handle(rematch) = %v", err)
	}
	if f.rematchs != 1 {
		t.Fatalf("RequestRematch called %d times", f.rematchs)
	}
}

func TestRun_QuitAndErrors(t *testing.T) {
	out := &syncBuffer{}
	c := New(out)
	f := newFake(session.RemoteTurn)

	in := strings.NewReader("\nhelp\n1234\nquit\nrematch\n")
	if err := c.Run(context.Background(), in, f); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.rematchs != 0 {
		t.Fatalf("input after quit was handled")
	}
	if !strings.Contains(out.String(), "commands:") || !strings.Contains(out.String(), "error: nothing to do") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRun_StopsWhenSessionDone(t *testing.T) {
	c := New(&syncBuffer{})
	f := newFake(session.Disconnected)
	close(f.done)

	pr, pw := io.Pipe()
	defer pw.Close()
	if err := c.Run(context.Background(), pr, f); err != nil {
		t.Fatalf("Run = %v want nil", err)
	}
}

func TestPresenter_Output(t *testing.T) {
	out := &syncBuffer{}
	c := New(out)

	c.OnStateChanged(session.AwaitingSecrets)
	c.OnStateChanged(session.AwaitingSecrets)
	c.OnTimerTick(30)
	c.OnTimerTick(29)
	c.OnTimerTick(9)
	c.OnTimerTick(0)
	c.OnHistoryAppended(session.Record{Kind: session.GuessRecord, Side: session.Remote, Code: "4321", Score: game.Score{Bulls: 4}, Winning: true})
	c.OnGameEnded(session.Outcome{Winner: session.Remote})

	got := out.String()
	if n := strings.Count(got, "Enter your 4-digit secret"); n != 1 {
		t.Fatalf("secret prompt printed %d times:\n%s", n, got)
	}
	for _, want := range []string{"30s left\n", "9s left!", "time's up", "them  4321  4B 0C  solved", "You lose."} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "29s") {
		t.Fatalf("unexpected tick at 29s:\n%s", got)
	}
}

func TestFormatStatus(t *testing.T) {
	s := session.Snapshot{
		State:          session.Ended,
		Role:           session.Joiner,
		TurnDuration:   30,
		Outcome:        &session.Outcome{Winner: session.Local},
		RematchRemote:  true,
		LocalCommitted: true,
	}
	want := "joiner, ended, turn 30s, winner local, rematch: you=false them=true"
	if got := FormatStatus(s); got != want {
		t.Fatalf("FormatStatus = %q want %q", got, want)
	}
}
