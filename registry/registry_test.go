package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeSession struct{ nick string }

func (s *fakeSession) Nick() string { return s.nick }

func TestProcessDispatchesByCommandWord(t *testing.T) {
	r := New()
	r.Register("echo", func(_ context.Context, _ Session, _, _ string, args []string) ([]string, error) {
		return []string{strings.Join(args, " ")}, nil
	})

	lines, err := r.Process(context.Background(), &fakeSession{nick: "bot"}, "#bots", "foo", "echo hello world")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(lines) != 1 || lines[0] != "hello world" {
		t.Errorf("lines = %v", lines)
	}
}

func TestProcessStripsBotAddressing(t *testing.T) {
	r := New()
	RegisterBuiltins(r)

	for _, text := range []string{"ping", "bot: ping", "bot ping", "BOT, ping"} {
		lines, err := r.Process(context.Background(), &fakeSession{nick: "bot"}, "#bots", "foo", text)
		if err != nil {
			t.Fatalf("Process(%q): %v", text, err)
		}
		if len(lines) != 1 || lines[0] != "pong" {
			t.Errorf("Process(%q) = %v, want pong", text, lines)
		}
	}
}

func TestProcessUnknownCommandIsSilent(t *testing.T) {
	r := New()
	lines, err := r.Process(context.Background(), &fakeSession{nick: "bot"}, "#bots", "foo", "nosuchcmd")
	if err != nil || lines != nil {
		t.Errorf("got (%v, %v), want no response and no error", lines, err)
	}
}

func TestProcessEmptyInputIsSilent(t *testing.T) {
	r := New()
	for _, text := range []string{"", "   ", "bot:"} {
		lines, err := r.Process(context.Background(), &fakeSession{nick: "bot"}, "#bots", "foo", text)
		if err != nil || lines != nil {
			t.Errorf("Process(%q) = (%v, %v), want silence", text, lines, err)
		}
	}
}

func TestProcessHandlerErrorPropagates(t *testing.T) {
	r := New()
	wantErr := errors.New("backend down")
	r.Register("fail", func(context.Context, Session, string, string, []string) ([]string, error) {
		return nil, wantErr
	})

	_, err := r.Process(context.Background(), &fakeSession{nick: "bot"}, "#bots", "foo", "fail")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestProcessRecoversHandlerPanic(t *testing.T) {
	r := New()
	r.Register("boom", func(context.Context, Session, string, string, []string) ([]string, error) {
		panic("handler bug")
	})

	lines, err := r.Process(context.Background(), &fakeSession{nick: "bot"}, "#bots", "foo", "boom")
	if err == nil {
		t.Fatal("expected an error from a panicking handler")
	}
	if lines != nil {
		t.Errorf("lines = %v, want none", lines)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, should name the command", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := New()
	r.Register("x", func(context.Context, Session, string, string, []string) ([]string, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register("x", func(context.Context, Session, string, string, []string) ([]string, error) { return nil, nil })
}
