package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"statusninja/internal/auth"
	"statusninja/internal/notify"
	"statusninja/internal/registry"
	"statusninja/internal/storage"
	"statusninja/internal/transport"
	logx "statusninja/pkg/logx"
)

type replySink struct {
	mu      sync.Mutex
	replies []string
	chats   []int64
}

func (r *replySink) SendText(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	r.chats = append(r.chats, chatID)
	return nil
}

func (r *replySink) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		t.Fatal("no reply sent")
	}
	return r.replies[len(r.replies)-1]
}

type stubMembers struct {
	status string
	err    error
}

func (s *stubMembers) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	return s.status, s.err
}

func newTestRouter(t *testing.T, members *stubMembers) (*Router, *replySink, *registry.Service) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: ":memory:", BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if members == nil {
		members = &stubMembers{status: "member"}
	}
	reg := registry.New(st, logx.Nop())
	guard := auth.NewGuard(st, members, logx.Nop())
	sink := &replySink{}
	dispatcher := notify.NewDispatcher(notify.Config{RatePerSec: 100}, sink, logx.Nop())
	return NewRouter(reg, guard, dispatcher, logx.Nop()), sink, reg
}

func privateMsg(chatID int64, text string) *transport.Message {
	return &transport.Message{ChatID: chatID, ChatType: "private", FromID: chatID, Text: text}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		cmd  string
		args []string
	}{
		{name: "plain", text: "/list", cmd: "/list"},
		{name: "args", text: "/add payments https://pay.test", cmd: "/add", args: []string{"payments", "https://pay.test"}},
		{name: "mention stripped", text: "/list@statusbot", cmd: "/list"},
		{name: "case folded", text: "/LIST", cmd: "/list"},
		{name: "extra whitespace", text: "  /delete   api  ", cmd: "/delete", args: []string{"api"}},
		{name: "not a command", text: "hello there", cmd: "hello", args: []string{"there"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, args := parseCommand(tt.text)
			if cmd != tt.cmd {
				t.Fatalf("cmd = %q, want %q", cmd, tt.cmd)
			}
			if len(args) != len(tt.args) {
				t.Fatalf("args = %v, want %v", args, tt.args)
			}
			for i := range args {
				if args[i] != tt.args[i] {
					t.Fatalf("args = %v, want %v", args, tt.args)
				}
			}
		})
	}
}

func TestChatDescription(t *testing.T) {
	t.Parallel()
	if got := chatDescription("group", "Ops Team"); got != "Ops Team" {
		t.Fatalf("group with title = %q", got)
	}
	if got := chatDescription("supergroup", ""); got != "Group chat" {
		t.Fatalf("supergroup without title = %q", got)
	}
	if got := chatDescription("private", ""); got != "Direct message" {
		t.Fatalf("private = %q", got)
	}
}

func TestAddListDeleteFlow(t *testing.T) {
	t.Parallel()
	r, sink, _ := newTestRouter(t, nil)
	ctx := context.Background()

	r.handleMessage(ctx, privateMsg(10, "/add payments https://pay.test/health"))
	if got := sink.last(t); got != `API endpoint "payments" added successfully.` {
		t.Fatalf("add reply = %q", got)
	}

	r.handleMessage(ctx, privateMsg(10, "/list"))
	if got := sink.last(t); !strings.Contains(got, "- payments: https://pay.test/health") {
		t.Fatalf("list reply = %q", got)
	}

	// Duplicate name.
	r.handleMessage(ctx, privateMsg(10, "/add payments https://other.test"))
	if got := sink.last(t); got != `Error: an API endpoint named "payments" already exists.` {
		t.Fatalf("duplicate add reply = %q", got)
	}

	r.handleMessage(ctx, privateMsg(10, "/delete payments"))
	if got := sink.last(t); got != `API endpoint "payments" has been deleted.` {
		t.Fatalf("delete reply = %q", got)
	}

	r.handleMessage(ctx, privateMsg(10, "/list"))
	if got := sink.last(t); got != "No API endpoints configured for this chat." {
		t.Fatalf("empty list reply = %q", got)
	}
}

func TestDeleteByNonOwnerIsDeniedAndEndpointSurvives(t *testing.T) {
	t.Parallel()
	r, sink, reg := newTestRouter(t, nil)
	ctx := context.Background()

	r.handleMessage(ctx, privateMsg(10, "/add payments https://pay.test/health"))

	// A different private chat tries to delete it.
	r.handleMessage(ctx, privateMsg(999, "/delete payments"))
	if got := sink.last(t); got != `You don't have permission to manage the API "payments".` {
		t.Fatalf("denial reply = %q", got)
	}

	if _, err := reg.GetEndpointOwned(ctx, "payments", 10); err != nil {
		t.Fatalf("endpoint should survive foreign delete: %v", err)
	}
}

func TestDeleteMissingEndpoint(t *testing.T) {
	t.Parallel()
	r, sink, _ := newTestRouter(t, nil)

	// Not-found must win over a denial for a name that resolves to nothing.
	r.handleMessage(context.Background(), privateMsg(10, "/delete ghost"))
	if got := sink.last(t); got != `Error: API endpoint "ghost" not found.` {
		t.Fatalf("reply = %q", got)
	}
}

func TestSubscribeTwice(t *testing.T) {
	t.Parallel()
	r, sink, _ := newTestRouter(t, nil)
	ctx := context.Background()

	r.handleMessage(ctx, privateMsg(10, "/add payments https://pay.test/health"))

	r.handleMessage(ctx, privateMsg(10, "/subscribe payments"))
	if got := sink.last(t); got != `Successfully subscribed to "payments" API health checks.` {
		t.Fatalf("first subscribe reply = %q", got)
	}

	r.handleMessage(ctx, privateMsg(10, "/subscribe payments"))
	if got := sink.last(t); got != "Error: This chat is already subscribed to that API." {
		t.Fatalf("second subscribe reply = %q", got)
	}

	r.handleMessage(ctx, privateMsg(10, "/unsubscribe payments"))
	if got := sink.last(t); got != `Successfully unsubscribed from "payments" API health checks.` {
		t.Fatalf("unsubscribe reply = %q", got)
	}

	r.handleMessage(ctx, privateMsg(10, "/unsubscribe payments"))
	if got := sink.last(t); got != "Error: This chat is not subscribed to that API." {
		t.Fatalf("second unsubscribe reply = %q", got)
	}
}

func TestGroupChatRequiresAdmin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		members *stubMembers
		allowed bool
	}{
		{name: "administrator", members: &stubMembers{status: "administrator"}, allowed: true},
		{name: "creator", members: &stubMembers{status: "creator"}, allowed: true},
		{name: "member", members: &stubMembers{status: "member"}, allowed: false},
		{name: "query failure fails closed", members: &stubMembers{err: errors.New("api down")}, allowed: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, sink, _ := newTestRouter(t, tt.members)
			msg := &transport.Message{ChatID: -100, ChatType: "group", ChatTitle: "Ops", FromID: 7, Text: "/add api https://api.test"}
			r.handleMessage(context.Background(), msg)

			got := sink.last(t)
			if tt.allowed && got != `API endpoint "api" added successfully.` {
				t.Fatalf("reply = %q", got)
			}
			if !tt.allowed && got != msgDeniedGeneric {
				t.Fatalf("reply = %q, want generic denial", got)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	r, sink, _ := newTestRouter(t, nil)
	r.handleMessage(context.Background(), privateMsg(10, "/frobnicate"))
	if got := sink.last(t); got != msgUnknownCommand {
		t.Fatalf("reply = %q", got)
	}
}

func TestNonCommandTextIsIgnored(t *testing.T) {
	t.Parallel()
	r, sink, _ := newTestRouter(t, nil)
	r.handleMessage(context.Background(), privateMsg(10, "just chatting"))
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.replies) != 0 {
		t.Fatalf("unexpected replies %v", sink.replies)
	}
}

func TestHelp(t *testing.T) {
	t.Parallel()
	r, sink, _ := newTestRouter(t, nil)
	r.handleMessage(context.Background(), privateMsg(10, "/help"))
	if got := sink.last(t); !strings.Contains(got, "/add <name> <url>") {
		t.Fatalf("help reply = %q", got)
	}
}

func TestJoinedSendsWelcomeAndRegistersChat(t *testing.T) {
	t.Parallel()
	r, sink, reg := newTestRouter(t, nil)
	ctx := context.Background()

	r.handleJoined(ctx, &transport.Joined{ChatID: -200, ChatType: "group", ChatTitle: "Ops"})
	if got := sink.last(t); got != msgWelcome {
		t.Fatalf("welcome reply = %q", got)
	}
	// Chat is registered: a second EnsureChat stays quiet (idempotent).
	if err := reg.EnsureChat(ctx, -200, "Ops"); err != nil {
		t.Fatalf("EnsureChat after join: %v", err)
	}
}
