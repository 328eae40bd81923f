package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ziabot/internal/agent"
	"ziabot/internal/ai"
	"ziabot/internal/model"
)

type fakeSessionStore struct {
	sessions []model.Session
	nextID   uint
}

func (f *fakeSessionStore) Create(session *model.Session) error {
	f.nextID++
	session.ID = f.nextID
	f.sessions = append(f.sessions, *session)
	return nil
}

func (f *fakeSessionStore) ListByUserID(userID uint) ([]model.Session, error) {
	var out []model.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) GetByIDAndUserID(sessionID, userID uint) (*model.Session, error) {
	for _, s := range f.sessions {
		if s.ID == sessionID && s.UserID == userID {
			copied := s
			return &copied, nil
		}
	}
	return nil, nil
}

type fakeMessageStore struct {
	messages []model.Message
	nextID   uint
}

func (f *fakeMessageStore) ListBySessionID(sessionID uint) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ListByUserID(userID uint) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) AppendPair(sessionID, userID uint, query, reply string) ([]model.Message, error) {
	pair := []model.Message{
		{SessionID: sessionID, UserID: userID, Role: "user", Content: query},
		{SessionID: sessionID, UserID: userID, Role: "assistant", Content: reply},
	}
	for i := range pair {
		f.nextID++
		pair[i].ID = f.nextID
		f.messages = append(f.messages, pair[i])
	}
	return pair, nil
}

type fakeFileStore struct {
	latest *model.UserFile
}

func (f *fakeFileStore) GetLatestByUserID(uint) (*model.UserFile, error) {
	return f.latest, nil
}

type countingCompleter struct {
	reply   string
	calls   int
	prompts []string
}

func (c *countingCompleter) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	c.calls++
	c.prompts = append(c.prompts, messages[len(messages)-1].Content)
	return c.reply, nil
}

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, ai.ChatConfig, []ai.ChatMessage) (string, error) {
	return "", errors.New("upstream unavailable")
}

type capturedEvents struct {
	events []model.ChatEvent
}

func (c *capturedEvents) Publish(_ context.Context, event model.ChatEvent) error {
	c.events = append(c.events, event)
	return nil
}

func newTestChatService(completer agent.Completer, files FileStore) (*ChatService, *fakeSessionStore, *fakeMessageStore, *capturedEvents) {
	sessions := &fakeSessionStore{}
	messages := &fakeMessageStore{}
	events := &capturedEvents{}
	svc := NewChatService(
		sessions,
		messages,
		files,
		nil,
		events,
		agent.NewRunner(completer, "https://llm.example", "key"),
		agent.ModelSet{Default: "m0", Analyst: "m1", Synthesizer: "m2", Architect: "m3"},
	)
	return svc, sessions, messages, events
}

func TestChatCreatesSessionWithDerivedTitle(t *testing.T) {
	completer := &countingCompleter{reply: "four"}
	svc, sessions, _, _ := newTestChatService(completer, &fakeFileStore{})

	longQuery := strings.Repeat("x", 60)
	result, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: longQuery, Mode: agent.ModeDefault})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.SessionID == 0 {
		t.Fatal("expected a new session id")
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("expected exactly 1 session, got %d", len(sessions.sessions))
	}
	if got := sessions.sessions[0].Title; got != strings.Repeat("x", 50) {
		t.Fatalf("title = %q, want first 50 chars of query", got)
	}
}

func TestChatReusesExistingSession(t *testing.T) {
	completer := &countingCompleter{reply: "ok"}
	svc, sessions, messages, _ := newTestChatService(completer, &fakeFileStore{})

	first, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "hello", Mode: agent.ModeDefault})
	if err != nil {
		t.Fatalf("first chat: %v", err)
	}
	second, err := svc.Chat(context.Background(), ChatInput{
		UserID:    1,
		SessionID: first.SessionID,
		Query:     "and again",
		Mode:      agent.ModeDefault,
	})
	if err != nil {
		t.Fatalf("second chat: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("second call created session %d instead of reusing %d", second.SessionID, first.SessionID)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions.sessions))
	}
	transcript, _ := messages.ListBySessionID(first.SessionID)
	if len(transcript) != 4 {
		t.Fatalf("expected 4 turns after two calls, got %d", len(transcript))
	}
}

func TestChatPipelineFailureLeavesNoSession(t *testing.T) {
	svc, sessions, messages, events := newTestChatService(failingCompleter{}, &fakeFileStore{})

	_, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "hello", Mode: agent.ModeDefault})
	if err == nil {
		t.Fatal("expected the pipeline failure to surface")
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("failed call left %d sessions behind", len(sessions.sessions))
	}
	if len(messages.messages) != 0 {
		t.Fatalf("failed call persisted %d turns", len(messages.messages))
	}
	if len(events.events) != 0 {
		t.Fatalf("failed call published %d events", len(events.events))
	}
}

func TestChatRejectsForeignSession(t *testing.T) {
	completer := &countingCompleter{reply: "ok"}
	svc, sessions, _, _ := newTestChatService(completer, &fakeFileStore{})
	sessions.sessions = append(sessions.sessions, model.Session{ID: 7, UserID: 2, Title: "other"})
	sessions.nextID = 7

	_, err := svc.Chat(context.Background(), ChatInput{UserID: 1, SessionID: 7, Query: "hi", Mode: agent.ModeDefault})
	if err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestChatInvocationCountPerMode(t *testing.T) {
	for _, tc := range []struct {
		mode  agent.Mode
		calls int
	}{
		{agent.ModeDefault, 1},
		{agent.ModeReason, 3},
	} {
		completer := &countingCompleter{reply: "answer"}
		svc, _, _, events := newTestChatService(completer, &fakeFileStore{})

		if _, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "hi", Mode: tc.mode}); err != nil {
			t.Fatalf("chat mode %s: %v", tc.mode, err)
		}
		if completer.calls != tc.calls {
			t.Fatalf("mode %s made %d inference calls, want %d", tc.mode, completer.calls, tc.calls)
		}
		if len(events.events) != 1 || events.events[0].StageCount != tc.calls {
			t.Fatalf("mode %s published event %+v, want stage count %d", tc.mode, events.events, tc.calls)
		}
	}
}

func TestChatRecordsTurnPair(t *testing.T) {
	completer := &countingCompleter{reply: "the answer"}
	svc, _, messages, _ := newTestChatService(completer, &fakeFileStore{})

	result, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "a question", Mode: agent.ModeDefault})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected a user/assistant pair, got %d messages", len(result.Messages))
	}
	if result.Messages[0].Role != "user" || result.Messages[0].Content != "a question" {
		t.Fatalf("unexpected user turn: %+v", result.Messages[0])
	}
	if result.Messages[1].Role != "assistant" || result.Messages[1].Content != "the answer" {
		t.Fatalf("unexpected assistant turn: %+v", result.Messages[1])
	}

	all, _ := messages.ListByUserID(1)
	if len(all) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(all))
	}
}

func TestChatFileContextSelection(t *testing.T) {
	file := &model.UserFile{UserID: 1, FileName: "notes.txt", Content: "hello from the file"}

	completer := &countingCompleter{reply: "ok"}
	svc, _, _, _ := newTestChatService(completer, &fakeFileStore{latest: file})

	if _, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "summarize my notes", Mode: agent.ModeDefault}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(completer.prompts[0], "hello from the file") {
		t.Fatalf("file-related query did not embed file content:\n%s", completer.prompts[0])
	}

	completer2 := &countingCompleter{reply: "ok"}
	svc2, _, _, _ := newTestChatService(completer2, &fakeFileStore{latest: file})
	if _, err := svc2.Chat(context.Background(), ChatInput{UserID: 1, Query: "what is 2+2", Mode: agent.ModeDefault}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(completer2.prompts[0], noFileContextSentinel) {
		t.Fatalf("unrelated query did not use the sentinel:\n%s", completer2.prompts[0])
	}
	if strings.Contains(completer2.prompts[0], "hello from the file") {
		t.Fatalf("unrelated query leaked file content:\n%s", completer2.prompts[0])
	}
}

func TestChatNoUploadedFileUsesSentinel(t *testing.T) {
	completer := &countingCompleter{reply: "ok"}
	svc, _, _, _ := newTestChatService(completer, &fakeFileStore{latest: nil})

	if _, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "summarize the document", Mode: agent.ModeDefault}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(completer.prompts[0], noFileContextSentinel) {
		t.Fatalf("missing sentinel for user without uploads:\n%s", completer.prompts[0])
	}
}

func TestChatHistoryEmbeddedInPrompt(t *testing.T) {
	completer := &countingCompleter{reply: "ok"}
	svc, _, _, _ := newTestChatService(completer, &fakeFileStore{})

	first, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "remember the number 7", Mode: agent.ModeDefault})
	if err != nil {
		t.Fatalf("first chat: %v", err)
	}
	if !strings.Contains(completer.prompts[0], noHistorySentinel) {
		t.Fatalf("first call should see the empty-history sentinel:\n%s", completer.prompts[0])
	}

	if _, err := svc.Chat(context.Background(), ChatInput{
		UserID:    1,
		SessionID: first.SessionID,
		Query:     "what number did I mention",
		Mode:      agent.ModeDefault,
	}); err != nil {
		t.Fatalf("second chat: %v", err)
	}
	if !strings.Contains(completer.prompts[1], "user: remember the number 7") {
		t.Fatalf("second call prompt missing prior turn:\n%s", completer.prompts[1])
	}
}

func TestGetSessionMessagesOwnership(t *testing.T) {
	completer := &countingCompleter{reply: "ok"}
	svc, _, _, _ := newTestChatService(completer, &fakeFileStore{})

	result, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "hi", Mode: agent.ModeDefault})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if _, err := svc.GetSessionMessages(context.Background(), 2, result.SessionID); err != ErrSessionNotFound {
		t.Fatalf("foreign account read = %v, want ErrSessionNotFound", err)
	}

	msgs, err := svc.GetSessionMessages(context.Background(), 1, result.SessionID)
	if err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestChatEmptyQueryRejected(t *testing.T) {
	completer := &countingCompleter{reply: "ok"}
	svc, _, _, _ := newTestChatService(completer, &fakeFileStore{})

	if _, err := svc.Chat(context.Background(), ChatInput{UserID: 1, Query: "   ", Mode: agent.ModeDefault}); err != ErrMessageEmpty {
		t.Fatalf("expected ErrMessageEmpty, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("empty query still reached the model: %d calls", completer.calls)
	}
}
