package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"ziabot/internal/agent"
	"ziabot/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
)

// SessionStore is the subset of the session repository the chat service needs.
type SessionStore interface {
	Create(session *model.Session) error
	ListByUserID(userID uint) ([]model.Session, error)
	GetByIDAndUserID(sessionID, userID uint) (*model.Session, error)
}

// MessageStore persists and reads turns. AppendPair must commit the user
// query and the assistant reply in one transaction.
type MessageStore interface {
	ListBySessionID(sessionID uint) ([]model.Message, error)
	ListByUserID(userID uint) ([]model.Message, error)
	AppendPair(sessionID, userID uint, query, reply string) ([]model.Message, error)
}

// FileStore yields the most recent upload for file-context assembly.
type FileStore interface {
	GetLatestByUserID(userID uint) (*model.UserFile, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.ChatEvent) error
}

type ChatService struct {
	sessions     SessionStore
	messages     MessageStore
	files        FileStore
	historyCache HistoryCache
	events       EventPublisher
	runner       *agent.Runner
	models       agent.ModelSet
}

type ChatInput struct {
	UserID    uint
	SessionID uint
	Query     string
	Mode      agent.Mode
}

type ChatResult struct {
	Reply     string
	SessionID uint
	Messages  []model.Message
	Stages    []agent.StageResult
}

func NewChatService(
	sessions SessionStore,
	messages MessageStore,
	files FileStore,
	historyCache HistoryCache,
	events EventPublisher,
	runner *agent.Runner,
	models agent.ModelSet,
) *ChatService {
	return &ChatService{
		sessions:     sessions,
		messages:     messages,
		files:        files,
		historyCache: historyCache,
		events:       events,
		runner:       runner,
		models:       models,
	}
}

// Chat runs one full turn: resolve the session, assemble context, execute the
// agent pipeline, record the turn pair, and report a usage event.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrMessageEmpty
	}

	// An existing session is resolved up front; a new one is not created
	// until the pipeline has produced a reply, so a failed call leaves no
	// empty session behind.
	var session *model.Session
	if input.SessionID != 0 {
		existing, err := s.sessions.GetByIDAndUserID(input.SessionID, input.UserID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrSessionNotFound
		}
		session = existing
	}

	var history []model.Message
	if session != nil {
		loaded, err := s.loadHistory(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		history = loaded
	}

	pctx := agent.PromptContext{
		Query:       query,
		Timestamp:   time.Now(),
		History:     renderHistory(history),
		FileContext: s.fileContext(input.UserID, query),
	}
	stages, err := agent.BuildStages(input.Mode, s.models, pctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := s.runner.Run(ctx, stages)
	if err != nil {
		return nil, err
	}
	reply := result.Reply
	if reply == "" {
		reply = "The model returned an empty response."
	}

	if session == nil {
		session = &model.Session{
			UserID: input.UserID,
			Title:  deriveTitle(query),
		}
		if err := s.sessions.Create(session); err != nil {
			return nil, err
		}
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, session.ID)
		_ = s.historyCache.DeleteHistory(ctx, session.ID)
	}
	pair, err := s.messages.AppendPair(session.ID, input.UserID, query, reply)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, model.ChatEvent{
		UserID:     input.UserID,
		SessionID:  session.ID,
		Mode:       string(input.Mode),
		StageCount: len(stages),
		LatencyMS:  time.Since(started).Milliseconds(),
	})

	return &ChatResult{
		Reply:     reply,
		SessionID: session.ID,
		Messages:  pair,
		Stages:    result.Stages,
	}, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.ListByUserID(userID)
}

// GetSessionMessages returns the transcript of one session after verifying
// ownership; a session owned by another account reads as not found.
func (s *ChatService) GetSessionMessages(ctx context.Context, userID, sessionID uint) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return s.loadHistory(ctx, sessionID)
}

// ListAllMessages returns every turn across all of the user's sessions,
// oldest first.
func (s *ChatService) ListAllMessages(userID uint) ([]model.Message, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.messages.ListByUserID(userID)
}

func (s *ChatService) loadHistory(ctx context.Context, sessionID uint) ([]model.Message, error) {
	if s.historyCache != nil {
		if dirty, err := s.historyCache.IsDirty(ctx, sessionID); err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messages.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, err := s.historyCache.IsDirty(ctx, sessionID); err == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

// fileContext applies the keyword heuristic and, when the query is
// file-related, substitutes the most recent upload's content. Lookup failures
// degrade to the sentinel rather than failing the chat call.
func (s *ChatService) fileContext(userID uint, query string) string {
	if !queryMentionsFile(query) {
		return noFileContextSentinel
	}
	file, err := s.files.GetLatestByUserID(userID)
	if err != nil {
		log.Printf("load latest file for user %d failed: %v", userID, err)
		return noFileContextSentinel
	}
	if file == nil {
		return noFileContextSentinel
	}
	return file.Content
}

func (s *ChatService) publishEvent(ctx context.Context, event model.ChatEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("publish chat event failed: %v", err)
	}
}
