package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"docinsight/internal/ai"
	"docinsight/internal/model"
	"docinsight/internal/retrieval"
)

const (
	historyWindow     = 10
	messageListLimit  = 200
	excerptLength     = 200
	contextSeparator  = "\n\n---\n\n"
	answerTemperature = 0.7
)

const answerSystemPrompt = `You are a reading assistant. Answer the user's question from the document content provided below.

Rules:
1. Base the answer on the provided context.
2. If the context does not contain the information, say so honestly.
3. Keep the answer accurate, concise and helpful.
4. Quote the original text where it helps.

Document content:
`

// ConversationService answers questions about a document with retrieval over
// its embedded chunks.
type ConversationService struct {
	docs          DocumentStore
	conversations ConversationStore
	messages      MessageStore
	chunks        ChunkStore
	embedder      Embedder
	completer     Completer
	historyCache  HistoryCache
}

func NewConversationService(
	docs DocumentStore,
	conversations ConversationStore,
	messages MessageStore,
	chunks ChunkStore,
	embedder Embedder,
	completer Completer,
	historyCache HistoryCache,
) *ConversationService {
	return &ConversationService{
		docs:          docs,
		conversations: conversations,
		messages:      messages,
		chunks:        chunks,
		embedder:      embedder,
		completer:     completer,
		historyCache:  historyCache,
	}
}

type CreateConversationInput struct {
	UserID     uint
	DocumentID uint
	Title      string
}

type AskInput struct {
	UserID         uint
	ConversationID uint
	Question       string
}

type AskResult struct {
	UserMessage      model.Message `json:"user_message"`
	AssistantMessage model.Message `json:"assistant_message"`
}

func (s *ConversationService) CreateConversation(ctx context.Context, input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == 0 || input.DocumentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndUserID(ctx, input.DocumentID, input.UserID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New conversation"
	}
	conversation := &model.Conversation{
		UserID:     input.UserID,
		DocumentID: doc.ID,
		Title:      title,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// ListConversations returns the document's conversations, most recently active first.
func (s *ConversationService) ListConversations(ctx context.Context, userID, documentID uint) ([]model.Conversation, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	return s.conversations.ListByDocumentAndUser(ctx, documentID, userID)
}

func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID uint) ([]model.Message, error) {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversationID(ctx, conversationID, messageListLimit)
}

// Ask stores the question, retrieves the closest chunks of the conversation's
// document and stores the model's answer. A completion failure is returned
// after the question has already been stored.
func (s *ConversationService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	conversation, err := s.ownedConversation(ctx, input.UserID, input.ConversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.recentHistory(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	userMessage := &model.Message{
		ConversationID: conversation.ID,
		Role:           model.RoleUser,
		Content:        question,
	}
	if err := s.messages.Create(ctx, userMessage); err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, conversation.ID)

	matches, err := s.retrieve(ctx, conversation.DocumentID, question)
	if err != nil {
		return nil, err
	}
	contents := make([]string, len(matches))
	citations := make([]model.Citation, len(matches))
	for i, m := range matches {
		contents[i] = m.Chunk.Content
		citations[i] = model.Citation{
			ChunkID:    m.Chunk.ID,
			ChunkIndex: m.Chunk.ChunkIndex,
			Score:      m.Score,
			Excerpt:    excerpt(m.Chunk.Content),
		}
	}

	prompt := make([]ai.ChatMessage, len(history))
	for i, m := range history {
		prompt[i] = ai.ChatMessage{Role: m.Role, Content: m.Content}
	}
	answer, err := s.completer.Complete(ctx,
		answerSystemPrompt+strings.Join(contents, contextSeparator),
		prompt,
		question,
		ai.CompletionOptions{Temperature: ai.Temp(answerTemperature)},
	)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	assistantMessage := &model.Message{
		ConversationID: conversation.ID,
		Role:           model.RoleAssistant,
		Content:        answer,
		Citations:      datatypes.NewJSONSlice(citations),
	}
	if err := s.messages.Create(ctx, assistantMessage); err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, conversation.ID)

	return &AskResult{UserMessage: *userMessage, AssistantMessage: *assistantMessage}, nil
}

func (s *ConversationService) ownedConversation(ctx context.Context, userID, conversationID uint) (*model.Conversation, error) {
	if userID == 0 || conversationID == 0 {
		return nil, ErrInvalidInput
	}
	conversation, err := s.conversations.GetByIDAndUserID(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

// recentHistory returns the last historyWindow messages, oldest first,
// preferring the cache.
func (s *ConversationService) recentHistory(ctx context.Context, conversationID uint) ([]model.Message, error) {
	if s.historyCache != nil {
		cached, hit, err := s.historyCache.GetHistory(ctx, conversationID)
		if err != nil {
			log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("read history cache failed")
		} else if hit {
			return trimMessages(cached, historyWindow), nil
		}
	}

	messages, err := s.messages.ListRecent(ctx, conversationID, historyWindow)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if err := s.historyCache.SetHistory(ctx, conversationID, messages); err != nil {
			log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("write history cache failed")
		}
	}
	return messages, nil
}

func (s *ConversationService) invalidateHistory(ctx context.Context, conversationID uint) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.DeleteHistory(ctx, conversationID); err != nil {
		log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("invalidate history cache failed")
	}
}

// retrieve returns the top chunks for the question; none when the question
// could not be embedded.
func (s *ConversationService) retrieve(ctx context.Context, documentID uint, question string) ([]retrieval.Match, error) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, nil
	}
	chunks, err := s.chunks.ListByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return retrieval.Search(chunks, vec, retrieval.DefaultTopK), nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func excerpt(content string) string {
	r := []rune(content)
	if len(r) <= excerptLength {
		return content
	}
	return string(r[:excerptLength])
}
