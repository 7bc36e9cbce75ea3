package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"docinsight/internal/ai"
	"docinsight/internal/model"
)

// memStore is an in-memory stand-in for the gorm repositories. Reads return
// copies so services see the same staleness they would against a database.
type memStore struct {
	mu            sync.Mutex
	nextID        uint
	users         map[uint]model.User
	docs          map[uint]model.Document
	chunks        map[uint]model.Chunk
	analyses      []model.ChunkAnalysis
	reports       []model.DocumentReport
	conversations map[uint]model.Conversation
	messages      []model.Message
	statusLog     []model.DocumentStatus
	failDocReads  int // GetByID fails this many times before reading normally
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[uint]model.User{},
		docs:          map[uint]model.Document{},
		chunks:        map[uint]model.Chunk{},
		conversations: map[uint]model.Conversation{},
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) doc(id uint) model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func (m *memStore) statuses() []model.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DocumentStatus(nil), m.statusLog...)
}

type userStore struct{ *memStore }

func (s userStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	s.users[u.ID] = *u
	return nil
}

func (s userStore) find(match func(model.User) bool) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

func (s userStore) GetByUsername(_ context.Context, name string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.Username == name }), nil
}

func (s userStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.Email == email }), nil
}

func (s userStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == id }), nil
}

type docStore struct{ *memStore }

func (s docStore) Create(_ context.Context, d *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.id()
	s.docs[d.ID] = *d
	return nil
}

func (s docStore) GetByID(_ context.Context, id uint) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDocReads > 0 {
		s.failDocReads--
		return nil, errors.New("database is closed")
	}
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s docStore) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	d, _ := s.GetByID(ctx, id)
	if d == nil || d.UserID != userID {
		return nil, nil
	}
	return d, nil
}

func (s docStore) ListByUserID(_ context.Context, userID uint) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, d := range s.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s docStore) UpdateStatus(_ context.Context, id uint, status model.DocumentStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	d.Status = status
	d.ErrorMessage = message
	s.docs[id] = d
	s.statusLog = append(s.statusLog, status)
	return nil
}

func (s docStore) SetChunkStats(_ context.Context, id uint, total, words int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	d.TotalChunks = total
	d.WordCount = words
	d.ProcessedChunks = 0
	s.docs[id] = d
	return nil
}

func (s docStore) IncrementProcessed(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	d.ProcessedChunks++
	s.docs[id] = d
	return nil
}

func (s docStore) DeleteCascade(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	for cid, c := range s.chunks {
		if c.DocumentID == id {
			delete(s.chunks, cid)
		}
	}
	return nil
}

type chunkStore struct{ *memStore }

func (s chunkStore) CreateBatch(_ context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		chunks[i].ID = s.id()
		s.chunks[chunks[i].ID] = chunks[i]
	}
	return nil
}

func (s chunkStore) ListByDocumentID(_ context.Context, documentID uint) ([]model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (s chunkStore) UpdateEmbedding(_ context.Context, id uint, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chunks[id]
	c.SetEmbedding(vec)
	s.chunks[id] = c
	return nil
}

func (s chunkStore) DeleteByDocumentID(_ context.Context, documentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

type analysisStore struct{ *memStore }

func (s analysisStore) Create(_ context.Context, a *model.ChunkAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.analyses = append(s.analyses, *a)
	return nil
}

func (s analysisStore) ListByDocumentID(_ context.Context, documentID uint) ([]model.ChunkAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ChunkAnalysis
	for _, a := range s.analyses {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (s analysisStore) CountByDocumentID(ctx context.Context, documentID uint) (int64, error) {
	out, _ := s.ListByDocumentID(ctx, documentID)
	return int64(len(out)), nil
}

func (s analysisStore) DeleteByDocumentID(_ context.Context, documentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.analyses[:0]
	for _, a := range s.analyses {
		if a.DocumentID != documentID {
			kept = append(kept, a)
		}
	}
	s.analyses = kept
	return nil
}

type reportStore struct{ *memStore }

func (s reportStore) Create(_ context.Context, r *model.DocumentReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.reports = append(s.reports, *r)
	return nil
}

func (s reportStore) GetByDocumentID(_ context.Context, documentID uint) (*model.DocumentReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].DocumentID == documentID {
			r := s.reports[i]
			return &r, nil
		}
	}
	return nil, nil
}

type conversationStore struct{ *memStore }

func (s conversationStore) Create(_ context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.conversations[c.ID] = *c
	return nil
}

func (s conversationStore) GetByIDAndUserID(_ context.Context, id, userID uint) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return &c, nil
}

func (s conversationStore) ListByDocumentAndUser(_ context.Context, documentID, userID uint) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Conversation
	for _, c := range s.conversations {
		if c.DocumentID == documentID && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type messageStore struct{ *memStore }

func (s messageStore) Create(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.messages = append(s.messages, *m)
	return nil
}

func (s messageStore) ListByConversationID(_ context.Context, conversationID uint, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s messageStore) ListRecent(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	all, _ := s.ListByConversationID(ctx, conversationID, len(s.messages)+1)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	putErr  error
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}}
}

func (b *memBlobs) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.data[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data[key], nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	b.deleted = append(b.deleted, key)
	return nil
}

type fakePublisher struct {
	err       error
	published []uint
}

func (p *fakePublisher) PublishAnalysis(_ context.Context, documentID uint) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, documentID)
	return nil
}

type fakeGuard struct {
	busy      bool
	err       error
	released  int
	extended  int
	extendErr error
	lostAfter int // Extend reports the lock lost once it has been called this many times
}

func (g *fakeGuard) Acquire(context.Context, uint) (func(), bool, error) {
	if g.err != nil {
		return nil, false, g.err
	}
	if g.busy {
		return nil, false, nil
	}
	return func() { g.released++ }, true, nil
}

func (g *fakeGuard) Extend(context.Context, uint) (bool, error) {
	if g.extendErr != nil {
		return false, g.extendErr
	}
	if g.lostAfter > 0 && g.extended >= g.lostAfter {
		return false, nil
	}
	g.extended++
	return true, nil
}

// fakeAnalyzer fails AnalyzeChunk for texts matched by failWhen.
type fakeAnalyzer struct {
	mu          sync.Mutex
	failWhen    func(text string) bool
	reportErr   error
	sentiment   string
	reportCalls int
	gotInsights []ai.ChunkInsight
	analyzed    []string
	onEmbed     func(text string)
}

func (a *fakeAnalyzer) AnalyzeChunk(_ context.Context, text string) (ai.ChunkInsight, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyzed = append(a.analyzed, text)
	if a.failWhen != nil && a.failWhen(text) {
		return ai.ChunkInsight{}, errors.New("provider unavailable")
	}
	sentiment := a.sentiment
	if sentiment == "" {
		sentiment = ai.SentimentPositive
	}
	return ai.ChunkInsight{
		Summary:   "summary of " + text[:min(len(text), 8)],
		Sentiment: sentiment,
		Themes:    []string{"theme"},
	}, nil
}

func (a *fakeAnalyzer) Embed(ctx context.Context, text string) ([]float32, error) {
	if a.onEmbed != nil {
		a.onEmbed(text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []float32{1, 0}, nil
}

func (a *fakeAnalyzer) GenerateReport(_ context.Context, _ string, insights []ai.ChunkInsight) (ai.ReportResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reportCalls++
	a.gotInsights = insights
	if a.reportErr != nil {
		return ai.ReportResult{}, a.reportErr
	}
	return ai.ReportResult{CoreSummary: "overall"}, nil
}
