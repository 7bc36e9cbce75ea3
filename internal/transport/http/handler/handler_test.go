package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docinsight/internal/app"
	"docinsight/internal/model"
	"docinsight/internal/transport/http/middleware"
	"docinsight/internal/transport/http/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDocuments struct {
	upload    app.UploadInput
	uploadErr error
	getErr    error
	deleted   []uint
}

func (f *fakeDocuments) Upload(_ context.Context, in app.UploadInput) (*model.Document, error) {
	f.upload = in
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &model.Document{ID: 9, UserID: in.UserID, Title: in.Title, Status: model.StatusProcessing}, nil
}

func (f *fakeDocuments) List(_ context.Context, userID uint) ([]model.Document, error) {
	return []model.Document{{ID: 1, UserID: userID}}, nil
}

func (f *fakeDocuments) Get(_ context.Context, userID, documentID uint) (*app.DocumentDetail, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &app.DocumentDetail{Document: model.Document{ID: documentID, UserID: userID}, Progress: 0.5}, nil
}

func (f *fakeDocuments) Delete(_ context.Context, _, documentID uint) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeDocuments) Reanalyze(_ context.Context, _, documentID uint) (*model.Document, error) {
	if documentID == 2 {
		return nil, app.ErrDocumentNotRunnable
	}
	return &model.Document{ID: documentID}, nil
}

type fakeConversations struct {
	ask    app.AskInput
	askErr error
}

func (f *fakeConversations) CreateConversation(_ context.Context, in app.CreateConversationInput) (*model.Conversation, error) {
	return &model.Conversation{ID: 3, UserID: in.UserID, DocumentID: in.DocumentID, Title: "New conversation"}, nil
}

func (f *fakeConversations) ListConversations(_ context.Context, _, _ uint) ([]model.Conversation, error) {
	return []model.Conversation{}, nil
}

func (f *fakeConversations) ListMessages(_ context.Context, _, conversationID uint) ([]model.Message, error) {
	if conversationID == 404 {
		return nil, app.ErrConversationNotFound
	}
	return []model.Message{{ID: 1, ConversationID: conversationID}}, nil
}

func (f *fakeConversations) Ask(_ context.Context, in app.AskInput) (*app.AskResult, error) {
	f.ask = in
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &app.AskResult{
		UserMessage:      model.Message{Role: model.RoleUser, Content: in.Question},
		AssistantMessage: model.Message{Role: model.RoleAssistant, Content: "answer"},
	}, nil
}

func withUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Next()
	}
}

func newTestRouter(docs DocumentService, convs ConversationService) *gin.Engine {
	r := gin.New()
	api := r.Group("/", withUser(7))
	dh := NewDocumentHandler(docs, 1024)
	ch := NewConversationHandler(convs)
	api.POST("/documents", dh.Upload)
	api.GET("/documents", dh.List)
	api.GET("/documents/:id", dh.Get)
	api.DELETE("/documents/:id", dh.Delete)
	api.POST("/documents/:id/analyze", dh.Analyze)
	api.POST("/conversations", ch.Create)
	api.GET("/conversations/:id/messages", ch.ListMessages)
	api.POST("/conversations/:id/messages", ch.Ask)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var body response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func multipartUpload(t *testing.T, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestDocumentHandler_Upload(t *testing.T) {
	docs := &fakeDocuments{}
	r := newTestRouter(docs, &fakeConversations{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartUpload(t, "book.txt", []byte("hello"), map[string]string{"title": "Book", "author": "Ann"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, response.CodeOK, decode(t, rec).Code)
	assert.Equal(t, uint(7), docs.upload.UserID)
	assert.Equal(t, "book.txt", docs.upload.FileName)
	assert.Equal(t, "Book", docs.upload.Title)
	assert.Equal(t, "Ann", docs.upload.Author)
	assert.Equal(t, []byte("hello"), docs.upload.Data)
}

func TestDocumentHandler_UploadErrors(t *testing.T) {
	t.Run("too large", func(t *testing.T) {
		r := newTestRouter(&fakeDocuments{}, &fakeConversations{})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartUpload(t, "big.txt", make([]byte, 2048), nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, response.CodeFileTooLarge, decode(t, rec).Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		r := newTestRouter(&fakeDocuments{uploadErr: app.ErrUnsupportedFileType}, &fakeConversations{})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartUpload(t, "a.exe", []byte("x"), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, response.CodeUnsupportedFileType, decode(t, rec).Code)
	})

	t.Run("missing file", func(t *testing.T) {
		r := newTestRouter(&fakeDocuments{}, &fakeConversations{})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDocumentHandler_GetAndDelete(t *testing.T) {
	docs := &fakeDocuments{}
	r := newTestRouter(docs, &fakeConversations{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"progress":0.5`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	docs.getErr = app.ErrDocumentNotFound
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/5", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeDocumentNotFound, decode(t, rec).Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{5}, docs.deleted)
}

func TestDocumentHandler_Analyze(t *testing.T) {
	r := newTestRouter(&fakeDocuments{}, &fakeConversations{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents/1/analyze", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents/2/analyze", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.CodeDocumentNotRunnable, decode(t, rec).Code)
}

func TestConversationHandler_Ask(t *testing.T) {
	convs := &fakeConversations{}
	r := newTestRouter(&fakeDocuments{}, convs)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/3/messages", strings.NewReader(`{"question":"why?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.AskInput{UserID: 7, ConversationID: 3, Question: "why?"}, convs.ask)
	assert.Contains(t, rec.Body.String(), `"assistant_message"`)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/conversations/3/messages", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	convs.askErr = app.ErrConversationNotFound
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/conversations/3/messages", strings.NewReader(`{"question":"why?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeConversationNotFound, decode(t, rec).Code)
}

func TestConversationHandler_CreateAndList(t *testing.T) {
	r := newTestRouter(&fakeDocuments{}, &fakeConversations{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations", strings.NewReader(`{"document_id":5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"document_id":5`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/404/messages", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type memUsers struct {
	byID map[uint]*model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	u.ID = uint(len(m.byID) + 1)
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	for _, u := range m.byID {
		if match(u) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByUsername(_ context.Context, name string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == name })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m *memUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	return m.byID[id], nil
}

func TestAuthHandler_RegisterThenMe(t *testing.T) {
	const secret = "test-secret"
	h := NewAuthHandler(app.NewAuthService(&memUsers{byID: map[uint]*model.User{}}, secret, time.Hour))
	r := gin.New()
	r.POST("/register", h.Register)
	r.GET("/me", middleware.AuthJWT(secret), h.Me)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"password1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.Token)
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"username":"alice","email":"a2@example.com","password":"password1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.CodeUsernameExists, decode(t, rec).Code)
}

func TestAuthHandler_ErrorMapping(t *testing.T) {
	h := NewAuthHandler(app.NewAuthService(&memUsers{byID: map[uint]*model.User{}}, "test-secret", time.Hour))
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	post := func(path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/register", `{"username":"bob","email":"bob@example.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post("/register", `{"username":"bobby","email":"BOB@example.com","password":"password1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.CodeEmailExists, decode(t, rec).Code)

	rec = post("/login", `{"username":"bob","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, response.CodeInvalidCredentials, decode(t, rec).Code)

	rec = post("/login", `{"username":"bob","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"bob"`)
}
