package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"articles-backend/internal/articles"
	googleauth "articles-backend/internal/auth"
	"articles-backend/internal/attachments"
	"articles-backend/internal/resources"
	"articles-backend/internal/shared/auth"
	"articles-backend/internal/shared/config"
	localstore "articles-backend/internal/shared/storage/object/local"
	"articles-backend/internal/uploads"
	"articles-backend/internal/users"
)

var pngPayload = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte("pixels")...)

const testBaseURL = "http://localhost:8080"

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := auth.NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	store := attachments.NewStore(localstore.New(t.TempDir()))
	coordinator := resources.NewCoordinator(store)

	userRepo := users.NewMemoryRepo()
	articleRepo := articles.NewMemoryRepo(func(ctx context.Context, id int64) (string, error) {
		author, err := userRepo.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return author.Name, nil
	})

	userSvc := users.NewService(userRepo, coordinator, issuer)
	articleSvc := articles.NewService(articleRepo, store, coordinator)

	cfg := config.Config{
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		PublicBaseURL:   testBaseURL,
	}

	router := NewRouter(RouterDeps{
		Config:          cfg,
		Issuer:          issuer,
		UsersHandler:    users.NewHandler(userSvc, store, cfg.PublicBaseURL),
		ArticlesHandler: articles.NewHandler(articleSvc, cfg.PublicBaseURL),
		UploadsHandler:  uploads.NewHandler(store, cfg.PublicBaseURL),
		GoogleAuth:      googleauth.NewGoogleService("", "", "", "", userSvc),
	})

	return &apiFixture{t: t, router: router}
}

func (fx *apiFixture) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	fx.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			fx.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func (fx *apiFixture) registerUser(name, email string) string {
	fx.t.Helper()
	rec := fx.doJSON(http.MethodPost, "/api/v1/users/register", "", gin.H{
		"name":     name,
		"email":    email,
		"password": "sekret1",
	})
	if rec.Code != http.StatusCreated {
		fx.t.Fatalf("register %s: %d %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		fx.t.Fatalf("unmarshal register: %v", err)
	}
	return resp.Token
}

func (fx *apiFixture) uploadImage(token, name string) string {
	fx.t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile("image", name)
	if err != nil {
		fx.t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(pngPayload); err != nil {
		fx.t.Fatalf("write part: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/image", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		fx.t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		FilePath string `json:"filePath"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		fx.t.Fatalf("unmarshal upload: %v", err)
	}
	return resp.FilePath
}

func (fx *apiFixture) fileExists(path string) bool {
	fx.t.Helper()
	rec := fx.doJSON(http.MethodGet, "/"+path, "", nil)
	switch rec.Code {
	case http.StatusOK:
		return true
	case http.StatusNotFound:
		return false
	default:
		fx.t.Fatalf("serve %s: unexpected status %d", path, rec.Code)
		return false
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	fx := newAPIFixture(t)

	if rec := fx.doJSON(http.MethodGet, "/api/v1/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	rec := fx.doJSON(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "attachment_staged_total") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequiredOnMutatingRoutes(t *testing.T) {
	fx := newAPIFixture(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/articles"},
		{http.MethodPut, "/api/v1/articles/1"},
		{http.MethodDelete, "/api/v1/articles/1"},
		{http.MethodPost, "/api/v1/articles/1/like"},
		{http.MethodGet, "/api/v1/users/profile"},
		{http.MethodPost, "/api/v1/uploads/image"},
	} {
		rec := fx.doJSON(route.method, route.path, "", gin.H{})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, rec.Code)
		}
	}
}

func TestArticleLifecycleOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	author := fx.registerUser("Ana", "ana@example.com")
	reader := fx.registerUser("Bea", "bea@example.com")

	imagePath := fx.uploadImage(author, "cover.png")
	rec := fx.doJSON(http.MethodPost, "/api/v1/articles", author, gin.H{
		"title":    "Hello",
		"body":     "World",
		"imageUrl": testBaseURL + "/" + imagePath,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID       int64  `json:"id"`
		ImageURL string `json:"imageUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create: %v", err)
	}
	if created.ImageURL != testBaseURL+"/"+imagePath {
		t.Fatalf("unexpected image url %q", created.ImageURL)
	}

	// Anonymous listing sees the article with its author.
	rec = fx.doJSON(http.MethodGet, "/api/v1/articles", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"authorName":"Ana"`) {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}

	// Like toggles on and off.
	likePath := fmt.Sprintf("/api/v1/articles/%d/like", created.ID)
	rec = fx.doJSON(http.MethodPost, likePath, reader, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"liked":true`) {
		t.Fatalf("like: %d %s", rec.Code, rec.Body.String())
	}
	rec = fx.doJSON(http.MethodPost, likePath, reader, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"liked":false`) {
		t.Fatalf("unlike: %d %s", rec.Code, rec.Body.String())
	}

	// A non-author update is forbidden and its staged image is discarded.
	intruderImage := fx.uploadImage(reader, "intruder.png")
	articlePath := fmt.Sprintf("/api/v1/articles/%d", created.ID)
	rec = fx.doJSON(http.MethodPut, articlePath, reader, gin.H{
		"title":    "Hijacked",
		"imageUrl": intruderImage,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("forbidden update: %d %s", rec.Code, rec.Body.String())
	}
	if fx.fileExists(intruderImage) {
		t.Fatalf("staged image survived forbidden update")
	}

	// The author replaces the image; the old file is retired after the write.
	newImage := fx.uploadImage(author, "new-cover.png")
	rec = fx.doJSON(http.MethodPut, articlePath, author, gin.H{"imageUrl": newImage})
	if rec.Code != http.StatusOK {
		t.Fatalf("replace image: %d %s", rec.Code, rec.Body.String())
	}
	if fx.fileExists(imagePath) {
		t.Fatalf("old image not retired")
	}
	if !fx.fileExists(newImage) {
		t.Fatalf("new image missing")
	}

	// Explicit null detaches and retires the image.
	rec = fx.doJSON(http.MethodPut, articlePath, author, json.RawMessage(`{"imageUrl":null}`))
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), `"imageUrl"`) {
		t.Fatalf("clear image: %d %s", rec.Code, rec.Body.String())
	}
	if fx.fileExists(newImage) {
		t.Fatalf("cleared image not retired")
	}

	// Delete removes the article.
	if rec := fx.doJSON(http.MethodDelete, articlePath, author, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := fx.doJSON(http.MethodGet, articlePath, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
}

func TestProfileUpdateOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.registerUser("Ana", "ana@example.com")

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	_ = w.WriteField("name", "Ana Maria")
	fw, err := w.CreateFormFile("avatar", "avatar.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(pngPayload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/profile", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if resp.Name != "Ana Maria" || !strings.HasPrefix(resp.AvatarURL, testBaseURL+"/uploads/") {
		t.Fatalf("unexpected profile %+v", resp)
	}

	avatarPath := strings.TrimPrefix(resp.AvatarURL, testBaseURL+"/")
	if !fx.fileExists(avatarPath) {
		t.Fatalf("avatar not stored")
	}

	// An empty avatar_url field clears the avatar and retires the file.
	buf = &bytes.Buffer{}
	w = multipart.NewWriter(buf)
	_ = w.WriteField("avatar_url", "")
	w.Close()

	req = httptest.NewRequest(http.MethodPut, "/api/v1/users/profile", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), `"avatarUrl"`) {
		t.Fatalf("clear avatar: %d %s", rec.Code, rec.Body.String())
	}
	if fx.fileExists(avatarPath) {
		t.Fatalf("cleared avatar not retired")
	}
}

func TestLoginRateLimited(t *testing.T) {
	fx := newAPIFixture(t)
	fx.registerUser("Ana", "ana@example.com")

	var last int
	for i := 0; i < 15; i++ {
		rec := fx.doJSON(http.MethodPost, "/api/v1/users/login", "", gin.H{
			"email":    "ana@example.com",
			"password": "wrong-pass",
		})
		last = rec.Code
		if last == http.StatusTooManyRequests {
			break
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated login attempts, got %d", last)
	}
}
