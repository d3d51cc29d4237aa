package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"unscored/internal/config"
	"unscored/internal/middleware"
	"unscored/internal/models"
	"unscored/internal/repository"
	"unscored/internal/service"
	"unscored/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakePlatform struct {
	posts map[uint64]*models.Envelope
}

func (p *fakePlatform) Post(_ context.Context, id uint64, _ bool, _ time.Duration) (*models.Envelope, error) {
	if env, ok := p.posts[id]; ok {
		return env, nil
	}
	return nil, models.NewUpstreamError("post not found")
}

func (p *fakePlatform) NewPosts(context.Context, string, string, time.Duration) (*models.Envelope, error) {
	return &models.Envelope{Status: true}, nil
}

func (p *fakePlatform) UserAbout(_ context.Context, username string) (*models.Envelope, error) {
	return &models.Envelope{Status: true, Users: []models.LiveUser{{Username: username}}}, nil
}

func (p *fakePlatform) ProfilePosts(context.Context, string, int) (*models.Envelope, error) {
	return &models.Envelope{Status: true}, nil
}

func (p *fakePlatform) ProfileComments(context.Context, string, int) (*models.Envelope, error) {
	return &models.Envelope{Status: true}, nil
}

func (p *fakePlatform) ProfileContent(context.Context, string, int, int) (*models.Envelope, error) {
	return &models.Envelope{Status: true}, nil
}

type serverFixture struct {
	db       *gorm.DB
	platform *fakePlatform
	writer   *service.Writer
	server   *Server
}

func newServerFixture(t *testing.T, rateLimit int) *serverFixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewTestDB(t)

	stateRepo := repository.NewStateRepository(db)
	registry := repository.NewStateRegistry(stateRepo)
	_, err := registry.Register(ctx, models.IngestState{Community: "test", IntervalSeconds: 60})
	require.NoError(t, err)

	interner := repository.NewInterner()
	writer := service.NewWriter(interner, service.WriterConfig{ReportingEnabled: true})
	reconciler := service.NewReconciler(writer, registry, service.ReconcileConfig{})
	platform := &fakePlatform{posts: map[uint64]*models.Envelope{}}
	archive := service.NewArchiveService(db, platform, repository.NewArchiveRepository(db), interner,
		registry, writer, reconciler, service.ReadLimits{Feed: 2, Profile: 5})

	blocks := middleware.NewBlocklist(stateRepo)
	require.NoError(t, blocks.Load(ctx))

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret-key-12345678901234567890123456789012",
		RateLimit:         rateLimit,
	}

	return &serverFixture{
		db:       db,
		platform: platform,
		writer:   writer,
		server:   NewServer(cfg, db, nil, archive, blocks),
	}
}

func (f *serverFixture) archivePost(t *testing.T, p models.LivePost) {
	t.Helper()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.writer.UpsertPost(context.Background(), tx, &p)
		return err
	}))
}

func (f *serverFixture) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func (f *serverFixture) get(t *testing.T, target string) (*http.Response, []byte) {
	return f.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func (f *serverFixture) adminGet(t *testing.T, target, token string) (*http.Response, []byte) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return f.do(t, req)
}

func (f *serverFixture) postForm(t *testing.T, target string, form url.Values, token string) (*http.Response, []byte) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.do(t, req)
}

func (f *serverFixture) login(t *testing.T) string {
	t.Helper()
	resp, body := f.postForm(t, "/ajax/admin-login", url.Values{"username": {"admin"}, "password": {"hunter2"}}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func decodeError(t *testing.T, body []byte) models.ErrorResponse {
	t.Helper()
	var out models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestHealthChecks(t *testing.T) {
	f := newServerFixture(t, 0)

	resp, _ := f.get(t, "/health/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.get(t, "/health/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, "healthy", out.Checks["database"])
	assert.Equal(t, "disabled", out.Checks["redis"])
}

func TestParseURLRoute(t *testing.T) {
	f := newServerFixture(t, 0)

	resp, body := f.get(t, "/ajax/parseurl.json?url="+url.QueryEscape("c/test"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var parsed service.ParsedURL
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "test", parsed.Community)
	assert.Equal(t, "/c/test/new", parsed.NormalizedPath)

	resp, body = f.get(t, "/ajax/parseurl.json?url="+url.QueryEscape("https://scored.co/settings"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeInvalidURL, decodeError(t, body).Code)
}

func TestGetThread(t *testing.T) {
	f := newServerFixture(t, 0)
	post := testutil.LivePost(1000, "test", "alice")
	f.platform.posts[1000] = &models.Envelope{Status: true, Posts: []models.LivePost{post}}

	resp, body := f.get(t, "/ajax/thread.json?post_id=1000")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var thread models.Thread
	require.NoError(t, json.Unmarshal(body, &thread))
	require.NotNil(t, thread.Post)
	assert.Equal(t, uint64(1000), thread.Post.ID)
	assert.Equal(t, post.Title, thread.Post.Title)

	resp, body = f.get(t, "/ajax/thread.json?post_uuid="+post.UUID)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestGetThreadErrors(t *testing.T) {
	f := newServerFixture(t, 0)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing id", "/ajax/thread.json", http.StatusBadRequest, ""},
		{"non-numeric id", "/ajax/thread.json?post_id=abc", http.StatusBadRequest, ""},
		{"malformed uuid", "/ajax/thread.json?post_uuid=!!", http.StatusBadRequest, models.CodeMalformedIdentifier},
		{"unknown post", "/ajax/thread.json?post_id=77", http.StatusBadGateway, models.CodeRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.get(t, tt.target)
			assert.Equal(t, tt.status, resp.StatusCode)
			errResp := decodeError(t, body)
			assert.NotEmpty(t, errResp.Error)
			if tt.code != "" {
				assert.Equal(t, tt.code, errResp.Code)
			}
		})
	}
}

func TestGetModlogsRequiresCommunity(t *testing.T) {
	f := newServerFixture(t, 0)

	resp, _ := f.get(t, "/ajax/logs.json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.get(t, "/ajax/logs.json?community=test")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var page models.ModlogPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Empty(t, page.Records)
}

func TestGetCommunities(t *testing.T) {
	f := newServerFixture(t, 0)

	resp, body := f.get(t, "/ajax/communities.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page models.CommunityPage
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Communities, 1)
	assert.Equal(t, "test", page.Communities[0].Name)
	assert.Equal(t, 1, page.Page)
}

func TestRemovalRequestFlow(t *testing.T) {
	f := newServerFixture(t, 0)
	f.archivePost(t, testutil.LivePost(5, "test", "alice"))

	form := url.Values{"type": {"post"}, "id": {"5"}, "reason": {"copyright"}}
	resp, body := f.postForm(t, "/ajax/removal-request", form, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = f.postForm(t, "/ajax/removal-request", form, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeNotReportable, decodeError(t, body).Code)

	resp, _ = f.postForm(t, "/ajax/removal-request", url.Values{"type": {"user"}, "id": {"5"}}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.get(t, "/ajax/admin/removal-requests")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := f.login(t)
	resp, body = f.adminGet(t, "/ajax/admin/removal-requests", token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var listing struct {
		Requests []models.RemovalRequestView `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	require.Len(t, listing.Requests, 1)
	assert.Equal(t, "copyright", listing.Requests[0].Reason)
	require.NotNil(t, listing.Requests[0].PostID)
	assert.Equal(t, uint64(5), *listing.Requests[0].PostID)

	resp, body = f.postForm(t, "/ajax/admin/legal-remove-item", url.Values{"type": {"post"}, "id": {"5"}}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = f.adminGet(t, "/ajax/admin/removal-requests", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Empty(t, listing.Requests)
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	f := newServerFixture(t, 0)

	resp, body := f.postForm(t, "/ajax/admin-login", url.Values{"username": {"admin"}, "password": {"nope"}}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", decodeError(t, body).Error)
}

func TestBlockIP(t *testing.T) {
	f := newServerFixture(t, 0)
	token := f.login(t)

	resp, body := f.postForm(t, "/ajax/admin/block-ip", url.Values{"ip": {"0.0.0.0"}}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = f.adminGet(t, "/ajax/admin/ip-blocks", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.0.0.0", string(body))

	resp, body = f.get(t, "/ajax/communities.json")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.CodeRequestBlocked, decodeError(t, body).Code)

	resp, _ = f.get(t, "/ajax/parseurl.json?url=c/test")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "url parsing is never limited")

	resp, body = f.postForm(t, "/ajax/admin/unblock-ip", url.Values{"ip": {"0.0.0.0"}}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":true}`, string(body))

	resp, _ = f.get(t, "/ajax/communities.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitedRoutes(t *testing.T) {
	f := newServerFixture(t, 2)

	for i := 0; i < 2; i++ {
		resp, _ := f.get(t, "/ajax/communities.json")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := f.get(t, "/ajax/communities.json")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Rate limit exceeded", decodeError(t, body).Error)
}
