package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"vrstore/pkg/database"
)

const (
	testUser     = "curator"
	testPassword = "correct-horse"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))
	return NewRepo(db)
}

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "vrstore-test", Duration: time.Hour}
}

func newTestRouter(t *testing.T) (*gin.Engine, *Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newTestRepo(t)
	created, err := EnsureAdmin(context.Background(), repo, testUser, testPassword, log.New(io.Discard))
	require.NoError(t, err)
	require.True(t, created)

	h := NewHandler(repo, testTokens())
	r := gin.New()
	h.RegisterRoutes(r.Group("/auth"))
	r.GET("/admin/ping", h.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": MustGetClaims(c).Username})
	})
	return r, repo
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func login(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()
	w, body := call(t, r, http.MethodPost, "/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestTokenRoundTrip(t *testing.T) {
	ts := testTokens()
	token, exp, err := ts.Sign(&Admin{ID: "a1", Username: "curator", TokenVersion: 3})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "a1", claims.AdminID)
	require.Equal(t, 3, claims.TokenVersion)

	other := ts
	other.Secret = []byte("other")
	_, err = other.Parse(token)
	require.Error(t, err)

	wrongIssuer := ts
	wrongIssuer.Issuer = "someone-else"
	_, err = wrongIssuer.Parse(token)
	require.Error(t, err)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{AdminID: "a1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "vrstore-test"}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = testTokens().Parse(raw)
	require.Error(t, err)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	quiet := log.New(io.Discard)

	created, err := EnsureAdmin(ctx, repo, testUser, testPassword, quiet)
	require.NoError(t, err)
	require.True(t, created)

	created, err = EnsureAdmin(ctx, repo, "CURATOR", "another-password", quiet)
	require.NoError(t, err)
	require.False(t, created)

	created, err = EnsureAdmin(ctx, repo, "", "", quiet)
	require.NoError(t, err)
	require.False(t, created)

	_, err = EnsureAdmin(ctx, repo, "x", "short", quiet)
	require.Error(t, err)

	admins, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
}

func TestLogin(t *testing.T) {
	r, _ := newTestRouter(t)

	token := login(t, r, testUser, testPassword)
	w, body := call(t, r, http.MethodGet, "/admin/ping", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, testUser, body["admin"])

	w, _ = call(t, r, http.MethodPost, "/auth/login", "", gin.H{"username": testUser, "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(t, r, http.MethodPost, "/auth/login", "", gin.H{"username": "ghost", "password": testPassword})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(t, r, http.MethodPost, "/auth/login", "", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddlewareRejects(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := call(t, r, http.MethodGet, "/admin/ping", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "missing bearer token", body["error"])

	w, _ = call(t, r, http.MethodGet, "/admin/ping", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// a well-signed token for an admin that does not exist
	ghost, _, err := testTokens().Sign(&Admin{ID: "ghost", Username: "ghost"})
	require.NoError(t, err)
	w, _ = call(t, r, http.MethodGet, "/admin/ping", ghost, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	r, _ := newTestRouter(t)
	token := login(t, r, testUser, testPassword)

	w, _ := call(t, r, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, r, http.MethodGet, "/admin/ping", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	fresh := login(t, r, testUser, testPassword)
	w, _ = call(t, r, http.MethodGet, "/admin/ping", fresh, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestChangePassword(t *testing.T) {
	r, _ := newTestRouter(t)
	token := login(t, r, testUser, testPassword)

	w, _ := call(t, r, http.MethodPost, "/auth/change-password", token, gin.H{"oldPassword": "nope-nope", "newPassword": "brand-new-pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call(t, r, http.MethodPost, "/auth/change-password", token, gin.H{"oldPassword": testPassword, "newPassword": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, r, http.MethodPost, "/auth/change-password", token, gin.H{"oldPassword": testPassword, "newPassword": "brand-new-pass"})
	require.Equal(t, http.StatusOK, w.Code)

	// old token is revoked, old password no longer works
	w, _ = call(t, r, http.MethodGet, "/admin/ping", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(t, r, http.MethodPost, "/auth/login", "", gin.H{"username": testUser, "password": testPassword})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	login(t, r, testUser, "brand-new-pass")
}

func TestCreateAdmin(t *testing.T) {
	r, repo := newTestRouter(t)
	token := login(t, r, testUser, testPassword)

	w, _ := call(t, r, http.MethodPost, "/auth/admins", "", gin.H{"username": "second", "password": "second-pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := call(t, r, http.MethodPost, "/auth/admins", token, gin.H{"username": "second", "password": "second-pass"})
	require.Equal(t, http.StatusCreated, w.Code)
	admin := body["admin"].(map[string]any)
	require.Equal(t, "second", admin["username"])
	require.NotContains(t, admin, "PasswordHash")

	w, _ = call(t, r, http.MethodPost, "/auth/admins", token, gin.H{"username": "Second", "password": "second-pass"})
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = call(t, r, http.MethodPost, "/auth/admins", token, gin.H{"username": "ok-name", "password": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, body = call(t, r, http.MethodGet, "/auth/admins", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["items"], 2)

	login(t, r, "second", "second-pass")

	got, err := repo.GetByUsername(context.Background(), "SECOND")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.False(t, got.CreatedAt.IsZero())
}
