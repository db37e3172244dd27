package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dbcontext"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dbtest"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
)

var secret = []byte("test-secret")

func newServer(t *testing.T) http.Handler {
	t.Helper()
	c := metadata.NewCatalog()
	c.AddTable(entity.FapTable{TableName: "Note"})
	c.AddColumns(metadata.SystemColumns("Note")...)
	c.AddColumns(entity.FapColumn{TableName: "Note", ColName: "Body"})

	db := dbcontext.New(txn.FromDB(dbtest.Open(t)), c)
	require.NoError(t, db.EnsureSchema(t.Context()))

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	return RegisterRoutes(zap.NewNop().Sugar(), db, Options{JWTSecret: secret, Gatherer: reg})
}

func serve(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	h := newServer(t)

	rr := serve(h, http.MethodGet, Prefix+"/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = serve(h, http.MethodGet, Prefix+"/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecordsRequireToken(t *testing.T) {
	h := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, Prefix+"/records/Note", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, Prefix+"/records/Note", "garbage", "").Code)

	token, err := appctx.IssueToken(&appctx.Context{EmpUid: "emp-9", EmpName: "Kim"}, secret, "test", time.Minute)
	require.NoError(t, err)

	rr := serve(h, http.MethodPost, Prefix+"/records/Note", token, `{"Body":"hello"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"CreateBy":"emp-9"`)

	rr = serve(h, http.MethodGet, Prefix+"/records/Note", token, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hello")

	rr = serve(h, http.MethodGet, Prefix+"/metrics", "", "")
	assert.Contains(t, rr.Body.String(), "fap_dbcontext_operations_total")
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	called := false
	h := AuthMiddleware(zap.NewNop().Sugar(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	serve(h, http.MethodGet, "/anything", "", "")
	assert.True(t, called)
}
