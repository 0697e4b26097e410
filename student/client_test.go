package student

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoano/portal/authapi"
	"github.com/anoano/portal/session"
)

// studentServer is a minimal backend holding students in memory and
// requiring a bearer token.
type studentServer struct {
	mu       sync.Mutex
	students map[int64]Student
	nextID   int64
	lastAuth string
}

func (s *studentServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastAuth = req.Header.Get("Authorization")
		if s.lastAuth == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case req.URL.Path == basePath && req.Method == http.MethodGet:
			out := make([]Student, 0, len(s.students))
			for _, st := range s.students {
				out = append(out, st)
			}
			_ = json.NewEncoder(w).Encode(out)
		case req.URL.Path == basePath && req.Method == http.MethodPost:
			var st Student
			_ = json.NewDecoder(req.Body).Decode(&st)
			s.nextID++
			st.ID = s.nextID
			s.students[st.ID] = st
			w.WriteHeader(http.StatusCreated)
		case req.Method == http.MethodDelete:
			delete(s.students, s.nextID)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	backend := &studentServer{students: map[int64]Student{}}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	tokens, err := session.NewTokenStore(session.NewMemoryProvider().Open("sid_students"))
	require.NoError(err)
	auth, err := authapi.New(authapi.Config{
		BaseURL:     srv.URL,
		RedirectURI: "https://portal.example.com/auth/callback",
	}, tokens)
	require.NoError(err)
	c, err := New(auth, srv.URL)
	require.NoError(err)

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := c.List(ctx)
		require.Error(err)
		assert.ErrorIs(err, authapi.ErrUnauthenticated)
	})

	_, priv := authapi.TestGenerateKeys(t)
	require.NoError(tokens.Save(ctx, authapi.TestDefaultJWT(t, priv, srv.URL, "u_1", time.Hour)))

	t.Run("create-and-list-with-bearer", func(t *testing.T) {
		require.NoError(c.Create(ctx, Student{Name: "An", Age: 21, Gender: "NAM"}))
		got, err := c.List(ctx)
		require.NoError(err)
		require.Len(got, 1)
		assert.Equal("An", got[0].Name)
		assert.NotZero(got[0].ID)
		assert.Contains(backend.lastAuth, "Bearer ")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(c.Delete(ctx, 1))
		got, err := c.List(ctx)
		require.NoError(err)
		assert.Empty(got)
	})
}
