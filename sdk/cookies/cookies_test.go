package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExpireAll(t *testing.T) {
	t.Parallel()
	t.Run("three-scopes-per-cookie", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		req := httptest.NewRequest(http.MethodGet, "http://portal.example.com/auth/callback", nil)
		req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: "abc"})
		req.AddCookie(&http.Cookie{Name: "backend_session", Value: "def"})
		rec := httptest.NewRecorder()

		ExpireAll(rec, req)

		resp := rec.Result()
		defer resp.Body.Close()
		cookies := resp.Cookies()
		require.Len(cookies, 6)

		domains := map[string]int{}
		for _, c := range cookies {
			assert.Empty(c.Value)
			assert.Equal("/", c.Path)
			assert.Equal(-1, c.MaxAge)
			domains[c.Domain]++
		}
		assert.Equal(2, domains[""])
		assert.Equal(2, domains["portal.example.com"])
		assert.Equal(2, domains[".portal.example.com"])
	})
	t.Run("no-cookies", func(t *testing.T) {
		assert := assert.New(t)
		req := httptest.NewRequest(http.MethodGet, "http://portal.example.com/", nil)
		rec := httptest.NewRecorder()
		ExpireAll(rec, req)
		resp := rec.Result()
		defer resp.Body.Close()
		assert.Empty(resp.Cookies())
	})
	t.Run("bare-host-skips-parent-scope", func(t *testing.T) {
		require := require.New(t)
		req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "x"})
		rec := httptest.NewRecorder()
		ExpireAll(rec, req)
		resp := rec.Result()
		defer resp.Body.Close()
		require.Len(resp.Cookies(), 2)
	})
}
