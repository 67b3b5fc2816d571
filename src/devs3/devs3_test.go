package devs3

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketKey(t *testing.T) {
	bucket, key := bucketKey("/fastblog/avatars/abc.png")
	assert.Equal(t, "fastblog", bucket)
	assert.Equal(t, "avatars~abc.png", key)

	bucket, key = bucketKey("/fastblog")
	assert.Equal(t, "fastblog", bucket)
	assert.Equal(t, "", key)
}

func TestObjectRoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewHandler(t.TempDir()))
	defer srv.Close()

	do := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.Nil(t, err)
		res, err := http.DefaultClient.Do(req)
		require.Nil(t, err)
		return res
	}

	res := do(http.MethodPut, "/fastblog/images/cat.png", "meow")
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = do(http.MethodGet, "/fastblog/images/cat.png", "")
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "meow", string(body))

	res = do(http.MethodDelete, "/fastblog/images/cat.png", "")
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = do(http.MethodGet, "/fastblog/images/cat.png", "")
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = do(http.MethodDelete, "/fastblog/images/cat.png", "")
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = do(http.MethodGet, "/fastblog/../etc/passwd", "")
	res.Body.Close()
	assert.NotEqual(t, http.StatusOK, res.StatusCode)
}
