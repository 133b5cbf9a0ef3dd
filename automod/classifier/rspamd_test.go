package classifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRspamdClassify(t *testing.T) {
	assert := assert.New(t)

	var gotBody, gotPassword string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotPassword = r.Header.Get("Password")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"action":"reject","score":15.0}`))
	}))
	defer srv.Close()

	client := NewRspamdClient(srv.URL, "hunter2")
	verdict, err := client.Classify(context.Background(), "cheap pills buy now")
	require.NoError(t, err)
	assert.Equal("reject", verdict)
	assert.Equal("cheap pills buy now", gotBody)
	assert.Equal("hunter2", gotPassword)
}

func TestRspamdClassifyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewRspamdClient(srv.URL, "").Classify(context.Background(), "text")
	assert.ErrorContains(t, err, "status 403")
}
