package network

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

func TestSimpleGetLeavesSharedClientUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, status, err := SimpleGet(context.Background(), srv.URL, "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", string(body))

	// 单次请求使用独立客户端，全局客户端的重定向策略保持默认
	assert.Nil(t, RetryClient.HTTPClient.CheckRedirect)
}

func TestSimpleGetDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("next"))
	}))
	defer srv.Close()

	_, status, err := SimpleGet(context.Background(), srv.URL, "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, status)
}

func TestSimpleGetEmptyTarget(t *testing.T) {
	_, _, err := SimpleGet(context.Background(), "", "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyTarget)
}

func TestCheckProtocolGetInvalidTargetReturnsError(t *testing.T) {
	// 非法端口使请求构造失败，错误必须向上传播而不是吞掉
	_, err := CheckProtocolGet("http://example.com:bad port", "", 1)
	require.Error(t, err)
}
