package engines

import (
	"encoding/base64"
	"net/http"
	"testing"

	"techprobe/pkg/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

func TestIsImageData(t *testing.T) {
	assert.True(t, isImageData([]byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00}), "ico")
	assert.True(t, isImageData([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}), "png")
	assert.True(t, isImageData([]byte("<svg xmlns=")), "svg")
	assert.False(t, isImageData([]byte("<html><body>404")))
}

func TestResolveIconURLDefault(t *testing.T) {
	f := NewFaviconSource("")
	assert.Equal(t, "https://example.com/favicon.ico",
		f.resolveIconURL("https://example.com/admin/login?x=1", nil))
}

func TestResolveIconURLFromLinkTag(t *testing.T) {
	f := NewFaviconSource("")
	page := network.ParsePage("https://example.com",
		`<link rel="shortcut icon" href="/static/logo.png">`, http.Header{})

	assert.Equal(t, "https://example.com/static/logo.png",
		f.resolveIconURL("https://example.com", page))
}

func TestFetchInlineDataIcon(t *testing.T) {
	f := NewFaviconSource("")
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	iconURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	data, err := f.fetchIcon(context.Background(), iconURL)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestFaviconHashLookup(t *testing.T) {
	f := NewFaviconSource("")
	// 内置哈希表非空且可用
	assert.True(t, f.Available())
	assert.NotEmpty(t, f.hashes)
}
