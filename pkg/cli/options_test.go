package cli

import (
	"testing"

	"techprobe/pkg/types"

	"github.com/projectdiscovery/goflags"
	"github.com/stretchr/testify/assert"
)

func TestVerifyOptionsRequiresTarget(t *testing.T) {
	opt := &types.CmdOptions{}
	assert.Error(t, verifyOptions(opt))

	opt.Target = goflags.StringSlice{"http://example.com"}
	assert.NoError(t, verifyOptions(opt))

	opt.Target = nil
	opt.TargetsFile = "targets.txt"
	assert.NoError(t, verifyOptions(opt))
}

func TestVerifyOptionsVersionSkipsChecks(t *testing.T) {
	opt := &types.CmdOptions{Version: true}
	assert.NoError(t, verifyOptions(opt))
}

func TestVerifyOptionsOutputExtension(t *testing.T) {
	opt := &types.CmdOptions{
		Target: goflags.StringSlice{"http://example.com"},
		Output: "result.xml",
	}
	assert.Error(t, verifyOptions(opt))

	opt.Output = "result.csv"
	assert.NoError(t, verifyOptions(opt))

	// 启用JSON输出后不再检查扩展名
	opt.Output = "result.xml"
	opt.JSONOutput = true
	assert.NoError(t, verifyOptions(opt))
}

func TestVerifyOptionsSockExtension(t *testing.T) {
	opt := &types.CmdOptions{
		Target:     goflags.StringSlice{"http://example.com"},
		SockOutput: "out.txt",
	}
	assert.Error(t, verifyOptions(opt))

	opt.SockOutput = "out.sock"
	assert.NoError(t, verifyOptions(opt))
}

func TestVerifyOptionsUnknownSource(t *testing.T) {
	opt := &types.CmdOptions{
		Target:  goflags.StringSlice{"http://example.com"},
		Sources: goflags.StringSlice{"dataset", "nmap"},
	}
	assert.Error(t, verifyOptions(opt))
}

func TestVerifyOptionsClampsInvalidNumbers(t *testing.T) {
	opt := &types.CmdOptions{
		Target:        goflags.StringSlice{"http://example.com"},
		Threads:       -1,
		Timeout:       0,
		Retries:       -3,
		MinConfidence: 200,
	}
	assert.NoError(t, verifyOptions(opt))
	assert.Equal(t, 5, opt.Threads)
	assert.Equal(t, 30, opt.Timeout)
	assert.Equal(t, 1, opt.Retries)
	assert.Equal(t, 10, opt.MinConfidence)
}
