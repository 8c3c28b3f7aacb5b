//go:build !windows

package probes

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
)

func TestProcessAliveProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("alive process passes", func(t *testing.T) {
		probe := NewProcessAlive("dhcp", func() int { return os.Getpid() })
		ok, message := probe.Run(ctx)
		assert.True(t, ok)
		assert.Contains(t, message, "running")
	})

	t.Run("no recorded process fails", func(t *testing.T) {
		probe := NewProcessAlive("dhcp", func() int { return 0 })
		ok, message := probe.Run(ctx)
		assert.False(t, ok)
		assert.Contains(t, message, "no process recorded")
	})

	t.Run("name includes daemon", func(t *testing.T) {
		probe := NewProcessAlive("tftp", func() int { return 0 })
		assert.Equal(t, "tftp process alive", probe.Name())
	})
}

func TestPortListeningProbeTCP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	probe := NewPortListening("http", "tcp", listener.Addr().String())
	ok, _ := probe.Run(ctx)
	assert.True(t, ok)

	listener.Close()
	ok, message := probe.Run(ctx)
	assert.False(t, ok)
	assert.Contains(t, message, "dial failed")
}

func TestPortListeningProbeUDP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	probe := NewPortListening("tftp", "udp", conn.LocalAddr().String())
	ok, _ := probe.Run(ctx)
	assert.True(t, ok, "bound udp port must pass")
}

func TestFilesPresentProbe(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pxelinux.cfg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pxelinux.0"), []byte("x"), 0o644))

	t.Run("missing menu fails with its name", func(t *testing.T) {
		probe := NewFilesPresent("PXE files present", root, []string{"pxelinux.0", "pxelinux.cfg/default"})
		ok, message := probe.Run(ctx)
		assert.False(t, ok)
		assert.Contains(t, message, "pxelinux.cfg/default")
		assert.NotContains(t, message, "pxelinux.0,")
	})

	t.Run("all present passes", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "pxelinux.cfg", "default"), []byte("menu"), 0o644))
		probe := NewFilesPresent("PXE files present", root, []string{"pxelinux.0", "pxelinux.cfg/default"})
		ok, _ := probe.Run(ctx)
		assert.True(t, ok)
	})
}

func TestHTTPFetchProbe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("2xx passes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "index")
		}))
		defer server.Close()

		probe := NewHTTPFetch("http", server.URL+"/", logging.NopLogger{})
		ok, message := probe.Run(ctx)
		assert.True(t, ok)
		assert.Contains(t, message, "HTTP 200")
	})

	t.Run("404 fails", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		probe := NewHTTPFetch("http", server.URL+"/missing", logging.NopLogger{})
		ok, message := probe.Run(ctx)
		assert.False(t, ok)
		assert.Contains(t, message, "404")
	})

	t.Run("unreachable server fails", func(t *testing.T) {
		probe := NewHTTPFetch("http", "http://127.0.0.1:1/", logging.NopLogger{})
		ok, _ := probe.Run(ctx)
		assert.False(t, ok)
	})
}

func TestExecProbe(t *testing.T) {
	ctx := context.Background()

	probe := NewExec("dhcp config valid", "sh", "-c", "exit 0")
	ok, _ := probe.Run(ctx)
	assert.True(t, ok)

	probe = NewExec("dhcp config valid", "sh", "-c", "exit 1")
	ok, message := probe.Run(ctx)
	assert.False(t, ok)
	assert.Contains(t, message, "command failed")
}

func TestExecProbeTimeoutIsFailureNotCrash(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	probe := NewExec("slow check", "sleep", "10")
	ok, message := probe.Run(ctx)
	assert.False(t, ok)
	assert.Contains(t, message, "command failed")
}

func TestDiskSpaceProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("generous threshold passes", func(t *testing.T) {
		probe := NewDiskSpace(t.TempDir(), 100)
		ok, message := probe.Run(ctx)
		assert.True(t, ok, message)
	})

	t.Run("missing path fails", func(t *testing.T) {
		probe := NewDiskSpace("/definitely/not/a/mountpoint", 90)
		ok, message := probe.Run(ctx)
		assert.False(t, ok)
		assert.Contains(t, message, "statfs failed")
	})
}

func TestOutboundReachabilityProbe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	t.Run("reachable target passes", func(t *testing.T) {
		probe := NewOutboundReachability(listener.Addr().String())
		ok, message := probe.Run(ctx)
		assert.True(t, ok)
		assert.Contains(t, message, "reached")
	})

	t.Run("falls through dead targets to a live one", func(t *testing.T) {
		probe := NewOutboundReachability("127.0.0.1:1", listener.Addr().String())
		ok, _ := probe.Run(ctx)
		assert.True(t, ok)
	})

	t.Run("all targets dead fails", func(t *testing.T) {
		probe := NewOutboundReachability("127.0.0.1:1")
		ok, message := probe.Run(ctx)
		assert.False(t, ok)
		assert.Contains(t, message, "no target reachable")
	})

	t.Run("no targets fails", func(t *testing.T) {
		probe := NewOutboundReachability()
		ok, _ := probe.Run(ctx)
		assert.False(t, ok)
	})
}

func TestFuncProbe(t *testing.T) {
	probe := FuncProbe{
		ProbeName: "custom",
		Func: func(ctx context.Context) (bool, string) {
			return true, "fine"
		},
	}
	assert.Equal(t, "custom", probe.Name())
	ok, message := probe.Run(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "fine", message)
}
