package daemon

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (mainAddr, subAddr string) {
	t.Helper()
	server := NewServer("test-token", DefaultLivenessThresholds(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	subLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go server.Serve(ctx, ln)
	go server.ServeSubscribers(ctx, subLn)

	return ln.Addr().String(), subLn.Addr().String()
}

func TestClientRegisterHeartbeatAndList(t *testing.T) {
	mainAddr, _ := startTestServer(t)
	client := NewClient(mainAddr, "test-token")
	defer client.Close()

	hello, err := client.Hello("test-runner")
	require.NoError(t, err)
	assert.NotEmpty(t, hello.ServerVersion)

	record := NewSessionRecord("sess-1", "widgets", "/tmp/wd", "/tmp/state.json", "Planning", 1, "Planning", 1, time.Now())
	require.NoError(t, client.Register(record))
	require.NoError(t, client.Heartbeat("sess-1"))

	records, err := client.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sess-1", records[0].WorkflowSessionId)
	assert.Equal(t, LivenessRunning, records[0].Liveness)
}

func TestClientRejectsBadToken(t *testing.T) {
	mainAddr, _ := startTestServer(t)
	client := NewClient(mainAddr, "wrong-token")
	defer client.Close()

	_, err := client.Hello("test-runner")
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestSubscriberReceivesSessionChanged(t *testing.T) {
	mainAddr, subAddr := startTestServer(t)

	changed := make(chan SessionRecord, 1)
	callbacks := &SubscriberCallbacks{
		OnSessionChanged: func(record SessionRecord) { changed <- record },
	}
	go Subscribe(subAddr, callbacks)
	time.Sleep(50 * time.Millisecond)

	client := NewClient(mainAddr, "test-token")
	defer client.Close()
	record := NewSessionRecord("sess-2", "gizmos", "/tmp/wd", "/tmp/state.json", "Planning", 1, "Planning", 1, time.Now())
	require.NoError(t, client.Register(record))

	select {
	case got := <-changed:
		assert.Equal(t, "sess-2", got.WorkflowSessionId)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session_changed callback")
	}
}
