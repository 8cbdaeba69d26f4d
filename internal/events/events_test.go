package events

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/instanti8/engine/pkg/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	restore := logger.Replace(zap.NewNop())
	code := m.Run()
	restore()
	os.Exit(code)
}

func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		t.Fatal("embedded nats server did not become ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestPublishesProgressAndStatus(t *testing.T) {
	ns := runServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	id := uuid.New()
	progress, err := sub.SubscribeSync(ProgressSubject(id))
	require.NoError(t, err)
	status, err := sub.SubscribeSync(SubjectPrefix + ".*.status")
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := Connect(ns.ClientURL())
	require.NoError(t, err)
	defer pub.Close()

	pub.Progress(id, 3, "+ aws:s3:Bucket logs creating")
	pub.Status(id, "deployed", "aws", "")

	msg, err := progress.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var p Progress
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, id.String(), p.InfrastructureID)
	assert.EqualValues(t, 3, p.Sequence)
	assert.Equal(t, "+ aws:s3:Bucket logs creating", p.Line)

	msg, err = status.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusSubject(id), msg.Subject)
	var s Status
	require.NoError(t, json.Unmarshal(msg.Data, &s))
	assert.Equal(t, "deployed", s.Status)
	assert.Equal(t, "aws", s.Provider)
}

func TestConnectWithoutURLIsNop(t *testing.T) {
	pub, err := Connect("")
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		pub.Progress(uuid.New(), 1, "line")
		pub.Status(uuid.New(), "failed", "", "boom")
		pub.Close()
	})
}
