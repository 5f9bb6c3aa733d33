package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"workflow/backend/config"
)

func TestBus_InProcessAudit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	bus, err := NewBus(&config.EventConfig{Topic: "test.events"}, zap.New(core))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = bus.RunAudit(ctx)
		close(done)
	}()

	// gochannel drops messages published before the subscription exists
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, Event{Type: ProjectCreated, ActorID: 1, ProjectID: 42})
		return logs.FilterMessage("audit").Len() > 0
	}, 2*time.Second, 20*time.Millisecond)

	entry := logs.FilterMessage("audit").All()[0]
	assert.Equal(t, string(ProjectCreated), entry.ContextMap()["event"])
	assert.EqualValues(t, 42, entry.ContextMap()["project_id"])

	cancel()
	require.NoError(t, bus.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit loop did not stop")
	}
}

func TestEmit(t *testing.T) {
	rec := &Recorder{}
	Emit(context.Background(), rec, zap.NewNop(), Event{Type: MemberAdded})
	assert.Equal(t, []Type{MemberAdded}, rec.Types())

	core, logs := observer.New(zap.WarnLevel)
	failing := &Recorder{Err: errors.New("broker down")}
	Emit(context.Background(), failing, zap.New(core), Event{Type: MemberRemoved})
	assert.Equal(t, 1, logs.FilterMessage("publish event failed").Len())

	Emit(context.Background(), nil, zap.NewNop(), Event{Type: MemberRemoved})
}
