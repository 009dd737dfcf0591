package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go-concord/internal/diplomacy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSink) Publish(ctx context.Context, event models.Event) error {
	s.started <- struct{}{}
	<-s.release
	return nil
}

func TestAsyncNotifierNeverBlocks(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{}, 8), release: make(chan struct{})}
	n := NewAsyncNotifier(sink, 1)
	ctx := context.Background()
	event := models.NewTreatyProposedEvent(&models.Treaty{ID: "t1", ProposingTeam: "a", TargetTeam: "b"})

	n.Notify(ctx, event)
	<-sink.started

	done := make(chan struct{})
	go func() {
		n.Notify(ctx, event)
		n.Notify(ctx, event)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full buffer")
	}

	assert.Equal(t, int64(1), n.Dropped())
	assert.Equal(t, 1, n.Pending())

	close(sink.release)
	require.NoError(t, n.Close(ctx))
	assert.Equal(t, int64(2), n.Sent())

	n.Notify(ctx, event)
	assert.Equal(t, int64(2), n.Dropped())
}

type mockPublishClient struct {
	mock.Mock
}

func (m *mockPublishClient) Publish(ctx context.Context, channel string, payload []byte) error {
	return m.Called(ctx, channel, payload).Error(0)
}

func TestRedisPublisherSendsJSONEnvelope(t *testing.T) {
	client := &mockPublishClient{}
	var sent []byte
	client.On("Publish", mock.Anything, "diplomacy:events", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]byte) }).
		Return(nil).Once()

	n := NewAsyncNotifier(NewRedisPublisher(client, "diplomacy:events"), 4)
	rel := models.NeutralRelation("red", "blue")
	rel.Status = models.RelationWar
	n.Notify(context.Background(), models.NewRelationChangedEvent(models.RelationNeutral, rel, "red-officer", nil))
	require.NoError(t, n.Close(context.Background()))

	client.AssertExpectations(t)

	var decoded models.Event
	require.NoError(t, json.Unmarshal(sent, &decoded))
	assert.NotEmpty(t, decoded.ID)
	assert.False(t, decoded.OccurredAt.IsZero())
	assert.Equal(t, models.EventRelationChanged, decoded.Type)
	require.NotNil(t, decoded.Relation)
	assert.Equal(t, models.RelationWar, decoded.Relation.New)
	assert.Equal(t, models.PairKey("blue|red"), decoded.Relation.PairKey)
}

func TestAsyncNotifierSurvivesSinkErrors(t *testing.T) {
	client := &mockPublishClient{}
	client.On("Publish", mock.Anything, "events", mock.Anything).Return(errors.New("redis down")).Once()
	client.On("Publish", mock.Anything, "events", mock.Anything).Return(nil).Once()

	n := NewAsyncNotifier(NewRedisPublisher(client, "events"), 4)
	event := models.NewAllianceFormedEvent(&models.Alliance{ID: "al", Members: []string{"a", "b"}})
	n.Notify(context.Background(), event)
	n.Notify(context.Background(), event)
	require.NoError(t, n.Close(context.Background()))

	assert.Equal(t, int64(1), n.Sent())
	client.AssertExpectations(t)
}
