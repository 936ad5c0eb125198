package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandler struct{ topic string }

func (h nopHandler) Topic() string { return h.topic }
func (h nopHandler) Handle(context.Context, []byte) error { return nil }

func TestNewConsumerValidates(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)

	_, err = NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerAutoOffsetReset("newest"))
	assert.Error(t, err)

	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(0))
	require.NoError(t, err)
	assert.Equal(t, 1, c.cfg.WorkerCount)
	assert.Error(t, c.Start(), "start without handlers")
}

func TestRegisterHandlerKeepsFirst(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)

	first := nopHandler{topic: "jobs"}
	c.RegisterHandler(first)
	c.RegisterHandler(nopHandler{topic: "jobs"})
	assert.Len(t, c.handlers, 1)
}

func TestLaneRouting(t *testing.T) {
	const lanes = 4
	used := map[int]bool{}
	for p := 0; p < 32; p++ {
		lane := laneFor("jobs", p, lanes)
		require.GreaterOrEqual(t, lane, 0)
		require.Less(t, lane, lanes)
		assert.Equal(t, lane, laneFor("jobs", p, lanes), "partition %d must always map to one lane", p)
		used[lane] = true
	}
	assert.Greater(t, len(used), 1, "partitions spread over lanes")
	assert.Zero(t, laneFor("jobs", 7, 1))
}

func TestOneLanePerWorker(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(3), WithConsumerBufferSize(5))
	require.NoError(t, err)
	require.Len(t, c.lanes, 3)
	for _, lane := range c.lanes {
		assert.Equal(t, 5, cap(lane))
	}
}

type recordingHandler struct {
	topic   string
	offsets []int64
}

func (h *recordingHandler) Topic() string { return h.topic }

func (h *recordingHandler) Handle(ctx context.Context, data []byte) error {
	h.offsets = append(h.offsets, int64(data[0]))
	return nil
}

func TestLaneHandlesPartitionInOffsetOrder(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(4), WithConsumerBufferSize(16))
	require.NoError(t, err)
	h := &recordingHandler{topic: "jobs"}
	c.RegisterHandler(h)

	lane := c.lanes[laneFor("jobs", 2, len(c.lanes))]
	c.workWg.Add(1)
	go c.messageWorker(lane)
	for off := int64(0); off < 10; off++ {
		lane <- &message{topic: "jobs", km: kafka.Message{Partition: 2, Offset: off, Value: []byte{byte(off)}}}
	}
	close(lane)
	c.workWg.Wait()

	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, h.offsets)
}

func TestStoppingLaneSkipsQueuedMessages(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	h := &recordingHandler{topic: "jobs"}
	c.RegisterHandler(h)

	lane := c.lanes[0]
	lane <- &message{topic: "jobs", km: kafka.Message{Value: []byte{1}}}
	c.cancel()
	close(lane)
	c.workWg.Add(1)
	c.messageWorker(lane)

	assert.Empty(t, h.offsets)
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
	// first attempt stays within [min/2, min]
	d := backoffWithJitter(min, max, 1)
	assert.GreaterOrEqual(t, d, min/2)
	assert.LessOrEqual(t, d, min)
}

func TestStopBeforeStart(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Stop(ctx))
	assert.NoError(t, c.Stop(ctx), "stop is idempotent")
}
