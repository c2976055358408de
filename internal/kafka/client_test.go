package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"pfm/internal/events"
	"pfm/internal/log"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafkago.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.queue) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(nil, "t", ""); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewClient([]string{"localhost:9092"}, "", ""); err == nil {
		t.Fatalf("expected error without topic")
	}
	c, err := NewClient([]string{"localhost:9092"}, "pfm.activity", "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if c.reader != nil {
		t.Fatalf("reader must only exist with a group id")
	}
	_ = c.Close()
}

func TestPublishActivity(t *testing.T) {
	w := &fakeWriter{}
	c := &Client{writer: w, topic: "pfm.activity", logger: log.Default()}

	if err := c.PublishActivity(context.Background(), 17, "c-17"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "17" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	msg, err := events.ActivityMessageFromJSON(w.msgs[0].Value)
	if err != nil || msg.ID != 17 || msg.CorrelationID != "c-17" {
		t.Fatalf("bad payload %s: %v", w.msgs[0].Value, err)
	}

	w.err = errors.New("broker down")
	if err := c.PublishActivity(context.Background(), 18, "c-18"); err == nil {
		t.Fatalf("expected writer error")
	}
}

func TestConsumeCommitsHandledAndPoisonMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, _ := events.NewActivityMessage(1, "a").ToJSON()
	flaky, _ := events.NewActivityMessage(2, "b").ToJSON()
	r := &fakeReader{
		queue: []kafkago.Message{
			{Offset: 10, Value: good},
			{Offset: 11, Value: []byte("not json")},
			{Offset: 12, Value: flaky},
		},
		cancel: cancel,
	}
	c := &Client{reader: r, topic: "t", retry: time.Millisecond, logger: log.Default()}

	calls := map[int64]int{}
	err := c.ConsumeActivity(ctx, func(_ context.Context, m *events.ActivityMessage) error {
		calls[m.ID]++
		if m.ID == 2 {
			return errors.New("sheets unavailable")
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls[1] != 1 || calls[2] != handlerAttempts {
		t.Fatalf("unexpected handler calls %v", calls)
	}
	if len(r.committed) != 3 {
		t.Fatalf("expected all offsets committed, got %v", r.committed)
	}
}

func TestConsumeWithoutGroup(t *testing.T) {
	c := &Client{logger: log.Default()}
	if err := c.ConsumeActivity(context.Background(), nil); err == nil {
		t.Fatalf("expected error without reader")
	}
}
