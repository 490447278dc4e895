package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_PublishChartEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	evt := ChartEvent{
		TenantID:   uuid.New(),
		ChartID:    uuid.New(),
		Action:     "reopen",
		From:       "delivered_locked",
		To:         "needs_reverification",
		Reason:     "wrong dosage",
		ActorID:    uuid.New(),
		OccurredAt: time.Now().UTC(),
	}
	if err := p.PublishChartEvent(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != evt.ChartID.String() {
		t.Errorf("expected key %s, got %s", evt.ChartID, msg.Key)
	}

	var got ChartEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if got.Type != "chart.reopen" || got.Reason != "wrong dosage" || got.To != "needs_reverification" {
		t.Errorf("unexpected payload: %+v", got)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["type"] != "chart.reopen" || headers["tenant_id"] != evt.TenantID.String() {
		t.Errorf("unexpected headers: %v", headers)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := &KafkaPublisher{w: w}

	err := p.PublishChartEvent(context.Background(), ChartEvent{Action: "approve"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, w.err) {
		t.Errorf("expected wrapped broker error, got %v", err)
	}
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}
	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("expected writer to be closed, err=%v", err)
	}
}

func TestNewKafkaPublisher_Config(t *testing.T) {
	p := NewKafkaPublisher([]string{"kafka-1:9092", "kafka-2:9092"}, "chart-events")
	kw, ok := p.w.(*kafka.Writer)
	if !ok {
		t.Fatalf("expected *kafka.Writer, got %T", p.w)
	}
	if kw.Topic != "chart-events" {
		t.Errorf("unexpected topic %s", kw.Topic)
	}
	if kw.Addr.String() != "kafka-1:9092,kafka-2:9092" {
		t.Errorf("unexpected addr %s", kw.Addr.String())
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.PublishChartEvent(context.Background(), ChartEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
