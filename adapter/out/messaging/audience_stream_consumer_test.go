package messaging

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// scriptedHook answers stream commands locally so the consumer can be
// exercised without a Redis server.
type scriptedHook struct {
	ackErr error
	called []string
}

func (h *scriptedHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled in tests")
	}
}

func (h *scriptedHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.called = append(h.called, cmd.Name())
		switch c := cmd.(type) {
		case *redis.XPendingExtCmd:
			c.SetVal([]redis.XPendingExt{{ID: "1-0", Consumer: "w1", RetryCount: 3}})
		case *redis.XMessageSliceCmd:
			c.SetVal([]redis.XMessage{{ID: "1-0", Values: map[string]any{"data": `{"job_id":"j1"}`}}})
		case *redis.StringCmd:
			c.SetVal("2-0")
		case *redis.IntCmd:
			if h.ackErr != nil {
				c.SetErr(h.ackErr)
				return h.ackErr
			}
			c.SetVal(1)
		}
		return nil
	}
}

func (h *scriptedHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestConsumer_DeadLettersExhaustedMessages(t *testing.T) {
	tests := []struct {
		name    string
		ackErr  error
		wantLog bool
	}{
		{name: "ack succeeds"},
		{name: "ack failure is logged", ackErr: errors.New("connection reset"), wantLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := &scriptedHook{ackErr: tt.ackErr}
			client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
			client.AddHook(hook)
			defer client.Close()

			var buf bytes.Buffer
			c := NewConsumer(client, &ConsumerConfig{
				Group:    "g",
				Consumer: "w1",
				Streams:  []string{"jobs"},
				Logger:   zerolog.New(&buf),
			})
			c.claimPending(context.Background(), "jobs")

			got := strings.Join(hook.called, ",")
			if got != "xpending,xrange,xadd,xack" {
				t.Fatalf("commands = %s", got)
			}
			logged := strings.Contains(buf.String(), "error acknowledging dead-lettered message")
			if logged != tt.wantLog {
				t.Errorf("ack failure logged = %v, want %v; output %q", logged, tt.wantLog, buf.String())
			}
		})
	}
}

func TestPayload(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    string
		wantErr bool
	}{
		{"data field", map[string]any{"data": `{"job_id":"1"}`}, `{"job_id":"1"}`, false},
		{"missing", map[string]any{"other": "x"}, "", true},
		{"not a string", map[string]any{"data": 42}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := payload(redis.XMessage{ID: "1-0", Values: tt.values})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("payload = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsumer_ReadArgs(t *testing.T) {
	c := NewConsumer(nil, &ConsumerConfig{Streams: []string{"a", "b"}})

	got := c.readArgs()
	want := []string{"a", "b", ">", ">"}
	if len(got) != len(want) {
		t.Fatalf("args = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if c.batch != 1 || c.maxRetries != 3 {
		t.Errorf("defaults not applied: batch=%d retries=%d", c.batch, c.maxRetries)
	}
}
