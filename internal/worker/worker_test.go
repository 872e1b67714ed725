package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/queue"
	"cadence.app/outreach/internal/worker"
)

type mockConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	acked    []string
	requeued []string
	dlq      []string

	readCalls  int
	ackErr     error
	requeueErr error
	dlqErr     error
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if len(m.batches) == 0 {
		return nil, nil
	}
	next := m.batches[0]
	m.batches = m.batches[1:]
	return next, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requeueErr != nil {
		return m.requeueErr
	}
	m.requeued = append(m.requeued, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dlqErr != nil {
		return m.dlqErr
	}
	m.dlq = append(m.dlq, msg.ID)
	return nil
}

func (m *mockConsumer) snapshot() (acked, requeued, dlq []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...), append([]string(nil), m.requeued...), append([]string(nil), m.dlq...)
}

type mockProcessor struct {
	processFn func(ctx context.Context, id int64) error
}

func (m *mockProcessor) Process(ctx context.Context, id int64) error {
	if m.processFn != nil {
		return m.processFn(ctx, id)
	}
	return nil
}

var _ = Describe("Worker", func() {
	var (
		ctx       context.Context
		consumer  *mockConsumer
		processor *mockProcessor
		w         *worker.Worker
	)

	msg := func(id string, eventID int64, attempt int) queue.Message {
		return queue.Message{ID: id, TaskType: queue.TaskTypeWebhookEvent, WebhookEventID: eventID, Attempt: attempt}
	}

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		processor = &mockProcessor{}
		w = worker.New(consumer, processor, worker.Config{MaxAttempts: 3})
	})

	It("acks processed messages", func() {
		Expect(w.Handle(ctx, msg("1-0", 10, 1))).To(Succeed())

		acked, requeued, dlq := consumer.snapshot()
		Expect(acked).To(Equal([]string{"1-0"}))
		Expect(requeued).To(BeEmpty())
		Expect(dlq).To(BeEmpty())
	})

	It("requeues a failure below the attempt limit", func() {
		processor.processFn = func(context.Context, int64) error { return errors.New("db down") }

		Expect(w.Handle(ctx, msg("1-0", 10, 2))).To(Succeed())

		acked, requeued, _ := consumer.snapshot()
		Expect(acked).To(BeEmpty())
		Expect(requeued).To(Equal([]string{"1-0"}))
	})

	It("dead-letters once attempts are exhausted", func() {
		processor.processFn = func(context.Context, int64) error { return errors.New("db down") }

		Expect(w.Handle(ctx, msg("1-0", 10, 3))).To(Succeed())

		_, _, dlq := consumer.snapshot()
		Expect(dlq).To(Equal([]string{"1-0"}))
	})

	It("treats a panic as a failure", func() {
		processor.processFn = func(context.Context, int64) error { panic("nil map") }

		Expect(w.Handle(ctx, msg("1-0", 10, 1))).To(Succeed())

		_, requeued, _ := consumer.snapshot()
		Expect(requeued).To(Equal([]string{"1-0"}))
	})

	Context("when the stream rejects the settlement", func() {
		It("reports a message it could not ack", func() {
			consumer.ackErr = errors.New("connection reset")

			Expect(w.Handle(ctx, msg("1-0", 10, 1))).To(MatchError(ContainSubstring("acking message 1-0")))
		})

		It("reports a failure it could not requeue", func() {
			processor.processFn = func(context.Context, int64) error { return errors.New("db down") }
			consumer.requeueErr = errors.New("connection reset")

			Expect(w.Handle(ctx, msg("1-0", 10, 1))).To(MatchError(ContainSubstring("requeuing message 1-0")))
		})

		It("reports a failure it could not dead-letter", func() {
			processor.processFn = func(context.Context, int64) error { return errors.New("db down") }
			consumer.dlqErr = errors.New("connection reset")

			Expect(w.Handle(ctx, msg("1-0", 10, 3))).To(MatchError(ContainSubstring("dead-lettering message 1-0")))
		})

		It("backs off before reading the next batch", func() {
			consumer.ackErr = errors.New("connection reset")
			consumer.batches = [][]queue.Message{{msg("1-0", 1, 1)}}
			w = worker.New(consumer, processor, worker.Config{MaxAttempts: 3, ErrorBackoff: time.Hour})

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- w.Run(runCtx) }()

			Consistently(func() int {
				consumer.mu.Lock()
				defer consumer.mu.Unlock()
				return consumer.readCalls
			}, "200ms", "20ms").Should(Equal(1))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})

	It("drains the stream until stopped", func() {
		var mu sync.Mutex
		var seen []int64
		processor.processFn = func(_ context.Context, id int64) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, id)
			return nil
		}
		consumer.batches = [][]queue.Message{{msg("1-0", 1, 1), msg("2-0", 2, 1)}, {msg("3-0", 3, 1)}}

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		Eventually(func() []int64 {
			mu.Lock()
			defer mu.Unlock()
			return append([]int64(nil), seen...)
		}).Should(Equal([]int64{1, 2, 3}))
		w.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})
})
