package queue_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"cadence.app/outreach/internal/queue"
)

var _ = Describe("ParseMessage", func() {
	It("parses a webhook task", func() {
		msg, err := queue.ParseMessage(redis.XMessage{
			ID: "1-0",
			Values: map[string]any{
				"task_type":        "webhook_event",
				"webhook_event_id": "42",
				"kind":             "message_received",
				"attempt":          "2",
				"trace_id":         "abc",
			},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.ID).To(Equal("1-0"))
		Expect(msg.TaskType).To(Equal(queue.TaskTypeWebhookEvent))
		Expect(msg.WebhookEventID).To(Equal(int64(42)))
		Expect(msg.Kind).To(Equal("message_received"))
		Expect(msg.Attempt).To(Equal(2))
		Expect(msg.TraceID).To(Equal("abc"))
	})

	It("defaults the task type and attempt", func() {
		msg, err := queue.ParseMessage(redis.XMessage{ID: "2-0", Values: map[string]any{"webhook_event_id": "7"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.TaskType).To(Equal(queue.TaskTypeWebhookEvent))
		Expect(msg.Attempt).To(Equal(1))
	})

	DescribeTable("rejects malformed entries",
		func(values map[string]any) {
			_, err := queue.ParseMessage(redis.XMessage{ID: "3-0", Values: values})
			Expect(err).To(HaveOccurred())
		},
		Entry("no id", map[string]any{"task_type": "webhook_event"}),
		Entry("bad id", map[string]any{"webhook_event_id": "abc"}),
		Entry("unknown task", map[string]any{"task_type": "repo_sync", "webhook_event_id": "1"}),
		Entry("bad attempt", map[string]any{"webhook_event_id": "1", "attempt": "x"}),
		Entry("empty", map[string]any{}),
	)
})
