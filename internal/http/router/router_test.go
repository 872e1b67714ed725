package router_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/gateway/gatewaytest"
	"cadence.app/outreach/internal/http/router"
	"cadence.app/outreach/internal/queue"
	"cadence.app/outreach/internal/scheduler"
	"cadence.app/outreach/internal/service"
	"cadence.app/outreach/internal/store/storetest"
)

type recordingProducer struct {
	messages []queue.WebhookMessage
}

func (p *recordingProducer) Enqueue(_ context.Context, msg queue.WebhookMessage) error {
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

type idleScheduler struct{}

func (idleScheduler) Start(context.Context) error { return nil }
func (idleScheduler) Stop(context.Context) error  { return scheduler.ErrNotRunning }
func (idleScheduler) Status(context.Context) (*scheduler.Status, error) {
	return &scheduler.Status{}, nil
}

var _ = Describe("SetupRoutes", func() {
	var (
		engine   *gin.Engine
		producer *recordingProducer
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		mem := storetest.NewMemory()
		producer = &recordingProducer{}
		services := service.NewServices(mem, mem, &gatewaytest.Fake{}, producer, nil)

		engine = gin.New()
		router.SetupRoutes(engine, services, idleScheduler{}, router.RouterConfig{
			TraceHeaderName: "X-Trace-Id",
			AdminAPIKey:     "admin-key",
		})
	})

	serve := func(req *http.Request) int {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	It("serves health", func() {
		Expect(serve(httptest.NewRequest(http.MethodGet, "/health", nil))).To(Equal(http.StatusOK))
	})

	It("stores and enqueues a provider webhook once", func() {
		body := `{"event":"message_received","account_id":"acc-1","chat_id":"c","sender_id":"s","message_id":"m-1","text":"hi"}`

		for range 2 {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/provider", bytes.NewBufferString(body))
			Expect(serve(req)).To(Equal(http.StatusOK))
		}

		Expect(producer.messages).To(HaveLen(1))
		Expect(producer.messages[0].Kind).To(Equal("message_received"))
	})

	It("guards scheduler control with the admin key", func() {
		Expect(serve(httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/status", nil))).To(Equal(http.StatusUnauthorized))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/status", nil)
		req.Header.Set("X-API-Key", "admin-key")
		Expect(serve(req)).To(Equal(http.StatusOK))

		req = httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/stop", nil)
		req.Header.Set("Authorization", "Bearer admin-key")
		Expect(serve(req)).To(Equal(http.StatusConflict))
	})
})
