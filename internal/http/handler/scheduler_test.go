package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/http/handler"
	"cadence.app/outreach/internal/ledger"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/scheduler"
)

var _ = Describe("SchedulerHandler", func() {
	var (
		router *gin.Engine
		sched  *mockScheduler
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		sched = &mockScheduler{}
		h := handler.NewSchedulerHandler(sched)
		router.POST("/scheduler/start", h.Start)
		router.POST("/scheduler/stop", h.Stop)
		router.GET("/scheduler/status", h.Status)
	})

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	It("starts the scheduler", func() {
		started := false
		sched.startFn = func(context.Context) error {
			started = true
			return nil
		}

		w := do(http.MethodPost, "/scheduler/start")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(started).To(BeTrue())
	})

	It("returns 409 when already running", func() {
		sched.startFn = func(context.Context) error { return scheduler.ErrAlreadyRunning }

		Expect(do(http.MethodPost, "/scheduler/start").Code).To(Equal(http.StatusConflict))
	})

	It("returns 409 when stopping an idle scheduler", func() {
		sched.stopFn = func(context.Context) error { return scheduler.ErrNotRunning }

		Expect(do(http.MethodPost, "/scheduler/stop").Code).To(Equal(http.StatusConflict))
	})

	It("returns 500 when stop times out", func() {
		sched.stopFn = func(context.Context) error { return errors.New("waiting for scheduler to stop: deadline exceeded") }

		Expect(do(http.MethodPost, "/scheduler/stop").Code).To(Equal(http.StatusInternalServerError))
	})

	It("reports running state, eta and usage", func() {
		next := time.Now().Add(30 * time.Second)
		sched.statusFn = func(context.Context) (*scheduler.Status, error) {
			return &scheduler.Status{
				Running:    true,
				NextTickAt: &next,
				Accounts: []scheduler.AccountUsage{{
					AccountID:         1,
					ProviderAccountID: "acc-1",
					Usage:             []ledger.Usage{{Kind: model.ActionKindInvite, Count: 3, Limit: 25}},
				}},
			}, nil
		}

		w := do(http.MethodGet, "/scheduler/status")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["running"]).To(BeTrue())
		Expect(resp["next_tick_eta_seconds"]).To(BeNumerically("~", 30, 2))
		Expect(resp["accounts"]).To(HaveLen(1))
	})

	It("omits the eta when stopped", func() {
		w := do(http.MethodGet, "/scheduler/status")

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["running"]).To(BeFalse())
		Expect(resp).NotTo(HaveKey("next_tick_eta_seconds"))
		Expect(resp["accounts"]).To(BeEmpty())
	})

	It("returns 500 when status cannot be read", func() {
		sched.statusFn = func(context.Context) (*scheduler.Status, error) { return nil, errors.New("db down") }

		Expect(do(http.MethodGet, "/scheduler/status").Code).To(Equal(http.StatusInternalServerError))
	})
})
