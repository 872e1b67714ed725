package middleware_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/http/middleware"
)

var _ = Describe("RequireAdminAPIKey", func() {
	var router *gin.Engine

	setup := func(key string) {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		router.GET("/admin", middleware.RequireAdminAPIKey(key), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	do := func(header, value string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set(header, value)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	It("accepts the X-API-Key header", func() {
		setup("secret")
		Expect(do("X-API-Key", "secret")).To(Equal(http.StatusOK))
	})

	It("accepts a bearer token", func() {
		setup("secret")
		Expect(do("Authorization", "Bearer secret")).To(Equal(http.StatusOK))
	})

	It("rejects a wrong or missing key", func() {
		setup("secret")
		Expect(do("X-API-Key", "nope")).To(Equal(http.StatusUnauthorized))
		Expect(do("", "")).To(Equal(http.StatusUnauthorized))
	})

	It("returns 503 when no key is configured", func() {
		setup("")
		Expect(do("X-API-Key", "anything")).To(Equal(http.StatusServiceUnavailable))
	})
})

var _ = Describe("Recovery", func() {
	It("turns a panic into a 500", func() {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(middleware.Recovery(), middleware.Logger())
		router.GET("/boom", func(c *gin.Context) { panic("boom") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("internal server error"))
	})
})
