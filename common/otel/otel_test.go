package otel

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"cadence.app/outreach/core/config"
)

var _ = Describe("Setup", func() {
	It("does nothing without an endpoint", func() {
		t, err := Setup(context.Background(), config.OTelConfig{ServiceName: "outreach"})

		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeNil())
		Expect(t.Shutdown(context.Background())).To(Succeed())
	})
})

var _ = Describe("newResource", func() {
	It("tags the service with its namespace and environment", func() {
		res, err := newResource(config.OTelConfig{ServiceName: "outreach-worker", ServiceVersion: "1.4.0", Environment: "staging"})
		Expect(err).NotTo(HaveOccurred())

		set := res.Set()
		value := func(key attribute.Key) string {
			v, ok := set.Value(key)
			Expect(ok).To(BeTrue(), string(key))
			return v.AsString()
		}
		Expect(value(semconv.ServiceNamespaceKey)).To(Equal("outreach"))
		Expect(value(semconv.ServiceNameKey)).To(Equal("outreach-worker"))
		Expect(value(semconv.ServiceVersionKey)).To(Equal("1.4.0"))
		Expect(value(semconv.DeploymentEnvironmentKey)).To(Equal("staging"))
	})
})

var _ = Describe("sampler", func() {
	DescribeTable("describes its decision",
		func(ratio float64, want string) {
			Expect(sampler(ratio).Description()).To(ContainSubstring(want))
		},
		Entry("unset keeps everything", 0.0, "AlwaysOnSampler"),
		Entry("one keeps everything", 1.0, "AlwaysOnSampler"),
		Entry("a fraction samples by trace id", 0.25, "TraceIDRatioBased{0.25}"),
	)
})

var _ = Describe("parseHeaders", func() {
	It("reads name=value pairs and drops malformed entries", func() {
		Expect(parseHeaders(" api-key = s3cret ,x-scope=outreach,broken,=orphan,")).To(Equal(map[string]string{
			"api-key": "s3cret",
			"x-scope": "outreach",
		}))
	})

	It("returns an empty map for an empty string", func() {
		Expect(parseHeaders("")).To(BeEmpty())
	})
})
