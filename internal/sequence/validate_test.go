package sequence_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/sequence"
)

var _ = Describe("ValidateSequence", func() {
	It("accepts an invite followed by messages", func() {
		steps := []model.Step{
			{Action: model.StepActionConnectionRequest},
			{Action: model.StepActionMessage, Template: "Thanks {{first_name|there}}", DelayWorkingDays: 1},
			{Action: model.StepActionMessage, Template: "Following up", DelayMinutes: 90},
		}
		Expect(sequence.ValidateSequence(steps)).To(Succeed())
	})

	It("rejects an empty sequence", func() {
		Expect(sequence.ValidateSequence(nil)).To(HaveOccurred())
	})

	DescribeTable("reports invalid steps",
		func(step model.Step, index int, fragment string) {
			steps := []model.Step{{Action: model.StepActionMessage, Template: "hello"}}
			if index == 0 {
				steps[0] = step
			} else {
				steps = append(steps, step)
			}
			err := sequence.ValidateSequence(steps)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(fragment))
		},
		Entry("late invite", model.Step{Action: model.StepActionConnectionRequest}, 1, "must be the first step"),
		Entry("empty message", model.Step{Action: model.StepActionMessage}, 0, "template is empty"),
		Entry("unknown action", model.Step{Action: "like_post", Template: "x"}, 1, "unknown action"),
		Entry("negative delay", model.Step{Action: model.StepActionMessage, Template: "x", DelayMinutes: -5}, 1, "negative delay"),
		Entry("both delays", model.Step{Action: model.StepActionMessage, Template: "x", DelayMinutes: 5, DelayWorkingDays: 1}, 1, "either"),
		Entry("bad placeholder", model.Step{Action: model.StepActionMessage, Template: "Hi {{nick}}"}, 1, "malformed template"),
	)

	It("does not flag fields that may be empty at send time", func() {
		steps := []model.Step{{Action: model.StepActionMessage, Template: "About {{industry}}"}}
		Expect(sequence.ValidateSequence(steps)).To(Succeed())
	})
})
