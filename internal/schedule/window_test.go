package schedule_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/schedule"
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	Expect(err).NotTo(HaveOccurred())
	return loc
}

var _ = Describe("Window", func() {
	var (
		berlin *time.Location
		w      schedule.Window
	)

	BeforeEach(func() {
		berlin = mustLoad("Europe/Berlin")
		var err error
		w, err = schedule.NewWindow(berlin, 9, 17)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an empty hour range", func() {
		_, err := schedule.NewWindow(berlin, 17, 9)
		Expect(err).To(HaveOccurred())
	})

	Describe("Clamp", func() {
		It("keeps an instant inside working hours", func() {
			t := time.Date(2025, 3, 5, 11, 30, 0, 0, berlin) // Wednesday
			Expect(w.Clamp(t)).To(BeTemporally("==", t))
		})

		It("moves an early-morning instant to the window start", func() {
			t := time.Date(2025, 3, 5, 6, 0, 0, 0, berlin)
			Expect(w.Clamp(t)).To(BeTemporally("==", time.Date(2025, 3, 5, 9, 0, 0, 0, berlin)))
		})

		It("moves an evening instant to the next morning", func() {
			t := time.Date(2025, 3, 5, 17, 0, 0, 0, berlin)
			Expect(w.Clamp(t)).To(BeTemporally("==", time.Date(2025, 3, 6, 9, 0, 0, 0, berlin)))
		})

		It("skips the weekend in the account zone", func() {
			t := time.Date(2025, 3, 7, 18, 0, 0, 0, berlin) // Friday evening
			Expect(w.Clamp(t)).To(BeTemporally("==", time.Date(2025, 3, 10, 9, 0, 0, 0, berlin)))
		})

		It("uses the account zone rather than UTC for the weekday", func() {
			tokyo, err := schedule.NewWindow(mustLoad("Asia/Tokyo"), 9, 17)
			Expect(err).NotTo(HaveOccurred())
			// Friday 23:30 UTC is Saturday 08:30 in Tokyo.
			t := time.Date(2025, 3, 7, 23, 30, 0, 0, time.UTC)
			got := tokyo.Clamp(t).In(tokyo.Location)
			Expect(got.Weekday()).To(Equal(time.Monday))
			Expect(got.Hour()).To(Equal(9))
		})

		It("never returns an instant before its input", func() {
			start := time.Date(2025, 3, 1, 0, 0, 0, 0, berlin)
			for h := 0; h < 24*14; h += 5 {
				t := start.Add(time.Duration(h) * time.Hour)
				Expect(w.Clamp(t)).NotTo(BeTemporally("<", t))
			}
		})
	})

	Describe("AddWorkingDays", func() {
		It("lands three working days after a Friday on Wednesday at window start", func() {
			friday := time.Date(2025, 3, 7, 15, 0, 0, 0, berlin)
			Expect(w.AddWorkingDays(friday, 3)).To(BeTemporally("==", time.Date(2025, 3, 12, 9, 0, 0, 0, berlin)))
		})

		It("keeps the local wall clock across a DST change", func() {
			// Europe/Berlin springs forward on 2025-03-30.
			friday := time.Date(2025, 3, 28, 10, 0, 0, 0, berlin)
			got := w.AddWorkingDays(friday, 1)
			Expect(got).To(BeTemporally("==", time.Date(2025, 3, 31, 9, 0, 0, 0, berlin)))
			_, offset := got.Zone()
			Expect(offset).To(Equal(2 * 60 * 60))
		})
	})
})

var _ = Describe("NextEligibleTime", func() {
	var (
		utc     schedule.Window
		created time.Time
	)

	BeforeEach(func() {
		var err error
		utc, err = schedule.NewWindow(time.UTC, 9, 17)
		Expect(err).NotTo(HaveOccurred())
		created = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC) // Monday
	})

	It("anchors on lead creation when nothing was sent", func() {
		lead := model.Lead{CreatedAt: created}
		got := schedule.NextEligibleTime(lead, model.Step{Action: model.StepActionConnectionRequest}, utc)
		Expect(got).To(BeTemporally("==", time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)))
	})

	It("anchors on the previous send", func() {
		sent := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) // Friday
		lead := model.Lead{CreatedAt: created, LastStepSentAt: &sent}
		got := schedule.NextEligibleTime(lead, model.Step{DelayWorkingDays: 3}, utc)
		Expect(got).To(BeTemporally("==", time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)))
	})

	It("clamps minute delays that run past working hours", func() {
		sent := time.Date(2025, 3, 4, 16, 30, 0, 0, time.UTC)
		lead := model.Lead{CreatedAt: created, LastStepSentAt: &sent}
		got := schedule.NextEligibleTime(lead, model.Step{DelayMinutes: 60}, utc)
		Expect(got).To(BeTemporally("==", time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)))
	})

	Describe("Due", func() {
		It("is false outside working hours even after the eligible time", func() {
			lead := model.Lead{CreatedAt: created}
			due, next := schedule.Due(lead, model.Step{}, utc, time.Date(2025, 3, 3, 20, 0, 0, 0, time.UTC))
			Expect(due).To(BeFalse())
			Expect(next).To(BeTemporally("==", time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)))
		})

		It("is true once the eligible time has passed inside working hours", func() {
			lead := model.Lead{CreatedAt: created}
			due, _ := schedule.Due(lead, model.Step{}, utc, time.Date(2025, 3, 3, 9, 1, 0, 0, time.UTC))
			Expect(due).To(BeTrue())
		})
	})
})

var _ = Describe("WindowFor", func() {
	It("falls back to UTC for an unknown zone", func() {
		fallback, _ := schedule.NewWindow(time.UTC, 9, 17)
		w, ok := schedule.WindowFor(model.Account{Timezone: "Mars/Olympus", WorkStartHour: 8, WorkEndHour: 16}, fallback)
		Expect(ok).To(BeFalse())
		Expect(w.Location).To(Equal(time.UTC))
		Expect(w.StartHour).To(Equal(8))
	})

	It("falls back to the default hours for an invalid range", func() {
		fallback, _ := schedule.NewWindow(time.UTC, 9, 17)
		w, ok := schedule.WindowFor(model.Account{Timezone: "UTC", WorkStartHour: 0, WorkEndHour: 0}, fallback)
		Expect(ok).To(BeFalse())
		Expect(w.StartHour).To(Equal(9))
		Expect(w.EndHour).To(Equal(17))
	})
})
