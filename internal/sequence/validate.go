package sequence

import (
	"errors"
	"fmt"
	"strings"

	"cadence.app/outreach/internal/model"
)

// ValidateSequence checks a campaign's steps before it is activated.
func ValidateSequence(steps []model.Step) error {
	if len(steps) == 0 {
		return errors.New("sequence has no steps")
	}
	var errs []error
	for i, s := range steps {
		switch s.Action {
		case model.StepActionConnectionRequest:
			if i != 0 {
				errs = append(errs, fmt.Errorf("step %d: connection_request must be the first step", i))
			}
		case model.StepActionMessage:
			if strings.TrimSpace(s.Template) == "" {
				errs = append(errs, fmt.Errorf("step %d: message template is empty", i))
			}
		default:
			errs = append(errs, fmt.Errorf("step %d: unknown action %q", i, s.Action))
		}
		if s.DelayWorkingDays < 0 || s.DelayMinutes < 0 {
			errs = append(errs, fmt.Errorf("step %d: negative delay", i))
		}
		if s.DelayWorkingDays > 0 && s.DelayMinutes > 0 {
			errs = append(errs, fmt.Errorf("step %d: set either delay_working_days or delay_minutes", i))
		}
		if s.Template != "" {
			if err := CheckTemplate(s.Template); err != nil && errors.Is(err, ErrMalformedTemplate) {
				errs = append(errs, fmt.Errorf("step %d: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}
