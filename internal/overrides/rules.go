package overrides

import (
	"time"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// Active returns the rules whose inclusive date range contains date.
func Active(rules []models.Override, date time.Time) []models.Override {
	day := timegrid.Day(date)
	var active []models.Override
	for _, r := range rules {
		if !timegrid.Day(r.StartDate).After(day) && !timegrid.Day(r.EndDate).Before(day) {
			active = append(active, r)
		}
	}
	return active
}

// AppliesTo reports whether slot lies within the rule's slot bounds.
// Unset bounds are open; the end bound is inclusive.
func AppliesTo(rule *models.Override, slot int) bool {
	if rule.StartSlot != nil && slot < *rule.StartSlot {
		return false
	}
	if rule.EndSlot != nil && slot > *rule.EndSlot {
		return false
	}
	return true
}

// IsBlocked reports whether any active BLOCKED rule applies to slot on date.
func IsBlocked(rules []models.Override, date time.Time, slot int) bool {
	return matches(rules, date, slot, models.OverrideBlocked)
}

// IsExtended reports whether any active EXTENDED rule applies to slot on date,
// which exempts the slot from grid alignment.
func IsExtended(rules []models.Override, date time.Time, slot int) bool {
	return matches(rules, date, slot, models.OverrideExtended)
}

func matches(rules []models.Override, date time.Time, slot int, status models.OverrideStatus) bool {
	for _, r := range Active(rules, date) {
		if r.Status == status && AppliesTo(&r, slot) {
			return true
		}
	}
	return false
}

// ValidateRule checks the rule's date and slot bounds against machine.
// Slot bounds must sit on the grid only for machines with the standard slot duration.
func ValidateRule(rule *models.Override, machine *models.Machine) error {
	if rule.StartDate.IsZero() || rule.EndDate.IsZero() {
		return domain.InvalidOverrideRange("Start date and end date are required.")
	}
	if timegrid.Day(rule.EndDate).Before(timegrid.Day(rule.StartDate)) {
		return domain.InvalidOverrideRange("End date must be on or after start date.")
	}
	if rule.StartSlot != nil && !timegrid.InDay(*rule.StartSlot) {
		return domain.InvalidOverrideRange("Start slot must be between 0 and 1439 minutes.")
	}
	if rule.EndSlot != nil && !timegrid.InDay(*rule.EndSlot) {
		return domain.InvalidOverrideRange("End slot must be between 0 and 1439 minutes.")
	}
	if rule.StartSlot != nil && rule.EndSlot != nil && *rule.EndSlot < *rule.StartSlot {
		return domain.InvalidOverrideRange("End slot must be greater than or equal to start slot.")
	}
	if machine.EffectiveSlotDuration() == timegrid.BaseSlotWidth {
		if rule.StartSlot != nil && *rule.StartSlot%timegrid.BaseSlotWidth != 0 {
			return domain.InvalidOverrideRange("Start slot must align with 90-minute increments.")
		}
		if rule.EndSlot != nil && *rule.EndSlot%timegrid.BaseSlotWidth != 0 {
			return domain.InvalidOverrideRange("End slot must align with 90-minute increments.")
		}
	}
	if rule.Status != models.OverrideBlocked && rule.Status != models.OverrideExtended {
		return domain.InvalidOverrideRange("Status must be BLOCKED or EXTENDED.")
	}
	return nil
}
