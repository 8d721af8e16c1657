package attendance

import (
	"context"
	"fmt"

	"github.com/warp/attendance/calendar"
)

// SettingsView is a user's settings with the effective quota filled in.
type SettingsView struct {
	LeaveQuota              LeaveQuota `json:"leaveQuota"`
	DefaultWorkFromHomeDays []string   `json:"defaultWorkFromHomeDays"`
	OnboardingCompleted     bool       `json:"onboardingCompleted"`
}

// GetSettings returns the user's settings.
func (s *Service) GetSettings(ctx context.Context, userID string) (*SettingsView, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return viewOf(u.Settings), nil
}

// UpdateSettings replaces the quota and default WFH days and marks
// onboarding as completed.
func (s *Service) UpdateSettings(ctx context.Context, userID string, quota LeaveQuota, wfhDays []string) (*SettingsView, error) {
	if quota.Planned < 0 || quota.Unplanned < 0 || quota.Parental < 0 {
		return nil, invalid("leaveQuota", "quotas must not be negative")
	}
	for _, name := range wfhDays {
		if _, err := calendar.ParseWeekday(name); err != nil {
			return nil, invalid("defaultWorkFromHomeDays", "invalid day: %s", name)
		}
	}
	if userID == "" {
		return nil, invalid("userId", "is required")
	}

	if wfhDays == nil {
		wfhDays = []string{}
	}
	u, err := s.store.UpdateSettings(ctx, userID, Settings{
		LeaveQuota:              &quota,
		DefaultWorkFromHomeDays: wfhDays,
		OnboardingCompleted:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("update settings for %s: %w", userID, err)
	}
	s.logger.Info("settings updated", "user", userID, "quota", quota.Total(), "wfhDays", len(wfhDays))
	return viewOf(u.Settings), nil
}

func viewOf(st Settings) *SettingsView {
	days := st.DefaultWorkFromHomeDays
	if days == nil {
		days = []string{}
	}
	return &SettingsView{
		LeaveQuota:              st.Quota(),
		DefaultWorkFromHomeDays: days,
		OnboardingCompleted:     st.OnboardingCompleted,
	}
}
