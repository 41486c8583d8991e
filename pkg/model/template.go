package model

// SlotTemplate describes the daily layout used to provision slots.
type SlotTemplate struct {
	StartOfDay       string   `json:"start_of_day" validate:"required,time_of_day"`
	EndOfDay         string   `json:"end_of_day" validate:"required,time_of_day"`
	SlotDurationMin  int      `json:"slot_duration_min" validate:"required,min=5,max=480"`
	BreakDurationMin int      `json:"break_duration_min" validate:"min=0,max=480"`
	WorkingDays      []string `json:"working_days" validate:"required,min=1,max=7,dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
}
