package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/validator"
	"slotbook/pkg/config"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/google/uuid"
)

// Result counts what a provisioning run did with each planned slot.
type Result struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Past     int `json:"past"`
}

type Provisioner struct {
	slots     repository.SlotRepository
	validator *validator.ReservationValidator
	logger    *logger.Logger
	now       func() time.Time
}

func NewProvisioner(slots repository.SlotRepository, v *validator.ReservationValidator, log *logger.Logger) *Provisioner {
	return &Provisioner{
		slots:     slots,
		validator: v,
		logger:    log,
		now:       time.Now,
	}
}

// TemplateFromConfig builds the daily template from the PROVISION_* settings.
func TemplateFromConfig(cfg *config.Config) *model.SlotTemplate {
	days := make([]string, 0, len(cfg.ProvisionWorkingDays))
	for _, d := range cfg.ProvisionWorkingDays {
		days = append(days, strings.ToLower(strings.TrimSpace(d)))
	}
	return &model.SlotTemplate{
		StartOfDay:       cfg.ProvisionStartOfDay,
		EndOfDay:         cfg.ProvisionEndOfDay,
		SlotDurationMin:  cfg.ProvisionSlotDurationMin,
		BreakDurationMin: cfg.ProvisionBreakMin,
		WorkingDays:      days,
	}
}

// Plan lays the template over days consecutive UTC dates starting at the
// date of from. Slots are returned in ascending start order and carry fresh IDs.
func (p *Provisioner) Plan(tpl *model.SlotTemplate, from time.Time, days int) ([]*model.Slot, error) {
	if err := p.validator.ValidateTemplate(tpl); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	startOfDay, err := parseTimeOfDay(tpl.StartOfDay)
	if err != nil {
		return nil, err
	}
	endOfDay, err := parseTimeOfDay(tpl.EndOfDay)
	if err != nil {
		return nil, err
	}

	working := make(map[time.Weekday]bool, len(tpl.WorkingDays))
	for _, d := range tpl.WorkingDays {
		wd, ok := weekdayByName[d]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", d)
		}
		working[wd] = true
	}

	duration := time.Duration(tpl.SlotDurationMin) * time.Minute
	step := duration + time.Duration(tpl.BreakDurationMin)*time.Minute

	from = from.UTC()
	first := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	var slots []*model.Slot
	for i := 0; i < days; i++ {
		date := first.AddDate(0, 0, i)
		if !working[date.Weekday()] {
			continue
		}
		dayEnd := date.Add(endOfDay)
		for start := date.Add(startOfDay); !start.Add(duration).After(dayEnd); start = start.Add(step) {
			slots = append(slots, &model.Slot{
				ID:        uuid.NewString(),
				StartTime: start,
				EndTime:   start.Add(duration),
			})
		}
	}
	return slots, nil
}

// Run creates the planned slots. Slots that already exist at the same start
// time, or that start before now, are counted and skipped, so running the job
// twice over the same range is harmless.
func (p *Provisioner) Run(ctx context.Context, tpl *model.SlotTemplate, from time.Time, days int) (Result, error) {
	var res Result

	slots, err := p.Plan(tpl, from, days)
	if err != nil {
		return res, err
	}

	now := model.NormalizeTime(p.now())
	for _, slot := range slots {
		if slot.StartTime.Before(now) {
			res.Past++
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := p.slots.Create(ctx, slot)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, reservationserrors.ErrDuplicateSlot):
			res.Existing++
		default:
			return res, fmt.Errorf("failed to create slot at %s: %w", slot.StartTime.Format(time.RFC3339), err)
		}
	}

	p.logger.Info("Slots provisioned",
		"from", from.UTC().Format(time.DateOnly),
		"days", days,
		"created", res.Created,
		"existing", res.Existing,
		"past", res.Past,
	)
	return res, nil
}

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
