package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"slotbook/internal/provisioning"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/validator"
	"slotbook/pkg/config"

	"github.com/alecthomas/kong"
)

const JobName = "slot-provisioning"

var CLI struct {
	From    string        `help:"First date to provision (YYYY-MM-DD, UTC). Defaults to today." placeholder:"DATE"`
	Days    int           `help:"Number of days to provision. Defaults to PROVISION_DAYS_AHEAD."`
	DryRun  bool          `help:"Print the planned slots without writing them."`
	Timeout time.Duration `help:"Overall job timeout." default:"5m"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("provision"),
		kong.Description("Create bookable slots from the PROVISION_* daily template."),
		kong.UsageOnError(),
	)

	from := time.Now().UTC()
	if CLI.From != "" {
		d, err := time.Parse(time.DateOnly, CLI.From)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --from date %q: %v\n", CLI.From, err)
			os.Exit(1)
		}
		from = d
	}

	cfg := config.Load(JobName)
	days := cfg.ProvisionDaysAhead
	if CLI.Days > 0 {
		days = CLI.Days
	}
	tpl := provisioning.TemplateFromConfig(cfg)

	if CLI.DryRun {
		p := provisioning.NewProvisioner(nil, validator.NewReservationValidator(cfg.Log), cfg.Log)
		slots, err := p.Plan(tpl, from, days)
		if err != nil {
			cfg.Log.Fatal("Invalid provisioning template", "error", err)
		}
		for _, s := range slots {
			fmt.Printf("%s  %s\n", s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339))
		}
		fmt.Printf("%d slot(s) planned\n", len(slots))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), CLI.Timeout)
	defer cancel()

	cfg.SetStore()
	defer cfg.GracefulShutdown()

	store := repository.NewStore(cfg)
	p := provisioning.NewProvisioner(store.Slots, validator.NewReservationValidator(cfg.Log), cfg.Log)

	res, err := p.Run(ctx, tpl, from, days)
	if err != nil {
		cfg.Log.Error("Provisioning failed",
			"error", err,
			"created", res.Created,
			"existing", res.Existing,
		)
		cfg.GracefulShutdown()
		os.Exit(1)
	}
	fmt.Printf("created=%d existing=%d past=%d\n", res.Created, res.Existing, res.Past)
}
