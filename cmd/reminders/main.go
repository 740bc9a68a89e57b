// Command reminders runs a single due-date reminder sweep and exits.
// Schedule it from cron when the in-process worker is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"bookswap/internal/cache"
	"bookswap/internal/config"
	"bookswap/internal/database"
	"bookswap/internal/mail"
	"bookswap/internal/middleware"
	"bookswap/internal/notifications"
	"bookswap/internal/repository"
	"bookswap/internal/service"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "List eligible loans without sending anything")
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort the sweep after this long")
	flag.Parse()

	if err := run(*dryRun, *timeout); err != nil {
		log.Fatal(err)
	}
}

func run(dryRun bool, timeout time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	// Without Redis the sweep still emails and stores notifications.
	cache.InitRedis(cfg.RedisURL)

	mailer, err := mail.New(cfg, middleware.Logger)
	if err != nil {
		return fmt.Errorf("mailer setup: %w", err)
	}

	reminders := service.NewReminderService(
		db,
		repository.NewLoanRepository(db),
		repository.NewNotificationRepository(db),
		notifications.NewNotifier(cache.GetClient()),
		mailer,
		cfg.ReminderWindowDays,
		cfg.ReminderCooldown(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if dryRun {
		candidates, err := reminders.Eligible(ctx)
		if err != nil {
			return fmt.Errorf("list eligible loans: %w", err)
		}
		for _, c := range candidates {
			fmt.Printf("request=%d borrower=%d days_remaining=%d send_now=%t\n",
				c.Loan.ID, c.Loan.BorrowerID, c.DaysRemaining, c.SendNow)
		}
		fmt.Printf("%d eligible loan(s).\n", len(candidates))
		return nil
	}

	res, err := reminders.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}
	fmt.Printf("Sent %d reminder(s).\n", res.Sent)
	if res.Failed > 0 {
		log.Printf("%d reminder(s) failed, see logs", res.Failed)
	}
	return nil
}
