package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	"employee_task_bot/internal/app"
	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/task"
	"employee_task_bot/internal/infra/config"
	idb "employee_task_bot/internal/infra/database"
	"employee_task_bot/internal/infra/logger"
	"employee_task_bot/internal/infra/memstore"
	"employee_task_bot/internal/infra/scheduler"
	"employee_task_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// repositories bundles one storage backend.
type repositories struct {
	users       conversation.Repository
	employees   employee.Repository
	departments employee.DepartmentRepository
	dayOffs     employee.DayOffRepository
	tasks       task.Repository
	assignments task.AssignmentRepository
	reports     task.ReportRepository
	delayed     task.DelayedRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load application configuration")
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"admin_id": cfg.AdminTelegramID,
		"timezone": cfg.Location.String(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, db := openStorage(ctx, cfg, mainLogger)
	if db != nil {
		defer db.Close()
	}

	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "text": c.Text()})
			}
			entry.Error("Unhandled bot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	messenger := telegram.NewTelebotAdapter(bot)
	appLogger := logger.Log.WithField("service", "employee_task_bot")

	engine := app.NewEngine(app.EngineDeps{
		Users:       repos.users,
		Employees:   repos.employees,
		Departments: repos.departments,
		DayOffs:     repos.dayOffs,
		Tasks:       repos.tasks,
		Assignments: repos.assignments,
		Reports:     repos.reports,
		Messenger:   messenger,
		MediaHost:   cfg.MediaHost,
		Location:    cfg.Location,
		Logger:      appLogger,
	})
	notifier := app.NewTaskNotifier(app.NotifierDeps{
		Tasks:       repos.tasks,
		Assignments: repos.assignments,
		Delayed:     repos.delayed,
		Employees:   repos.employees,
		DayOffs:     repos.dayOffs,
		Messenger:   messenger,
		MediaHost:   cfg.MediaHost,
		Logger:      appLogger,
	})
	adminService := app.NewAdminService(app.AdminDeps{
		Employees:   repos.employees,
		DayOffs:     repos.dayOffs,
		Tasks:       repos.tasks,
		Assignments: repos.assignments,
		Reports:     repos.reports,
		Messenger:   messenger,
		MediaHost:   cfg.MediaHost,
		AdminID:     cfg.AdminTelegramID,
		Logger:      appLogger,
	})

	telegramLogger := logger.Component("telegram")
	telegram.RegisterHelpCommand(bot, cfg.AdminTelegramID, telegramLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, telegramLogger.WithField("handler_group", "admin"))
	telegram.RegisterConversationHandlers(ctx, bot, engine, telegramLogger)
	mainLogger.Info("Telegram handlers registered")

	taskScheduler := scheduler.NewTaskScheduler(notifier, scheduler.Specs{
		Dispatch: cfg.CronSpecDispatch,
		Ignored:  cfg.CronSpecIgnored,
		Expired:  cfg.CronSpecExpired,
		Delayed:  cfg.CronSpecDelayed,
	}, cfg.Location, logger.Component("scheduler"))
	if err := taskScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start task scheduler")
	}

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and Scheduler are running")

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	taskScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}

// openStorage selects the backend named by the configuration. The returned *sql.DB is nil for memory.
func openStorage(ctx context.Context, cfg *config.AppConfig, log *logrus.Entry) (repositories, *sql.DB) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage; data is lost on restart")
		store := memstore.New()
		return repositories{
			users:       store.Users(),
			employees:   store.Employees(),
			departments: store.Departments(),
			dayOffs:     store.DayOffs(),
			tasks:       store.Tasks(),
			assignments: store.Assignments(),
			reports:     store.Reports(),
			delayed:     store.DelayedTasks(),
		}, nil
	}

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	if err := idb.EnsureSchema(ctx, db); err != nil {
		db.Close()
		log.WithError(err).Fatal("Could not apply database schema")
	}
	log.Info("Database connection established successfully.")
	return repositories{
		users:       idb.NewPostgresUserRepository(db),
		employees:   idb.NewPostgresEmployeeRepository(db),
		departments: idb.NewPostgresDepartmentRepository(db),
		dayOffs:     idb.NewPostgresDayOffRepository(db),
		tasks:       idb.NewPostgresTaskRepository(db),
		assignments: idb.NewPostgresAssignmentRepository(db),
		reports:     idb.NewPostgresReportRepository(db),
		delayed:     idb.NewPostgresDelayedRepository(db),
	}, db
}
