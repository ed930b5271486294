// Command balancectl - администраторская утилита: заведение пользователей,
// ручные операции по балансу и отмена отложенных операций мимо HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/fsdevblog/groph-balance/internal/cache"
	"github.com/fsdevblog/groph-balance/internal/config"
	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/logger"
	"github.com/fsdevblog/groph-balance/internal/repository/pgrepo"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/internal/service"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	_ "github.com/golang-migrate/migrate/v4/source/file"       //nolint:revive
)

const usage = `usage: balancectl <command> [flags]

commands:
  user-create  -login <login> -password <password>
  operate      -login <login> -type <credit|debit> -amount <amount> -description <text>
  cancel       -login <login> -id <operation id>

connection settings are taken from the environment (DATABASE_URI, MIGRATIONS_DIR,
REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, JWT_USER_SECRET).
`

func main() {
	l := logger.New(os.Stderr)

	if len(os.Args) < 2 { //nolint:mnd
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2) //nolint:mnd
	}

	if err := run(context.Background(), l, os.Args[1], os.Args[2:]); err != nil {
		l.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, l *logrus.Logger, command string, args []string) error {
	var conf config.Config
	if envErr := env.Parse(&conf); envErr != nil {
		return fmt.Errorf("parse env config: %s", envErr.Error())
	}
	if conf.MigrationsDir == "" {
		conf.MigrationsDir = "migrations"
	}

	services, cleanup, initErr := initServices(ctx, &conf, l)
	if initErr != nil {
		return initErr
	}
	defer cleanup()

	switch command {
	case "user-create":
		return userCreate(ctx, services, args)
	case "operate":
		return operate(ctx, services, args)
	case "cancel":
		return cancel(ctx, services, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func initServices(ctx context.Context, conf *config.Config, l *logrus.Logger) (*service.AppServices, func(), error) {
	conn, connErr := pgrepo.Connect(ctx, conf.MigrationsDir, conf.DatabaseDSN, l)
	if connErr != nil {
		return nil, nil, fmt.Errorf("init services: %s", connErr.Error())
	}

	unitOfWork := uow.NewUnitOfWork(conn)
	factories := map[repoargs.RepositoryName]uow.RepositoryFactory{
		repoargs.UserRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewUserRepository(dbtx)
		},
		repoargs.BalanceRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewBalanceRepository(dbtx)
		},
		repoargs.TransactionRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewTransactionRepository(dbtx)
		},
		repoargs.OperationRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewOperationRepository(dbtx)
		},
	}
	for name, factoryFn := range factories {
		if regErr := unitOfWork.Register(uow.RepositoryName(name), factoryFn); regErr != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("init services: %s", regErr.Error())
		}
	}

	redisClient, redisErr := cache.Connect(ctx, conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
	if redisErr != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("init services: %s", redisErr.Error())
	}

	services, sErr := service.Factory(unitOfWork, cache.NewBalanceCache(redisClient), []byte(conf.JWTUserSecret), l)
	if sErr != nil {
		redisClient.Close() //nolint:errcheck,gosec
		conn.Close()
		return nil, nil, fmt.Errorf("init services: %s", sErr.Error())
	}

	cleanup := func() {
		redisClient.Close() //nolint:errcheck,gosec
		conn.Close()
	}
	return services, cleanup, nil
}

func userCreate(ctx context.Context, services *service.AppServices, args []string) error {
	fs := flag.NewFlagSet("user-create", flag.ExitOnError)
	login := fs.String("login", "", "user login")
	password := fs.String("password", "", "user password")
	_ = fs.Parse(args)

	if *login == "" || *password == "" {
		return fmt.Errorf("user-create: login and password are required")
	}

	user, _, err := services.UserService.Register(ctx, service.RegisterUserArgs{
		Login:    *login,
		Password: *password,
	})
	if err != nil {
		return fmt.Errorf("user-create: %w", err)
	}

	fmt.Printf("user %q created, id=%d\n", user.Login, user.ID)
	return nil
}

// operate применяет операцию синхронно, минуя очередь: результат нужен сразу.
func operate(ctx context.Context, services *service.AppServices, args []string) error {
	fs := flag.NewFlagSet("operate", flag.ExitOnError)
	login := fs.String("login", "", "user login")
	opType := fs.String("type", "", "operation type: credit or debit")
	amount := fs.String("amount", "", "operation amount")
	description := fs.String("description", "", "operation description")
	_ = fs.Parse(args)

	if *login == "" {
		return fmt.Errorf("operate: login is required")
	}
	amountDec, amountErr := decimal.NewFromString(*amount)
	if amountErr != nil {
		return fmt.Errorf("operate: invalid amount %q: %s", *amount, amountErr.Error())
	}

	user, userErr := services.UserService.FindByLogin(ctx, *login)
	if userErr != nil {
		return fmt.Errorf("operate: %w", userErr)
	}

	transaction, err := services.BalanceService.ApplyOperation(ctx, service.ApplyOperationArgs{
		UserID:      user.ID,
		Type:        domain.TransactionType(*opType),
		Amount:      amountDec,
		Description: *description,
	})
	if err != nil {
		return fmt.Errorf("operate: %w", err)
	}

	fmt.Printf("transaction %d applied, balance after: %s\n", transaction.ID, transaction.BalanceAfter.String())
	return nil
}

func cancel(ctx context.Context, services *service.AppServices, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	login := fs.String("login", "", "user login")
	id := fs.Int64("id", 0, "operation id")
	_ = fs.Parse(args)

	if *login == "" || *id == 0 {
		return fmt.Errorf("cancel: login and id are required")
	}

	user, userErr := services.UserService.FindByLogin(ctx, *login)
	if userErr != nil {
		return fmt.Errorf("cancel: %w", userErr)
	}

	if err := services.OperationService.Cancel(ctx, *id, user.ID); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}

	fmt.Printf("operation %d cancelled\n", *id)
	return nil
}
