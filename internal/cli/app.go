package cli

import (
	"context"
	"fmt"

	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/config"
	"github.com/ambiora/techfest-backend/internal/database"
	"github.com/ambiora/techfest-backend/internal/payment"
	"github.com/ambiora/techfest-backend/internal/queue"
	"github.com/ambiora/techfest-backend/internal/repository"
	"github.com/ambiora/techfest-backend/internal/repository/memrepo"
	"github.com/ambiora/techfest-backend/internal/repository/mongorepo"
	"github.com/ambiora/techfest-backend/internal/service"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg     config.Config
	store   repository.Store
	gateway payment.Gateway
	catalog *catalog.Catalog

	auth      *service.AuthService
	adminAuth *service.AdminAuth
	regs      *service.RegistrationService
	teams     *service.TeamService
	checkout  *service.CheckoutService
	admin     *service.AdminService
}

func newApp(ctx context.Context, cfg config.Config, pub queue.Publisher) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gw, err := payment.NewGateway(cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	if pub == nil {
		pub = queue.Nop{}
	}
	cat := catalog.Default()

	a := &app{cfg: cfg, store: store, gateway: gw, catalog: cat}
	a.auth = &service.AuthService{Users: store, Secret: cfg.JWTSecret, TokenTTL: cfg.UserTokenTTL, BcryptCost: cfg.BcryptCost}
	a.adminAuth = &service.AdminAuth{Password: cfg.AdminPassword, Secret: cfg.JWTSecret, TokenTTL: cfg.AdminTokenTTL}
	a.regs = &service.RegistrationService{Users: store, Registrations: store, Gateway: gw, Publisher: pub, Catalog: cat}
	a.teams = &service.TeamService{Users: store, Teams: store, Registrations: store, Catalog: cat}
	a.checkout = &service.CheckoutService{
		Users:         store,
		Registrations: store,
		Payments:      a.regs,
		Gateway:       gw,
		Catalog:       cat,
		FeeBPS:        cfg.ConvenienceFeeBPS,
		PublicBaseURL: cfg.PublicBaseURL,
		Environment:   cfg.Cashfree.Env,
	}
	a.admin = &service.AdminService{Registrations: a.regs, Teams: a.teams}
	return a, nil
}

func (a *app) Close(ctx context.Context) error { return a.store.Close(ctx) }

// publisher announces confirmed registrations on the broker when the
// queue is enabled.
func publisher(cfg config.Config) queue.Publisher {
	if cfg.Queue.Enabled {
		return queue.NewAMQPPublisher(cfg.Queue.URL)
	}
	return queue.Nop{}
}

// openStore connects the driver named by STORE_DRIVER. MySQL tables are
// created on open; Mongo indexes are created on first connect.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("mysql: %w", err)
		}
		if err := repository.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("mysql migrate: %w", err)
		}
		return repository.NewSQLStore(db), nil
	case config.DriverMongo:
		return mongorepo.New(database.NewMongoConnector(cfg.MongoURI, cfg.MongoDB)), nil
	case config.DriverMemory:
		return memrepo.New(), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
}
