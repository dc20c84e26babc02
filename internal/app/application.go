package app

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/recordstore/internal/app/cache"
	"github.com/R3E-Network/recordstore/internal/app/services/carts"
	"github.com/R3E-Network/recordstore/internal/app/services/genres"
	"github.com/R3E-Network/recordstore/internal/app/services/groups"
	"github.com/R3E-Network/recordstore/internal/app/services/orders"
	"github.com/R3E-Network/recordstore/internal/app/services/records"
	"github.com/R3E-Network/recordstore/internal/app/services/sweeper"
	"github.com/R3E-Network/recordstore/internal/app/services/users"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/app/storage/memory"
	"github.com/R3E-Network/recordstore/internal/app/system"
	"github.com/R3E-Network/recordstore/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users   storage.UserStore
	Genres  storage.GenreStore
	Groups  storage.GroupStore
	Records storage.RecordStore
	Carts   storage.CartStore
	Orders  storage.OrderStore
}

// Options tune optional parts of the application.
type Options struct {
	// Cache backs catalog reads. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	// SweepSchedule empty disables the stale cart sweeper.
	SweepSchedule string
	CartTTL       time.Duration

	// HashCost overrides the bcrypt cost when non-zero.
	HashCost int
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Users   *users.Service
	Genres  *genres.Service
	Groups  *groups.Service
	Records *records.Service
	Carts   *carts.Service
	Orders  *orders.Service
	Sweeper *sweeper.Sweeper
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Genres == nil {
		stores.Genres = mem
	}
	if stores.Groups == nil {
		stores.Groups = mem
	}
	if stores.Records == nil {
		stores.Records = mem
	}
	if stores.Carts == nil {
		stores.Carts = mem
	}
	if stores.Orders == nil {
		stores.Orders = mem
	}

	manager := system.NewManager()

	userService := users.New(stores.Users, stores.Carts, log.Named("users"))
	if opts.HashCost != 0 {
		userService.WithHashCost(opts.HashCost)
	}
	genreService := genres.New(stores.Genres, opts.Cache, log.Named("genres")).WithCacheTTL(opts.CacheTTL)
	groupService := groups.New(stores.Groups, stores.Genres, opts.Cache, log.Named("groups")).WithCacheTTL(opts.CacheTTL)
	recordService := records.New(stores.Records, stores.Groups, stores.Genres, log.Named("records"))
	cartService := carts.New(stores.Carts, log.Named("carts"))
	orderService := orders.New(stores.Orders, stores.Carts, log.Named("orders"))

	application := &Application{
		manager: manager,
		log:     log,
		Users:   userService,
		Genres:  genreService,
		Groups:  groupService,
		Records: recordService,
		Carts:   cartService,
		Orders:  orderService,
	}

	if opts.SweepSchedule != "" {
		application.Sweeper = sweeper.New(stores.Carts, opts.SweepSchedule, opts.CartTTL, log.Named("cart-sweeper"))
		if err := manager.Register(application.Sweeper); err != nil {
			return nil, fmt.Errorf("register %s: %w", application.Sweeper.Name(), err)
		}
	} else {
		log.Warn("cart sweeper disabled; abandoned carts keep their stock")
	}

	return application, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Services lists the names of lifecycle-managed services in start order.
func (a *Application) Services() []string {
	return a.manager.Names()
}
