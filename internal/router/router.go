package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	mem "pet-medical-access/internal/adapters/storage/memory"
	pg "pet-medical-access/internal/adapters/storage/postgres"
	"pet-medical-access/internal/domain/grants"
	"pet-medical-access/internal/domain/memberships"
	"pet-medical-access/internal/domain/otp"
	"pet-medical-access/internal/domain/permissions"
	"pet-medical-access/internal/domain/pets"
	"pet-medical-access/internal/domain/records"
	"pet-medical-access/internal/middleware"
	"pet-medical-access/internal/platform/logger"
	"pet-medical-access/internal/ports/auth"
	"pet-medical-access/internal/ports/delivery"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, intenta DB_DSN y cae a in-memory.
	DB *sql.DB

	// Canal de delivery del OTP hacia el dueño. Nil = no se envía nada.
	Sender delivery.Sender

	Log logger.Logger

	// Si > 0, arranca el sweep periódico de grants vencidos.
	SweepInterval time.Duration
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	var (
		petRepo         pets.Repository
		otpRepo         otp.Repository
		membershipsRepo memberships.Repository
		grantsRepo      grants.Repository
		recordsRepo     records.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres unavailable, falling back to memory", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}

	if db != nil {
		petRepo = pg.NewPetsRepo(db)
		otpRepo = pg.NewOTPsRepo(db)
		membershipsRepo = pg.NewMembershipsRepo(db)
		grantsRepo = pg.NewGrantsRepo(db)
		recordsRepo = pg.NewRecordsRepo(db)
	} else {
		petRepo = mem.NewPetsRepo()
		otpRepo = mem.NewOTPsRepo()
		membershipsRepo = mem.NewMembershipsRepo()
		grantsRepo = mem.NewGrantsRepo()
		recordsRepo = mem.NewRecordsRepo()
	}

	// Services por módulo
	petsSvc := pets.NewService(petRepo)
	otpSvc := otp.NewService(otpRepo)
	membershipsSvc := memberships.NewService(membershipsRepo)
	grantsSvc := grants.NewService(grantsRepo, otpSvc, petsSvc, opts.Sender, log)
	engine := permissions.NewEngine(membershipsSvc, grantsRepo, recordsRepo)
	recordsSvc := records.NewService(recordsRepo, petsSvc, engine)

	// Rutas por módulo
	pets.RegisterRoutes(r, petsSvc, func(ctx context.Context, userID string, roles []string, p pets.Pet) bool {
		actor := permissions.Actor{ID: userID, Roles: permissions.ParseRoles(roles)}
		return engine.CanRead(ctx, actor, p)
	})
	memberships.RegisterRoutes(r, membershipsSvc)
	grants.RegisterRoutes(r, grantsSvc)
	records.RegisterRoutes(r, recordsSvc)

	if opts.SweepInterval > 0 {
		go sweepLoop(grantsSvc, log, opts.SweepInterval)
	}

	return r
}

// sweepLoop marca grants vencidos en lotes. Es limpieza contable: las lecturas
// re-chequean el reloj por su cuenta, así que un sweep atrasado no abre acceso.
func sweepLoop(svc *grants.Service, log logger.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := svc.SweepExpired(ctx, 0)
		cancel()

		if err != nil {
			log.Warn("grant sweep failed", map[string]any{"error": err.Error()})
			continue
		}
		if n > 0 {
			log.Info("expired grants swept", map[string]any{"count": n})
		}
	}
}
