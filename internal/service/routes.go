package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmynk/savingcircle/internal/auth"
	"github.com/mmynk/savingcircle/internal/metrics"
	"github.com/mmynk/savingcircle/internal/middleware"
	"github.com/mmynk/savingcircle/internal/storage"
	"github.com/mmynk/savingcircle/pkg/wire"
)

// PublicProcedures are served without a bearer token.
var PublicProcedures = []string{wire.RegisterProcedure, wire.LoginProcedure}

type unaryHandler func(context.Context, *unaryRequest) (*unaryResponse, error)

// procedures maps every procedure path to its handler.
func procedures(ledger *LedgerService, authSvc *AuthService) map[string]unaryHandler {
	return map[string]unaryHandler{
		wire.ListMyGroupsProcedure:           ledger.ListMyGroups,
		wire.ListDiscoverableGroupsProcedure: ledger.ListDiscoverableGroups,
		wire.GetGroupProcedure:               ledger.GetGroup,
		wire.CreateGroupProcedure:            ledger.CreateGroup,
		wire.JoinGroupProcedure:              ledger.JoinGroup,
		wire.ContributeProcedure:             ledger.Contribute,
		wire.RequestWithdrawalProcedure:      ledger.RequestWithdrawal,
		wire.DecideWithdrawalProcedure:       ledger.DecideWithdrawal,
		wire.RegisterProcedure:               authSvc.Register,
		wire.LoginProcedure:                  authSvc.Login,
		wire.GetProfileProcedure:             authSvc.GetProfile,
		wire.UpdateProfileProcedure:          authSvc.UpdateProfile,
	}
}

// Mount registers every procedure on r.
func Mount(r chi.Router, ledger *LedgerService, authSvc *AuthService, opts ...connect.HandlerOption) {
	for procedure, handler := range procedures(ledger, authSvc) {
		r.Handle(procedure, connect.NewUnaryHandler(procedure, handler, opts...))
	}
}

// Options assembles a complete ledger server.
type Options struct {
	Store      storage.Store
	JWTManager *auth.JWTManager
	Logger     *slog.Logger
	// Metrics may be nil.
	Metrics *metrics.Server
	// BcryptCost overrides the password hashing cost when non-zero.
	BcryptCost int
}

// NewRouter returns a chi router serving both services, with authentication,
// logging and metrics interceptors installed.
func NewRouter(o Options) chi.Router {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authenticator := auth.NewPasswordAuthenticator(o.Store)
	if o.BcryptCost != 0 {
		authenticator.WithCost(o.BcryptCost)
	}

	var interceptors []connect.Interceptor
	if o.Metrics != nil {
		interceptors = append(interceptors, o.Metrics.Interceptor())
	}
	interceptors = append(interceptors,
		middleware.RequireAuth(o.JWTManager, PublicProcedures...),
		middleware.LoggingInterceptor(logger),
	)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/healthz"))
	Mount(r,
		NewLedgerService(o.Store, logger),
		NewAuthService(authenticator, o.JWTManager, o.Store, logger),
		connect.WithInterceptors(interceptors...),
	)
	return r
}
