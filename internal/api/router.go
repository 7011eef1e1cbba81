package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/handreceipt/internal/idempotency"
	"github.com/erazemk/handreceipt/internal/ledger"
	"github.com/erazemk/handreceipt/internal/model"
	"github.com/erazemk/handreceipt/internal/transfer"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	TokenTTL  time.Duration

	Transfers *transfer.Service
	Ledger    *ledger.SQLite // nil hides the ledger endpoints

	// ItemLedger records item registrations; nil skips them.
	ItemLedger ledger.ItemRecorder

	// Redis enables Idempotency-Key handling on POST /api/transfers.
	Redis          redis.UniversalClient
	IdempotencyTTL time.Duration
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	sessions := NewSessions()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL}
	usersHandler := &UsersHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{DB: d.DB, Ledger: d.ItemLedger}
	transfersHandler := &TransfersHandler{Service: d.Transfers, Sessions: sessions}
	sessionHandler := &SessionHandler{Sessions: sessions}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	idem := func(h http.Handler) http.Handler { return h }
	if d.Redis != nil {
		idem = idempotency.Middleware(d.Redis, d.IdempotencyTTL, func(r *http.Request) string {
			return strconv.FormatInt(GetClaims(r.Context()).UserID, 10)
		})
	}

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only), directory (all roles).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))
	mux.Handle("GET /api/directory", authMW(http.HandlerFunc(usersHandler.Directory)))

	// Transfers (all roles).
	mux.Handle("GET /api/transfers", authMW(http.HandlerFunc(transfersHandler.List)))
	mux.Handle("POST /api/transfers", authMW(idem(http.HandlerFunc(transfersHandler.Create))))
	mux.Handle("GET /api/transfers/pending-count", authMW(http.HandlerFunc(transfersHandler.PendingCount)))
	mux.Handle("GET /api/transfers/{id}", authMW(http.HandlerFunc(transfersHandler.Get)))
	mux.Handle("PATCH /api/transfers/{id}/status", authMW(http.HandlerFunc(transfersHandler.UpdateStatus)))
	mux.Handle("POST /api/scan", authMW(http.HandlerFunc(transfersHandler.Scan)))

	// Session view state.
	mux.Handle("GET /api/session", authMW(http.HandlerFunc(sessionHandler.Get)))
	mux.Handle("POST /api/session/actions", authMW(http.HandlerFunc(sessionHandler.Dispatch)))

	// Items: read (all roles), write (manager+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireManager(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{serial}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/items/{serial}/qr", authMW(http.HandlerFunc(itemsHandler.QR)))
	mux.Handle("PUT /api/items/{serial}/photo", authMW(requireManager(http.HandlerFunc(itemsHandler.UploadPhoto))))
	mux.Handle("GET /api/items/{serial}/photo", authMW(http.HandlerFunc(itemsHandler.GetPhoto)))

	// Ledger (manager+).
	if d.Ledger != nil {
		ledgerHandler := &LedgerHandler{Ledger: d.Ledger}
		mux.Handle("GET /api/ledger", authMW(requireManager(http.HandlerFunc(ledgerHandler.History))))
		mux.Handle("GET /api/ledger/verify", authMW(requireManager(http.HandlerFunc(ledgerHandler.Verify))))
		mux.Handle("POST /api/ledger/corrections", authMW(requireManager(http.HandlerFunc(ledgerHandler.Correct))))
	}

	return mux
}
