// Package handler wires the HTTP surface of the checkout API: routing,
// request decoding, error mapping and auth middleware.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/infra/observability"
	"github.com/opadata/checkout-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract of the storefront checkout.
func NewRouter(
	checkoutSvc *service.CheckoutService,
	catalogSvc *service.CatalogService,
	authSvc *service.AuthService,
	metrics *observability.Metrics,
	logger *zap.Logger,
	allowedOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. 📦 Catálogo de planos
		// =============================================
		r.Get("/plans", listPlansHandler(catalogSvc, logger))
		r.Get("/plans/{planId}", getPlanHandler(catalogSvc, logger))

		// =============================================
		// 2. 🛒 Checkout wizard
		// =============================================
		r.Route("/checkout/sessions", func(r chi.Router) {
			// Starting a session works anonymous or logged in.
			r.With(OptionalJWTMiddleware(authSvc, logger)).
				Post("/", startSessionHandler(checkoutSvc, logger))

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", getSessionHandler(checkoutSvc, logger))
				r.Post("/advance", advanceHandler(checkoutSvc, logger))
				r.Post("/back", backHandler(checkoutSvc, logger))
				r.Patch("/draft", updateDraftHandler(checkoutSvc, logger))
				r.Patch("/registrant", updateRegistrantHandler(checkoutSvc, logger))
				r.Post("/address", resolveAddressHandler(checkoutSvc, logger))
				r.Post("/account", createAccountHandler(checkoutSvc, authSvc, logger))
				r.Post("/submit", submitHandler(checkoutSvc, logger))

				r.With(JWTAuthMiddleware(authSvc, logger)).
					Post("/attach", attachHandler(checkoutSvc, logger))
			})
		})

		// =============================================
		// 3. 📄 Pedidos (protected)
		// =============================================
		r.With(JWTAuthMiddleware(authSvc, logger)).
			Get("/orders/{orderId}", getOrderHandler(checkoutSvc, logger))

		// =============================================
		// 4. 📊 Métricas de funil
		// =============================================
		r.Get("/metrics/funnel", funnelMetricsHandler(metrics))

		// =============================================
		// 5. 🔐 Autenticação
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authSignUpHandler(authSvc, logger))
			r.Post("/login", authLoginHandler(authSvc, logger))
			r.Post("/refresh", authRefreshHandler(authSvc, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(authSvc, logger))
				r.Post("/logout", authLogoutHandler(authSvc, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// 1. Catálogo — GET /v1/plans
// ============================================================

func listPlansHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/plans")
		defer span.End()

		plans, err := svc.ListPlans(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if plans == nil {
			plans = []domain.Plan{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
	}
}

func getPlanHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/plans/{planId}")
		defer span.End()

		plan, err := svc.GetPlan(ctx, chi.URLParam(r, "planId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

// ============================================================
// 2. Checkout wizard
// ============================================================

// startSessionHandler accepts the plan parameters either as query
// parameters (the pricing page links straight here) or as a JSON body.
func startSessionHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions")
		defer span.End()

		params := domain.PlanParams{
			PlanID:   r.URL.Query().Get("plan"),
			Name:     r.URL.Query().Get("name"),
			Type:     r.URL.Query().Get("type"),
			Price:    r.URL.Query().Get("price"),
			Specs:    r.URL.Query().Get("specs"),
			Location: r.URL.Query().Get("location"),
		}
		if params.PlanID == "" && r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		span.SetAttributes(attribute.String("plan.id", params.PlanID))

		view, err := svc.StartSession(ctx, &params, CustomerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func getSessionHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/checkout/sessions/{sessionId}")
		defer span.End()

		view, err := svc.GetSession(ctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func advanceHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/advance")
		defer span.End()

		view, err := svc.Advance(ctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func backHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/back")
		defer span.End()

		view, err := svc.Back(ctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func updateDraftHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/checkout/sessions/{sessionId}/draft")
		defer span.End()

		var upd domain.DraftUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		view, err := svc.UpdateDraft(ctx, chi.URLParam(r, "sessionId"), &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func updateRegistrantHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/checkout/sessions/{sessionId}/registrant")
		defer span.End()

		var upd domain.RegistrantUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		view, err := svc.UpdateRegistrant(ctx, chi.URLParam(r, "sessionId"), &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func resolveAddressHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/address")
		defer span.End()

		var body struct {
			CEP string `json:"cep"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		view, err := svc.ResolveAddress(ctx, chi.URLParam(r, "sessionId"), body.CEP)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// createAccountHandler registers the account and, on success, also logs
// the new customer in so the frontend holds tokens for the Payment step.
func createAccountHandler(svc *service.CheckoutService, authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/account")
		defer span.End()

		var req domain.AccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		view, err := svc.CreateAccount(ctx, chi.URLParam(r, "sessionId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		login, err := authSvc.Login(ctx, &domain.LoginRequest{Email: req.Email, Password: req.Password})
		if err != nil {
			// The account exists; the frontend can log in separately.
			logger.Warn("post-signup login failed", zap.Error(err))
			writeJSON(w, http.StatusCreated, map[string]any{"session": view})
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"session": view,
			"auth":    login,
		})
	}
}

func attachHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/attach")
		defer span.End()

		view, err := svc.Attach(ctx, chi.URLParam(r, "sessionId"), CustomerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func submitHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/submit")
		defer span.End()

		result, err := svc.Submit(ctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// ============================================================
// 3. Pedidos — GET /v1/orders/{orderId}
// ============================================================

func getOrderHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orders/{orderId}")
		defer span.End()

		order, err := svc.GetOrder(ctx, CustomerIDFromContext(ctx), chi.URLParam(r, "orderId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// ============================================================
// 4. Métricas — GET /v1/metrics/funnel
// ============================================================

func funnelMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetFunnelSnapshot())
	}
}

// ============================================================
// 5. Autenticação
// ============================================================

func authSignUpHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signup")
		defer span.End()

		var req domain.SignUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.SignUp(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func authLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func authRefreshHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/refresh")
		defer span.End()

		var req domain.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.Refresh(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func authLogoutHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		if err := authSvc.Logout(ctx, CustomerIDFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
