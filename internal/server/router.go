package server

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/auth"
	"github.com/arsuvenir/backend/internal/handlers"
	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/notify"
	"github.com/arsuvenir/backend/internal/policy"
	"github.com/arsuvenir/backend/internal/services"
	"github.com/arsuvenir/backend/internal/storage"
)

// Deps carries everything the router needs to assemble the handlers.
type Deps struct {
	DB       *gorm.DB
	Log      *logrus.Logger
	Storage  storage.Storage
	Notifier notify.Notifier
	// UploadDir, when set, is served under /uploads/ (local storage only).
	UploadDir string
}

// New constructs the root http.Handler with all routes and middlewares
// applied.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	gate := policy.NewDefault()

	realizationSvc := services.NewRealizationService(d.DB, d.Log)
	orderSvc := services.NewOrderService(d.DB, d.Log, realizationSvc)

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := d.DB.Exec("SELECT 1").Error; err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, "degraded", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth endpoints
	ah := handlers.NewAuthHandler(d.DB)
	mux.HandleFunc("/login", methodOnly(http.MethodPost, ah.Login))
	mux.HandleFunc("/logout", methodOnly(http.MethodPost, ah.Logout))
	mux.Handle("/me", auth.RequirePartner(http.HandlerFunc(ah.Me)))

	// Catalog is public; product mutations check the gate inside the handler.
	ph := handlers.NewProductHandler(d.DB, gate, d.Storage, d.Log)
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ph.List(w, r)
		case http.MethodPost:
			auth.RequirePartner(http.HandlerFunc(ph.Create)).ServeHTTP(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.Handle("/products/update", auth.RequirePartner(methodOnly(http.MethodPost, ph.Update)))
	mux.Handle("/products/delete", auth.RequirePartner(methodOnly(http.MethodPost, ph.Delete)))
	mux.Handle("/products/image", auth.RequirePartner(methodOnly(http.MethodPost, ph.UploadImage)))

	// Partner admin CRUD
	pah := handlers.NewPartnerHandler(d.DB, gate)
	mux.Handle("/partners", auth.RequirePartner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			pah.List(w, r)
		case http.MethodPost:
			pah.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})))
	mux.Handle("/partners/update", auth.RequirePartner(methodOnly(http.MethodPost, pah.Update)))

	// Orders
	oh := handlers.NewOrderHandler(d.DB, orderSvc, gate, d.Notifier)
	mux.Handle("/orders", auth.RequirePartner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			oh.List(w, r)
		case http.MethodPost:
			oh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})))
	mux.Handle("/orders/status", auth.RequirePartner(methodOnly(http.MethodPost, oh.SetStatus)))

	// Realizations & payments
	rh := handlers.NewRealizationHandler(d.DB, realizationSvc, gate)
	mux.Handle("/realizations", auth.RequirePartner(methodOnly(http.MethodGet, rh.List)))
	mux.Handle("/realizations/get", auth.RequirePartner(methodOnly(http.MethodGet, rh.Get)))
	mux.Handle("/realizations/payments", auth.RequirePartner(methodOnly(http.MethodPost, rh.AddPayment)))
	mux.Handle("/realizations/payments/update", auth.RequirePartner(methodOnly(http.MethodPost, rh.UpdatePayment)))
	mux.Handle("/realizations/payments/delete", auth.RequirePartner(methodOnly(http.MethodPost, rh.DeletePayment)))

	// Back office
	dh := handlers.NewDashboardHandler(d.DB, gate)
	mux.Handle("/admin/dashboard", auth.RequirePartner(methodOnly(http.MethodGet, dh.Overview)))
	eh := handlers.NewExportHandler(d.DB, gate, d.Log)
	mux.Handle("/admin/orders/export", auth.RequirePartner(methodOnly(http.MethodGet, eh.Orders)))

	// Uploaded product images and AR markers
	if d.UploadDir != "" {
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))))
	}

	return auth.Middleware(withRecover(withLogging(d.Log, mux)))
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		h(w, r)
	}
}

func withLogging(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
