package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mzalewska/marketplace-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса торговой площадки.
// Регистрация, вход, восстановление пароля и чтение сессии доступны без
// авторизации; всё остальное требует подписанного cookie.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/recover", h.RecoverPassword)
			r.Get("/session", h.Session)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/logout", h.Logout)
				r.Put("/profile", h.UpdateProfile)
				r.Post("/password", h.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/offers", func(r chi.Router) {
				r.Get("/", h.ListOffers)
				r.Post("/", h.CreateOffer)
				r.Get("/search", h.SearchOffers)
				r.Get("/{id}", h.GetOffer)
				r.Put("/{id}", h.UpdateOffer)
				r.Delete("/{id}", h.DeleteOffer)
			})

			r.Route("/bucket", func(r chi.Router) {
				r.Get("/", h.GetBucket)
				r.Post("/", h.AddToBucket)
				r.Delete("/{id}", h.RemoveFromBucket)
				r.Post("/{id}/checkout", h.Checkout)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
