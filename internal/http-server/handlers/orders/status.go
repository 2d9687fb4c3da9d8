package orders

import (
	"FrappeBot/entity"
	"FrappeBot/internal/lib/api/cont"
	"FrappeBot/internal/lib/api/response"
	"FrappeBot/internal/lib/sl"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func UpdateStatus(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.orders")
		id := chi.URLParam(r, "id")

		logger := log.With(mod, slog.String("order_id", id))
		if user, err := cont.GetUser(r.Context()); err == nil {
			logger = logger.With(slog.String("user", user.Username))
		}

		var update entity.OrderStatusUpdate
		if err := render.Bind(r, &update); err != nil {
			logger.With(sl.Err(err)).Debug("bad status update")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		order, err := handler.UpdateOrderStatus(id, update.Status)
		if errors.Is(err, entity.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Order not found"))
			return
		}
		if err != nil {
			logger.With(sl.Err(err)).Error("update order status")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to update order"))
			return
		}

		render.JSON(w, r, response.Ok(order))
	}
}
