package orders

import (
	"FrappeBot/entity"
	"FrappeBot/internal/lib/api/response"
	"FrappeBot/internal/lib/sl"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
)

const defaultLimit = 20

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.orders")

		query, err := parseQuery(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if err = query.Validate(); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		orders, err := handler.ListOrders(query)
		if err != nil {
			log.With(mod, sl.Err(err)).Error("list orders")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list orders"))
			return
		}

		render.JSON(w, r, response.Ok(orders))
	}
}

func parseQuery(r *http.Request) (entity.OrderQuery, error) {
	q := r.URL.Query()
	query := entity.OrderQuery{
		Phone:         q.Get("phone"),
		Status:        q.Get("status"),
		PaymentMethod: q.Get("payment_method"),
		Limit:         defaultLimit,
	}
	var err error
	if l := q.Get("limit"); l != "" {
		if query.Limit, err = strconv.Atoi(l); err != nil {
			return query, err
		}
	}
	if o := q.Get("offset"); o != "" {
		if query.Offset, err = strconv.Atoi(o); err != nil {
			return query, err
		}
	}
	return query, nil
}
