package orders

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/uporders-backend/api/middleware"
	"github.com/angelmondragon/uporders-backend/api/responses"
	"github.com/angelmondragon/uporders-backend/api/validators"
	"github.com/angelmondragon/uporders-backend/internal/fulfillment"
	internalorders "github.com/angelmondragon/uporders-backend/internal/orders"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
	"github.com/angelmondragon/uporders-backend/pkg/tracing"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxKeyLength      = 128
)

type submitItem struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gte=0,lte=9999999999.99"`
	Quantity int             `json:"quantity" validate:"gte=0"`
}

type submitOrderRequest struct {
	StoreID uuid.UUID    `json:"store_id" validate:"required"`
	Nonce   string       `json:"nonce" validate:"max=128"`
	Items   []submitItem `json:"items" validate:"required,min=1,dive"`
}

// SubmitResponse acknowledges an accepted order request.
type SubmitResponse struct {
	IdempotencyKey string                  `json:"idempotency_key"`
	Status         enums.FulfillmentStatus `json:"status"`
}

// Submit queues an order request for the fulfillment workers and returns the
// key to poll. Replaying a key is safe: the worker resolves duplicates.
func Submit(publisher queue.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if publisher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order queue unavailable"))
			return
		}

		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer required"))
			return
		}

		var body submitOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key, err := validators.HeaderValue(r, idempotencyHeader, maxKeyLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := fulfillment.OrderRequest{
			IdempotencyKey: key,
			Nonce:          strings.TrimSpace(body.Nonce),
			CustomerID:     customerID,
			StoreID:        body.StoreID,
			Items:          make([]fulfillment.OrderItem, 0, len(body.Items)),
		}
		for _, item := range body.Items {
			req.Items = append(req.Items, fulfillment.OrderItem{ItemID: item.ItemID, Price: item.Price, Quantity: item.Quantity})
		}
		if _, err := req.Normalize(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.IdempotencyKey = req.Key()

		data, err := json.Marshal(req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order request"))
			return
		}
		msg := queue.Message{
			ID:   req.IdempotencyKey,
			Data: data,
			Attributes: map[string]string{
				"idempotency_key": req.IdempotencyKey,
				"customer_id":     customerID.String(),
				"store_id":        req.StoreID.String(),
			},
		}
		tracing.Inject(r.Context(), msg.Attributes)

		if err := publisher.Publish(r.Context(), msg); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue order request"))
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"idempotency_key": req.IdempotencyKey,
				"store_id":        req.StoreID.String(),
				"items":           len(req.Items),
			})
			logg.Info(ctx, "order request queued")
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, SubmitResponse{
			IdempotencyKey: req.IdempotencyKey,
			Status:         enums.FulfillmentStatusPending,
		})
	}
}

// RequestStatus reports the outcome of a queued request, pending until the
// worker records one.
func RequestStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer required"))
			return
		}

		view, err := svc.GetOutcome(r.Context(), customerID, chi.URLParam(r, "key"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Detail returns a fulfilled order with its lines to the customer who placed it.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer required"))
			return
		}

		rawOrderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if rawOrderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		orderID, err := uuid.Parse(rawOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		detail, err := svc.GetOrder(r.Context(), customerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// List pages the customer's orders newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer required"))
			return
		}

		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrders(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
