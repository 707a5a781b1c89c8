package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/example/laconfe/internal/services"
	"github.com/example/laconfe/internal/utils"
)

// PaymentHandler serves checkout registration, bank callbacks and payment lookups.
type PaymentHandler struct {
	registration *services.RegistrationService
	callbacks    *services.CallbackService
	payments     *services.PaymentStore
	installments *services.InstallmentService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(
	registration *services.RegistrationService,
	callbacks *services.CallbackService,
	payments *services.PaymentStore,
	installments *services.InstallmentService,
) *PaymentHandler {
	return &PaymentHandler{
		registration: registration,
		callbacks:    callbacks,
		payments:     payments,
		installments: installments,
	}
}

// Register forwards a checkout to the bank gateway and records the pending payment.
func (h *PaymentHandler) Register(c *fiber.Ctx) error {
	body := map[string]any{}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	result, err := h.registration.Register(c.UserContext(), body)
	if err != nil {
		log.Error().Err(err).Msg("[Payment] gateway registration failed")
		return fiber.NewError(fiber.StatusInternalServerError, "Payment request failed")
	}

	return c.JSON(result)
}

// Callback receives the bank's asynchronous order notification.
// Fields may arrive in a form body, a JSON body or the query string.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	fields, err := callbackFields(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid callback body")
	}

	req := services.CallbackRequest{
		MdOrder:     fields["mdOrder"],
		OrderNumber: fields["orderNumber"],
		Operation:   fields["operation"],
		Status:      fields["status"],
		Raw:         fields,
	}

	if _, err := h.callbacks.HandleCallback(c.UserContext(), req); err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotFound):
			return c.Status(fiber.StatusNotFound).SendString("not found")
		case errors.Is(err, services.ErrPersistence):
			return c.Status(fiber.StatusServiceUnavailable).SendString("temporarily unavailable")
		default:
			return c.Status(fiber.StatusInternalServerError).SendString("error")
		}
	}

	return c.SendString("OK")
}

// GetPayment returns one payment by gateway order id.
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	mdOrder := strings.TrimSpace(c.Query("mdOrder"))
	if mdOrder == "" {
		return fiber.NewError(fiber.StatusBadRequest, "mdOrder is required")
	}

	payment, err := h.payments.FindByMdOrder(c.UserContext(), mdOrder)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(payment)
}

// ListUserPayments returns a page of payments made with an email address.
func (h *PaymentHandler) ListUserPayments(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	pg := utils.ParsePagination(c)
	payments, total, err := h.payments.ListByEmail(c.UserContext(), email, pg)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    payments,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// NextDue returns the user's installment schedule.
func (h *PaymentHandler) NextDue(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	schedule, err := h.installments.NextDue(c.UserContext(), userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(schedule)
}

func callbackFields(c *fiber.Ctx) (map[string]string, error) {
	fields := map[string]string{}

	ctype, _, _ := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	switch ctype {
	case fiber.MIMEApplicationForm:
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			fields[string(k)] = string(v)
		})
	case fiber.MIMEMultipartForm:
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		for k, v := range form.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
	case fiber.MIMEApplicationJSON:
		if len(c.Body()) > 0 {
			var body map[string]any
			if err := json.Unmarshal(c.Body(), &body); err != nil {
				return nil, err
			}
			for k, v := range body {
				fields[k] = services.Stringify(v)
			}
		}
	}

	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		if _, ok := fields[string(k)]; !ok {
			fields[string(k)] = string(v)
		}
	})

	return fields, nil
}
