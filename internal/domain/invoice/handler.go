package invoice

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/pricing"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/adjustments", h.ListAdjustments)
	api.POST("/adjustments/quote", h.Quote)

	drafts := api.Group("/invoices/drafts")
	drafts.POST("", h.CreateDraft)
	drafts.GET("/:id", h.GetDraft)
	drafts.DELETE("/:id", h.DiscardDraft)
	drafts.GET("/:id/print", h.PrintView)
	drafts.POST("/:id/submit", h.Submit)

	drafts.POST("/:id/sections", h.AddSection)
	drafts.DELETE("/:id/sections/:section", h.RemoveSection)
	drafts.POST("/:id/rows/:row/visibility", h.ToggleRowByID)

	drafts.POST("/:id/items", h.InsertItem)
	drafts.PATCH("/:id/items/:index", h.UpdateItem)
	drafts.DELETE("/:id/items/:index", h.DeleteItem)
	drafts.POST("/:id/items/:index/move", h.MoveItem)
	drafts.POST("/:id/items/:index/visibility", h.ToggleVisibility)

	drafts.POST("/:id/items/:index/sub-items", h.InsertSubItem)
	drafts.PATCH("/:id/items/:index/sub-items/:sub", h.UpdateItem)
	drafts.DELETE("/:id/items/:index/sub-items/:sub", h.DeleteItem)
	drafts.POST("/:id/items/:index/sub-items/:sub/move", h.MoveItem)
	drafts.POST("/:id/items/:index/sub-items/:sub/visibility", h.ToggleVisibility)
	drafts.PUT("/:id/items/:index/sub-items/:sub/adjustments/:slot", h.SetAdjustment)
	drafts.DELETE("/:id/items/:index/sub-items/:sub/adjustments/:slot", h.ClearAdjustment)

	api.GET("/bills", h.ListBills)
	api.GET("/bills/:id", h.GetBill)
}

// httpError maps domain errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrDraftNotFound), errors.Is(err, ErrBillNotFound),
		errors.Is(err, ErrRowNotFound), errors.Is(err, ErrVisitNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateBillNumber):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, ErrInvalidSlot), errors.Is(err, ErrInvalidKind),
		errors.Is(err, pricing.ErrInvalidAmount), errors.Is(err, pricing.ErrUnknownAdjustmentCode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func draftID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// rowRef reads :index and, when the route has one, :sub.
func rowRef(c echo.Context) (Ref, error) {
	main, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return Ref{}, echo.NewHTTPError(http.StatusBadRequest, "invalid item index")
	}
	raw := c.Param("sub")
	if raw == "" {
		return MainRef(main), nil
	}
	sub, err := strconv.Atoi(raw)
	if err != nil || sub < 0 {
		return Ref{}, echo.NewHTTPError(http.StatusBadRequest, "invalid sub-item index")
	}
	return SubRef(main, sub), nil
}

// -- Adjustments --

func (h *Handler) ListAdjustments(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Catalog())
}

func (h *Handler) Quote(c echo.Context) error {
	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	chain, err := h.svc.Quote(&req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chain)
}

// -- Drafts --

func (h *Handler) CreateDraft(c echo.Context) error {
	var req CreateDraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.CreateDraft(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetDraft(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetDraft(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) DiscardDraft(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DiscardDraft(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PrintView(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	pv, err := h.svc.PrintView(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pv)
}

func (h *Handler) AddSection(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	var req AddSectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.AddSection(c.Request().Context(), id, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) RemoveSection(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	sectionID, err := uuid.Parse(c.Param("section"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid section id")
	}
	inv, err := h.svc.Edit(c.Request().Context(), id, func(e *Editor) error {
		return e.RemoveSection(sectionID)
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

// -- Rows --

func (h *Handler) InsertItem(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	var req InsertItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.InsertItem(c.Request().Context(), id, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) InsertSubItem(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	ref, err := rowRef(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.Edit(c.Request().Context(), id, func(e *Editor) error {
		_, err := e.InsertSubItem(ref.Main)
		return err
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	ref, err := rowRef(c)
	if err != nil {
		return err
	}
	var req UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.UpdateItem(c.Request().Context(), id, ref, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	ref, err := rowRef(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.Edit(c.Request().Context(), id, func(e *Editor) error {
		if ref.Sub < 0 {
			return e.DeleteMainItem(ref.Main)
		}
		return e.DeleteSubItem(ref.Main, ref.Sub)
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) MoveItem(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	ref, err := rowRef(c)
	if err != nil {
		return err
	}
	var req MoveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.Move(c.Request().Context(), id, ref, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

type visibilityResponse struct {
	Hidden  bool     `json:"hidden"`
	Invoice *Invoice `json:"invoice"`
}

func (h *Handler) ToggleVisibility(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	ref, err := rowRef(c)
	if err != nil {
		return err
	}
	var hidden bool
	inv, err := h.svc.Edit(c.Request().Context(), id, func(e *Editor) error {
		var err error
		hidden, err = e.ToggleRowVisibility(ref)
		return err
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, visibilityResponse{Hidden: hidden, Invoice: inv})
}

func (h *Handler) ToggleRowByID(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	rowID, err := uuid.Parse(c.Param("row"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid row id")
	}
	var hidden bool
	inv, err := h.svc.Edit(c.Request().Context(), id, func(e *Editor) error {
		var err error
		hidden, err = e.ToggleVisibility(rowID)
		return err
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, visibilityResponse{Hidden: hidden, Invoice: inv})
}

// -- Adjustments on sub-items --

func (h *Handler) SetAdjustment(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	ref, err := rowRef(c)
	if err != nil {
		return err
	}
	var req SetAdjustmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := Validate(&req); err != nil {
		return httpError(err)
	}
	slot := Slot(c.Param("slot"))
	inv, err := h.svc.Edit(c.Request().Context(), id, func(e *Editor) error {
		return e.SetAdjustment(ref.Main, ref.Sub, slot, req.Code)
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ClearAdjustment(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	ref, err := rowRef(c)
	if err != nil {
		return err
	}
	slot := Slot(c.Param("slot"))
	inv, err := h.svc.Edit(c.Request().Context(), id, func(e *Editor) error {
		return e.ClearAdjustment(ref.Main, ref.Sub, slot)
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

// -- Bills --

func (h *Handler) Submit(c echo.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bill, err := h.svc.Submit(c.Request().Context(), id, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, bill)
}

func (h *Handler) GetBill(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	bill, err := h.svc.GetBill(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) ListBills(c echo.Context) error {
	pg := pagination.FromContext(c)
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		items, total, err := h.svc.ListBillsByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	params := map[string]string{}
	for _, k := range []string{"visit_id", "status", "invoice_id"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	if v, ok := params["invoice_id"]; ok {
		if _, err := uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice_id")
		}
	}
	items, total, err := h.svc.SearchBills(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
