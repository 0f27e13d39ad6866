package codec

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type quote struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	c, rec := newContext(`{"code":"ward10","amount":"1130.80"}`)
	var q quote
	if err := c.Bind(&q); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if q.Code != "ward10" || !q.Amount.Equal(decimal.RequireFromString("1130.8")) {
		t.Errorf("unexpected decode %+v", q)
	}
	if err := c.JSON(http.StatusOK, q); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"code":"ward10","amount":"1130.8"}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestJSONSerializer_BadInput(t *testing.T) {
	tests := map[string]string{
		"syntax":     `{"code":`,
		"wrong type": `{"code":42}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := newContext(body)
			var q quote
			err := c.Bind(&q)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}
