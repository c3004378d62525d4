package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/resilience"
)

func newClient(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL+"/", resilience.HTTPClient{Client: srv.Client()})
}

func TestDoSetsHeadersAndRelaysNon2xx(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"duplicate serial"}`))
	})

	resp, err := client.Do(context.Background(), http.MethodPost, "/billing/createInvoice", "tok-1", map[string]any{"a": 1})
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.Status)
	require.False(t, resp.OK())
	require.Equal(t, "duplicate serial", resp.Message())

	require.Equal(t, "/billing/createInvoice", got.URL.Path)
	require.Equal(t, "application/json", got.Header.Get("Content-Type"))
	require.Equal(t, "Bearer tok-1", got.Header.Get("Authorization"))
	require.JSONEq(t, `{"a":1}`, string(gotBody))
}

func TestDoOmitsAuthorizationWithoutToken(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	resp, err := client.Do(context.Background(), http.MethodGet, "health", "", nil)
	require.NoError(t, err)
	require.True(t, resp.OK())
}

func TestDoRejectsMalformedBody(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})
	_, err := client.Do(context.Background(), http.MethodGet, "/x", "", nil)
	require.ErrorIs(t, err, backend.ErrMalformed)
	require.True(t, backend.IsUnavailable(err))
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := backend.NewClient(srv.URL, resilience.HTTPClient{Client: &http.Client{Timeout: time.Second}})

	_, err := client.Do(context.Background(), http.MethodGet, "/x", "", nil)
	require.ErrorIs(t, err, backend.ErrTransport)

	appErr := backend.AppError(err)
	require.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	require.Equal(t, "UPSTREAM_UNAVAILABLE", appErr.Code)
}

func TestMessageVariants(t *testing.T) {
	cases := map[string]string{
		`{"message":"a"}`:           "a",
		`{"error":"b"}`:             "b",
		`{"error":{"message":"c"}}`: "c",
		`{"msg":"d"}`:               "d",
		`[1,2]`:                     "",
		``:                          "",
	}
	for body, want := range cases {
		require.Equal(t, want, backend.Response{Status: 400, Body: json.RawMessage(body)}.Message(), body)
	}
}

func TestSearchItemsDecodesEnvelopeAndMixedIDs(t *testing.T) {
	var payload map[string]map[string]string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, backend.SearchItemsPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"data":[
			{"id":42,"itemName":"Tea","skuCode":"T-1","basePrice":10,"taxAmount":"1.5","discountAmount":null,"finalPrice":11.5},
			{"id":"abc","itemName":"Milk","finalPrice":3}
		]}`))
	})

	items, err := client.SearchItems(context.Background(), "tok", backend.ItemQuery{StoreID: "s1", ItemName: "t"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"storeId": "s1", "itemName": "t"}, payload["data"])
	require.Len(t, items, 2)
	require.Equal(t, backend.ID("42"), items[0].ID)
	require.Equal(t, "1.5", items[0].TaxAmount.String())
	require.True(t, items[0].DiscountAmount.IsZero())
	require.Equal(t, backend.ID("abc"), items[1].ID)
	require.True(t, items[1].BasePrice.IsZero())
}

func TestSearchItemsBareArrayAndValidation(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"itemName":"no id"}]`))
	})
	_, err := client.SearchItems(context.Background(), "tok", backend.ItemQuery{StoreID: "s1", Barcode: "123"})
	require.ErrorIs(t, err, backend.ErrMalformed)

	_, err = client.SearchItems(context.Background(), "tok", backend.ItemQuery{Barcode: "123"})
	require.Error(t, err)
}

func TestSearchItemsUnauthorized(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
	})
	_, err := client.SearchItems(context.Background(), "tok", backend.ItemQuery{StoreID: "s1", SKUCode: "X"})
	require.ErrorIs(t, err, backend.ErrUnauthorized)

	var be *backend.Error
	require.True(t, errors.As(err, &be))
	require.Equal(t, http.StatusUnauthorized, be.Status)
	require.Equal(t, "jwt expired", be.Message)
}

func TestCreateInvoiceRejectionKeepsStatusAndMessage(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"message":"coupon expired"}}`))
	})
	_, err := client.CreateInvoice(context.Background(), "tok", backend.InvoiceRequest{StoreID: "s1"})
	require.ErrorIs(t, err, backend.ErrRejected)

	appErr := backend.AppError(err)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	require.Equal(t, "UPSTREAM_REJECTED", appErr.Code)
	require.Equal(t, "coupon expired", appErr.Message)
}

func TestGetInvoice(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/billing/getInvoiceById/77", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"invoice":{"id":77,"serialNo":"INV-77","grandTotal":"31.50"},
			"invoiceItems":[{"id":1,"itemId":42,"quantity":3,"finalPrice":31.5}]}}`))
	})
	rec, err := client.GetInvoice(context.Background(), "tok", "77")
	require.NoError(t, err)
	require.Equal(t, backend.ID("77"), rec.Invoice.ID)
	require.Equal(t, "INV-77", rec.Invoice.SerialNo)
	require.Len(t, rec.Items, 1)
	require.Equal(t, 3, rec.Items[0].Quantity)
	require.Equal(t, "31.5", rec.Items[0].FinalPrice.String())
}
