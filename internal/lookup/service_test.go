package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/cart"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

type fakeCatalog struct {
	mu      sync.Mutex
	queries []backend.ItemQuery
	results map[string][]backend.CatalogItem
	err     error
	// hooks run before answering a query for the given key
	hooks map[string]func()
}

func (f *fakeCatalog) SearchItems(_ context.Context, token string, q backend.ItemQuery) ([]backend.CatalogItem, error) {
	key := q.ItemName + q.Barcode + q.SKUCode
	f.mu.Lock()
	f.queries = append(f.queries, q)
	hook := f.hooks[key]
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[key], nil
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func item(id, final string) backend.CatalogItem {
	return backend.CatalogItem{
		ID:         backend.ID(id),
		ItemName:   "item " + id,
		SKUCode:    "SKU-" + id,
		FinalPrice: decimal.RequireFromString(final),
		BasePrice:  decimal.RequireFromString(final),
	}
}

var sess = session.Session{Token: "tok", StoreID: "s1"}

func newService(t *testing.T, catalog *fakeCatalog) (*Service, cart.Draft) {
	t.Helper()
	drafts := cart.NewService(cart.NewMemoryStore(time.Hour))
	d, err := drafts.Open(context.Background(), sess.StoreID)
	require.NoError(t, err)
	return &Service{Catalog: catalog, Drafts: drafts, Debounce: NewDebouncer(time.Minute)}, d
}

func TestCodeSearchSingleMatchAddsAndClearsInputs(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]backend.CatalogItem{"8991": {item("42", "10.5")}}}
	svc, d := newService(t, catalog)
	ctx := context.Background()

	_, err := svc.SearchByName(ctx, sess, d.ID, "zz")
	require.NoError(t, err)

	res, err := svc.SearchByCode(ctx, sess, d.ID, ModeBarcode, "8991")
	require.NoError(t, err)
	require.Equal(t, OutcomeAdded, res.Outcome)
	require.Len(t, res.Draft.Lines, 1)
	require.Equal(t, "42", res.Draft.Lines[0].ItemID)
	require.Equal(t, cart.Inputs{}, res.Draft.Inputs)
	require.Equal(t, backend.ItemQuery{StoreID: "s1", Barcode: "8991"}, catalog.queries[1])

	res, err = svc.SearchByCode(ctx, sess, d.ID, ModeBarcode, "8991")
	require.NoError(t, err)
	require.Len(t, res.Draft.Lines, 1)
	require.Equal(t, 2, res.Draft.Lines[0].Quantity)
}

func TestCodeSearchZeroOrManyMatchesChangesNothing(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]backend.CatalogItem{
		"DUP": {item("1", "1"), item("2", "2")},
	}}
	svc, d := newService(t, catalog)
	ctx := context.Background()

	res, err := svc.SearchByCode(ctx, sess, d.ID, ModeSKU, "DUP")
	require.NoError(t, err)
	require.Equal(t, OutcomeAmbiguous, res.Outcome)
	require.Equal(t, 2, res.Matches)
	require.Empty(t, res.Draft.Lines)
	require.Equal(t, "DUP", res.Draft.Inputs.SKU)

	res, err = svc.SearchByCode(ctx, sess, d.ID, ModeBarcode, "none")
	require.NoError(t, err)
	require.Equal(t, OutcomeNoMatch, res.Outcome)
	require.Empty(t, res.Draft.Lines)
	require.Equal(t, "none", res.Draft.Inputs.Barcode)
	require.Equal(t, "DUP", res.Draft.Inputs.SKU)
}

func TestCodeSearchRejectsUnknownField(t *testing.T) {
	svc, d := newService(t, &fakeCatalog{})
	_, err := svc.SearchByCode(context.Background(), sess, d.ID, "name", "x")
	require.Error(t, err)
}

func TestNameSearchCandidatesAndSelect(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]backend.CatalogItem{"te": {item("1", "2.5"), item("2", "3")}}}
	svc, d := newService(t, catalog)
	ctx := context.Background()

	res, err := svc.SearchByName(ctx, sess, d.ID, "te")
	require.NoError(t, err)
	require.Equal(t, OutcomeCandidates, res.Outcome)
	require.Len(t, res.Draft.Candidates, 2)
	require.Equal(t, "te", res.Draft.Inputs.Name)

	_, err = svc.Select(ctx, sess, d.ID, "missing", 1)
	require.ErrorIs(t, err, ErrNoCandidate)

	got, err := svc.Select(ctx, sess, d.ID, "2", 3)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	require.Equal(t, 3, got.Lines[0].Quantity)
	require.Equal(t, "9", got.GrandTotal().String())
	require.Empty(t, got.Inputs.Name)
	require.Empty(t, got.Candidates)
}

func TestEmptyNameClearsWithoutBackendCall(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]backend.CatalogItem{"te": {item("1", "1")}}}
	svc, d := newService(t, catalog)
	ctx := context.Background()

	_, err := svc.SearchByName(ctx, sess, d.ID, "te")
	require.NoError(t, err)
	res, err := svc.SearchByName(ctx, sess, d.ID, "  ")
	require.NoError(t, err)
	require.Equal(t, OutcomeCleared, res.Outcome)
	require.Empty(t, res.Draft.Candidates)
	require.Equal(t, 1, catalog.calls())
}

func TestStaleNameResponseIsDropped(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	catalog := &fakeCatalog{
		results: map[string][]backend.CatalogItem{
			"te":  {item("old", "1")},
			"tea": {item("new", "2")},
		},
		hooks: map[string]func(){"te": func() {
			close(arrived)
			<-release
		}},
	}
	svc, d := newService(t, catalog)
	ctx := context.Background()

	done := make(chan Result, 1)
	go func() {
		res, err := svc.SearchByName(ctx, sess, d.ID, "te")
		require.NoError(t, err)
		done <- res
	}()
	<-arrived

	res, err := svc.SearchByName(ctx, sess, d.ID, "tea")
	require.NoError(t, err)
	require.Equal(t, OutcomeCandidates, res.Outcome)
	close(release)

	stale := <-done
	require.Equal(t, OutcomeStale, stale.Outcome)
	require.Len(t, stale.Draft.Candidates, 1)
	require.Equal(t, "new", stale.Draft.Candidates[0].ID)
	require.Equal(t, "tea", stale.Draft.Inputs.Name)
}

func TestDebounceSupersedesRapidInput(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]backend.CatalogItem{"tea": {item("1", "1")}}}
	svc, d := newService(t, catalog)
	svc.Windows = Windows{Name: 40 * time.Millisecond}
	ctx := context.Background()

	first := make(chan Result, 1)
	go func() {
		res, err := svc.SearchByName(ctx, sess, d.ID, "te")
		require.NoError(t, err)
		first <- res
	}()
	time.Sleep(10 * time.Millisecond)
	res, err := svc.SearchByName(ctx, sess, d.ID, "tea")
	require.NoError(t, err)

	require.Equal(t, OutcomeSuperseded, (<-first).Outcome)
	require.Equal(t, OutcomeCandidates, res.Outcome)
	require.Equal(t, 1, catalog.calls())
}

func TestLookupFailureLeavesLines(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]backend.CatalogItem{"A": {item("a", "1")}}}
	svc, d := newService(t, catalog)
	ctx := context.Background()
	_, err := svc.SearchByCode(ctx, sess, d.ID, ModeSKU, "A")
	require.NoError(t, err)

	catalog.err = &backend.Error{Kind: backend.ErrTransport}
	_, err = svc.SearchByCode(ctx, sess, d.ID, ModeSKU, "B")
	require.ErrorIs(t, err, backend.ErrTransport)

	got, err := svc.Drafts.Get(ctx, sess.StoreID, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
}

func TestHandlerMapsUnauthorizedToSessionExpired(t *testing.T) {
	catalog := &fakeCatalog{err: &backend.Error{Kind: backend.ErrUnauthorized, Status: http.StatusUnauthorized}}
	svc, d := newService(t, catalog)
	h := &Handler{Svc: svc, SignInPath: "/signin"}
	r := chi.NewRouter()
	r.Post("/drafts/{draftID}/search/code", h.SearchByCode)

	req := httptest.NewRequest(http.MethodPost, "/drafts/"+d.ID+"/search/code", strings.NewReader(`{"field":"barcode","value":"1"}`))
	req = req.WithContext(session.With(req.Context(), sess))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "SESSION_EXPIRED", body.Error.Code)
	require.Equal(t, "/signin", body.Error.Details["redirect"])
}

func TestHandlerSearchAndSelect(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]backend.CatalogItem{"mi": {item("7", "4.25")}}}
	svc, d := newService(t, catalog)
	h := &Handler{Svc: svc}
	r := chi.NewRouter()
	r.Post("/drafts/{draftID}/search/name", h.SearchByName)
	r.Post("/drafts/{draftID}/lines", h.Select)

	send := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req = req.WithContext(session.With(req.Context(), sess))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := send("/drafts/"+d.ID+"/search/name", `{"value":"mi"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"outcome":"candidates"`)

	rr = send("/drafts/"+d.ID+"/lines", `{"itemId":"7","quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var env struct {
		Data cart.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, 8.5, env.Data.GrandTotal)
}
