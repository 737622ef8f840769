package e2e

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/centralpricelist/pricelist/internal/app"
	jobmetrics "github.com/centralpricelist/pricelist/internal/jobs"
	"github.com/centralpricelist/pricelist/internal/pricelist"
	pricelisthttp "github.com/centralpricelist/pricelist/internal/pricelist/http"
	"github.com/centralpricelist/pricelist/jobs"
	_ "github.com/centralpricelist/pricelist/testing"
)

type memoryRepository struct {
	mu      sync.Mutex
	records map[string]pricelist.ProductRecord
}

func (m *memoryRepository) Upsert(_ context.Context, rec pricelist.ProductRecord) (pricelist.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[rec.ProductID]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	m.records[rec.ProductID] = rec
	return rec, nil
}

func (m *memoryRepository) sorted(supplier string) []pricelist.ProductRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pricelist.ProductRecord
	for _, rec := range m.records {
		if supplier == "" || rec.Supplier == supplier {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *memoryRepository) List(_ context.Context, filter pricelist.ListFilter) ([]pricelist.ProductRecord, int, error) {
	all := m.sorted(filter.Supplier)
	return all, len(all), nil
}

func (m *memoryRepository) Stats(context.Context) (pricelist.CatalogStats, error) {
	all := m.sorted("")
	suppliers := map[string]bool{}
	categories := map[int]bool{}
	for _, rec := range all {
		suppliers[rec.Supplier] = true
		categories[rec.CategoryID] = true
	}
	return pricelist.CatalogStats{TotalProducts: len(all), Suppliers: len(suppliers), Categories: len(categories)}, nil
}

func (m *memoryRepository) Delete(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepository) Export(_ context.Context, filter pricelist.ExportFilter) ([]pricelist.ProductRecord, error) {
	return m.sorted(filter.Supplier), nil
}

// inlineQueue runs the upload job as soon as it is enqueued. Job errors stay
// with the worker; the client only sees them through the upload status.
type inlineQueue struct {
	job *jobs.ProcessUploadJob
}

func (q inlineQueue) EnqueueUpload(ctx context.Context, upload pricelist.Upload) error {
	task, err := jobs.NewProcessUploadTask(upload)
	if err != nil {
		return err
	}
	_ = q.job.Handle(context.WithoutCancel(ctx), task)
	return nil
}

type harness struct {
	server *httptest.Server
	repo   *memoryRepository
	spool  string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memoryRepository{records: map[string]pricelist.ProductRecord{}}
	statuses := pricelist.NewRedisStatusStore(client, time.Hour)
	svc := pricelist.NewService(repo, statuses, nil, nil, logger, pricelist.Config{})

	dir := t.TempDir()
	spool, err := pricelist.NewSpool(dir)
	require.NoError(t, err)
	job := jobs.NewProcessUploadJob(svc, spool, logger, jobmetrics.NewMetrics(nil))

	handler := pricelisthttp.NewHandler(logger, svc, inlineQueue{job: job}, spool, 5<<20)
	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           &app.Config{},
		PricelistHandler: handler,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return harness{server: server, repo: repo, spool: dir}
}

func dealerWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Yealink"))
	rows := [][]any{
		{"Nology Dealer Pricelist"},
		{"SKU", "DESCRIPTION", "DEALER PRICE EXCL VAT"},
		{"CATEGORY", "HANDSETS"},
		{"T21P", "Yealink T21P IP Phone", 1148.50},
		{"T46U", "Yealink T46U Gigabit Phone", 2650},
		{"MC1", "Mic", 50},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Yealink", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func upload(t *testing.T, url string, filename string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/pricelist/uploads", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUploadImportListExportDelete(t *testing.T) {
	h := newHarness(t)

	resp := upload(t, h.server.URL, "Nology Dealer.xlsx", dealerWorkbook(t), map[string]string{
		"supplier_name":     "Nology",
		"markup_percentage": "20",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	queued := decode[pricelist.UploadStatus](t, resp)
	require.NotEmpty(t, queued.ID)

	resp, err := http.Get(h.server.URL + "/api/pricelist/uploads/" + queued.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[pricelist.UploadStatus](t, resp)
	assert.Equal(t, pricelist.StateCompleted, status.State)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Summary)
	assert.Equal(t, 2, status.Summary.SavedCount)
	assert.Equal(t, "Nology Dealer.xlsx", status.Summary.Filename)

	spooled, err := os.ReadDir(h.spool)
	require.NoError(t, err)
	assert.Empty(t, spooled, "processed uploads leave the spool")

	resp, err = http.Get(h.server.URL + "/api/pricelist/products?supplier=Nology")
	require.NoError(t, err)
	listed := decode[struct {
		Products []pricelist.ProductRecord `json:"products"`
	}](t, resp)
	require.Len(t, listed.Products, 2)
	phone := listed.Products[0]
	assert.Equal(t, "T21P - Yealink T21P IP Phone", phone.Name)
	assert.Equal(t, 1148.50, phone.Prices.CostExclVAT)
	assert.Equal(t, 1378.20, phone.Prices.RetailExclVAT)
	assert.Equal(t, 1584.93, phone.Price())

	resp, err = http.Get(h.server.URL + "/api/pricelist/export?format=csv")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	rows, err := csv.NewReader(resp.Body).ReadAll()
	resp.Body.Close()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, phone.ProductID, rows[1][0])

	req, err := http.NewRequest(http.MethodDelete, h.server.URL+"/api/pricelist/products",
		strings.NewReader(`{"product_ids":["`+phone.ProductID+`","missing"]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	deleted := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), deleted["deleted_count"])

	resp, err = http.Get(h.server.URL + "/api/pricelist/products/stats")
	require.NoError(t, err)
	stats := decode[pricelist.CatalogStats](t, resp)
	assert.Equal(t, 1, stats.TotalProducts)
}

func TestCorruptUploadEndsInErrorState(t *testing.T) {
	h := newHarness(t)

	resp := upload(t, h.server.URL, "broken.xlsx", []byte("not a workbook"), map[string]string{"supplier_name": "Nology"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	queued := decode[pricelist.UploadStatus](t, resp)

	resp, err := http.Get(h.server.URL + "/api/pricelist/uploads/" + queued.ID)
	require.NoError(t, err)
	status := decode[pricelist.UploadStatus](t, resp)
	assert.Equal(t, pricelist.StateError, status.State)
	assert.Contains(t, status.Error, "could not be read")
	assert.Empty(t, h.repo.sorted(""))

	resp, err = http.Get(h.server.URL + "/api/pricelist/export?format=csv")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	h := newHarness(t)

	resp := upload(t, h.server.URL, "notes.docx", []byte("hello"), map[string]string{"supplier_name": "Nology"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Get(h.server.URL + "/api/pricelist/uploads")
	require.NoError(t, err)
	recent := decode[struct {
		Uploads []pricelist.UploadStatus `json:"uploads"`
	}](t, resp)
	assert.Empty(t, recent.Uploads)
}
