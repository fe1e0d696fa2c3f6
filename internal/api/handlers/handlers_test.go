package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/persona-coach/internal/coach"
	"github.com/dvloznov/persona-coach/internal/jobs"
	"github.com/dvloznov/persona-coach/internal/jobs/inmemory"
	"github.com/dvloznov/persona-coach/internal/metrics"
	"github.com/dvloznov/persona-coach/internal/persona"
	"github.com/dvloznov/persona-coach/internal/rag"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPredictor struct {
	RunFunc func(t *persona.Table) (*persona.Outcome, error)
}

func (m *mockPredictor) Run(t *persona.Table) (*persona.Outcome, error) {
	return m.RunFunc(t)
}

type mockRecorder struct {
	records chan string
	err     error
}

func (m *mockRecorder) Record(ctx context.Context, requestID string, out *persona.Outcome) error {
	m.records <- out.Result.Persona
	return m.err
}

type mockAdvisor struct {
	AdviseFunc func(ctx context.Context, r coach.AdviceRequest) (string, error)
}

func (m *mockAdvisor) Advise(ctx context.Context, r coach.AdviceRequest) (string, error) {
	return m.AdviseFunc(ctx, r)
}

type mockChat struct {
	AskFunc func(ctx context.Context, msg string) (*rag.Answer, error)
}

func (m *mockChat) Ask(ctx context.Context, msg string) (*rag.Answer, error) {
	return m.AskFunc(ctx, msg)
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.IndexDocumentJob) error
}

func (m *mockPublisher) PublishIndexDocument(ctx context.Context, job *jobs.IndexDocumentJob) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, job)
	}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockScraper struct {
	ScrapeFunc func(ctx context.Context, rawURL, dir string) (string, error)
}

func (m *mockScraper) Scrape(ctx context.Context, rawURL, dir string) (string, error) {
	return m.ScrapeFunc(ctx, rawURL, dir)
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict_csv", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const ledger = "timestamp,amount,category\n2025-03-01 10:00,100,Survival\n"

func TestPredictCSV_Success(t *testing.T) {
	m := metrics.New("test")
	recorder := &mockRecorder{records: make(chan string, 1)}
	predictor := &mockPredictor{
		RunFunc: func(tbl *persona.Table) (*persona.Outcome, error) {
			assert.GreaterOrEqual(t, tbl.Column(persona.ColumnAmount), 0)
			return &persona.Outcome{
				Result: persona.Result{Cluster: 3, Persona: "Routine Essentialist"},
				Rows:   1,
			}, nil
		},
	}
	h := NewPersonaHandler(predictor, recorder, m, 1<<20, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.PredictCSV(rec, uploadRequest(t, "March.CSV", ledger))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 3.0, body["cluster"])
	assert.Equal(t, "Routine Essentialist", body["persona"])

	select {
	case got := <-recorder.records:
		assert.Equal(t, "Routine Essentialist", got)
	case <-time.After(2 * time.Second):
		t.Fatal("prediction was not recorded")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("Routine Essentialist")))
}

func TestPredictCSV_Errors(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "not a csv",
			filename:   "ledger.xlsx",
			wantStatus: http.StatusBadRequest,
			wantDetail: "Please upload a CSV file",
		},
		{
			name:       "schema",
			filename:   "ledger.csv",
			err:        &persona.SchemaError{Required: persona.RequiredColumns},
			wantStatus: http.StatusBadRequest,
			wantDetail: "CSV must contain columns: timestamp, amount, category",
		},
		{
			name:       "empty",
			filename:   "ledger.csv",
			err:        &persona.EmptyDataError{Reason: "No valid transactions found after preprocessing."},
			wantStatus: http.StatusBadRequest,
			wantDetail: "No valid transactions found after preprocessing.",
		},
		{
			name:       "adapter",
			filename:   "ledger.csv",
			err:        &persona.AdapterError{Op: "transform", Err: errors.New("expected 12 features")},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Persona model error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := &mockPredictor{
				RunFunc: func(tbl *persona.Table) (*persona.Outcome, error) {
					return nil, tt.err
				},
			}
			h := NewPersonaHandler(predictor, nil, nil, 1<<20, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.PredictCSV(rec, uploadRequest(t, tt.filename, ledger))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, decodeBody(t, rec)["detail"])
		})
	}
}

func TestPredictCSV_NoFile(t *testing.T) {
	h := NewPersonaHandler(&mockPredictor{}, nil, nil, 1<<20, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.PredictCSV(rec, httptest.NewRequest(http.MethodPost, "/predict_csv", strings.NewReader("")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeBody(t, rec)["detail"])
}

func TestGenerateAdvice(t *testing.T) {
	advisor := &mockAdvisor{
		AdviseFunc: func(ctx context.Context, r coach.AdviceRequest) (string, error) {
			assert.Equal(t, "Impulse", r.TransactionCategory)
			assert.Equal(t, 500.0, r.Amount)
			return "Nice restraint.", nil
		},
	}
	h := NewAdviceHandler(advisor, zerolog.Nop())

	body := `{"persona":"Spontaneous Spender","amount":500,"user_goal":"Trip","transaction_category":"Impulse","monthly_budget":20000,"current_monthly_spend":15000}`
	rec := httptest.NewRecorder()
	h.GenerateAdvice(rec, httptest.NewRequest(http.MethodPost, "/generate_advice", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Nice restraint.", decodeBody(t, rec)["advice"])
}

func TestGenerateAdvice_Validation(t *testing.T) {
	h := NewAdviceHandler(&mockAdvisor{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GenerateAdvice(rec, httptest.NewRequest(http.MethodPost, "/generate_advice", strings.NewReader(`{"amount":-1}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeBody(t, rec)["detail"].(string)
	assert.Contains(t, detail, "amount (gte)")
	assert.Contains(t, detail, "persona (required)")
	assert.Contains(t, detail, "user_goal (required)")

	rec = httptest.NewRecorder()
	h.GenerateAdvice(rec, httptest.NewRequest(http.MethodPost, "/generate_advice", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeBody(t, rec)["detail"])
}

func TestGenerateAdvice_ProviderError(t *testing.T) {
	advisor := &mockAdvisor{
		AdviseFunc: func(ctx context.Context, r coach.AdviceRequest) (string, error) {
			return "", &coach.ProviderError{Provider: "groq", Err: errors.New("rate limited")}
		},
	}
	h := NewAdviceHandler(advisor, zerolog.Nop())

	body := `{"persona":"p","amount":1,"user_goal":"g","transaction_category":"Joy"}`
	rec := httptest.NewRecorder()
	h.GenerateAdvice(rec, httptest.NewRequest(http.MethodPost, "/generate_advice", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "rate limited")
}

func TestChat(t *testing.T) {
	chat := &mockChat{
		AskFunc: func(ctx context.Context, msg string) (*rag.Answer, error) {
			if strings.TrimSpace(msg) == "" {
				return nil, rag.ErrEmptyQuestion
			}
			return &rag.Answer{
				Answer:  "Keep an emergency fund.",
				Sources: []rag.Source{{Source: "kb/tips.txt", Snippet: "Emergency fund"}},
			}, nil
		},
	}
	h := NewChatHandler(chat, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"msg":"How much should I save?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Keep an emergency fund.", body["answer"])
	assert.Len(t, body["sources"], 1)

	rec = httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"msg":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "msg required", decodeBody(t, rec)["detail"])
}

func TestChat_Failures(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChatHandler(nil, zerolog.Nop()).Chat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"msg":"hi"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	chat := &mockChat{
		AskFunc: func(ctx context.Context, msg string) (*rag.Answer, error) {
			return nil, errors.New("embedding backend down")
		},
	}
	rec = httptest.NewRecorder()
	NewChatHandler(chat, zerolog.Nop()).Chat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"msg":"hi"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "embedding backend down", decodeBody(t, rec)["detail"])
}

func TestEnqueueIndexing(t *testing.T) {
	var published *jobs.IndexDocumentJob
	publisher := &mockPublisher{
		PublishFunc: func(ctx context.Context, job *jobs.IndexDocumentJob) error {
			job.JobID = "job-7"
			job.Status = jobs.JobStatusPending
			published = job
			return nil
		},
	}
	h := NewIndexHandler(publisher, nil, "", zerolog.Nop())

	rec := httptest.NewRecorder()
	h.EnqueueIndexing(rec, httptest.NewRequest(http.MethodPost, "/api/index", strings.NewReader(`{"source":"gs://kb/guide.pdf"}`)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, published)
	assert.Equal(t, "gs://kb/guide.pdf", published.Source)
	body := decodeBody(t, rec)
	assert.Equal(t, "job-7", body["job_id"])
	assert.Equal(t, "pending", body["status"])

	rec = httptest.NewRecorder()
	h.EnqueueIndexing(rec, httptest.NewRequest(http.MethodPost, "/api/index", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid fields: source (required)", decodeBody(t, rec)["detail"])
}

func TestEnqueueIndexing_SourceMustStayInKnowledgeBase(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		source   string
		want     string
		accepted bool
	}{
		{"relative to dir", "data", "guide.pdf", filepath.Join("data", "guide.pdf"), true},
		{"prefixed with dir", "data", "data/notes/budget.md", filepath.Join("data", "notes", "budget.md"), true},
		{"gcs uri", "data", "gs://kb/guide.pdf", "gs://kb/guide.pdf", true},
		{"parent traversal", "data", "../etc/passwd", "", false},
		{"traversal through dir", "data", "data/../../secrets.txt", "", false},
		{"absolute path", "data", "/etc/hosts", "", false},
		{"the dir itself", "data", ".", "", false},
		{"bucket without object", "data", "gs://kb", "", false},
		{"local path with gcs dir", "gs://kb/pages", "guide.pdf", "", false},
		{"local path without dir", "", "guide.pdf", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var published *jobs.IndexDocumentJob
			publisher := &mockPublisher{
				PublishFunc: func(ctx context.Context, job *jobs.IndexDocumentJob) error {
					published = job
					return nil
				},
			}
			h := NewIndexHandler(publisher, nil, tt.dir, zerolog.Nop())

			body, err := json.Marshal(map[string]string{"source": tt.source})
			require.NoError(t, err)
			rec := httptest.NewRecorder()
			h.EnqueueIndexing(rec, httptest.NewRequest(http.MethodPost, "/api/index", bytes.NewReader(body)))

			if !tt.accepted {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Nil(t, published)
				return
			}
			require.Equal(t, http.StatusAccepted, rec.Code)
			require.NotNil(t, published)
			assert.Equal(t, tt.want, published.Source)
		})
	}
}

func TestScrapePage(t *testing.T) {
	scraper := &mockScraper{
		ScrapeFunc: func(ctx context.Context, rawURL, dir string) (string, error) {
			assert.Equal(t, "gs://kb/pages", dir)
			return dir + "/example-com_a_b.pdf", nil
		},
	}
	h := NewIndexHandler(&mockPublisher{}, scraper, "gs://kb/pages", zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ScrapePage(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"url":"https://example.com/a/b"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gs://kb/pages/example-com_a_b.pdf", decodeBody(t, rec)["location"])

	rec = httptest.NewRecorder()
	h.ScrapePage(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"url":"https://example.com/a/b","index":true}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job-1", decodeBody(t, rec)["job_id"])

	rec = httptest.NewRecorder()
	h.ScrapePage(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"url":"not a url"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapePage_Failure(t *testing.T) {
	scraper := &mockScraper{
		ScrapeFunc: func(ctx context.Context, rawURL, dir string) (string, error) {
			return "", errors.New("unexpected status 404")
		},
	}
	h := NewIndexHandler(&mockPublisher{}, scraper, "data", zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ScrapePage(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"url":"https://example.com/x"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	NewIndexHandler(&mockPublisher{}, nil, "", zerolog.Nop()).ScrapePage(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobsHandler(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveJob(ctx, &jobs.IndexDocumentJob{JobID: "a", Source: "kb/a.txt", Status: jobs.JobStatusCompleted, CreatedAt: time.Now()}))
	require.NoError(t, store.SaveJob(ctx, &jobs.IndexDocumentJob{JobID: "b", Source: "kb/b.txt", Status: jobs.JobStatusFailed, CreatedAt: time.Now()}))
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/a", nil), "a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kb/a.txt", decodeBody(t, rec)["source"])

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/zzz", nil), "zzz")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decodeBody(t, rec)["count"])
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}
