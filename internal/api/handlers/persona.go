package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/persona-coach/internal/api/middleware"
	"github.com/dvloznov/persona-coach/internal/metrics"
	"github.com/dvloznov/persona-coach/internal/persona"
	"github.com/rs/zerolog"
)

// recordTimeout bounds the background write of one prediction.
const recordTimeout = 30 * time.Second

// Predictor runs the persona pipeline on an uploaded table.
type Predictor interface {
	Run(t *persona.Table) (*persona.Outcome, error)
}

// PredictionRecorder stores successful predictions.
type PredictionRecorder interface {
	Record(ctx context.Context, requestID string, out *persona.Outcome) error
}

// PersonaHandler serves POST /predict_csv.
type PersonaHandler struct {
	predictor Predictor
	recorder  PredictionRecorder
	metrics   *metrics.Metrics
	maxBytes  int64
	log       zerolog.Logger
}

// NewPersonaHandler creates a persona handler. recorder and m may be nil.
func NewPersonaHandler(predictor Predictor, recorder PredictionRecorder, m *metrics.Metrics, maxBytes int64, log zerolog.Logger) *PersonaHandler {
	return &PersonaHandler{
		predictor: predictor,
		recorder:  recorder,
		metrics:   m,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// PredictCSV handles POST /predict_csv with a multipart "file" field.
func (h *PersonaHandler) PredictCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.count("too_large")
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		h.count("bad_request")
		middleware.WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		h.count("bad_request")
		middleware.WriteError(w, http.StatusBadRequest, "Please upload a CSV file")
		return
	}

	table, err := persona.ReadCSV(file)
	if err != nil {
		h.writePredictError(w, header.Filename, err)
		return
	}

	out, err := h.predictor.Run(table)
	if err != nil {
		h.writePredictError(w, header.Filename, err)
		return
	}

	h.count(out.Result.Persona)
	h.log.Info().
		Str("request_id", middleware.GetRequestID(ctx)).
		Int("rows", out.Rows).
		Int("cluster", out.Result.Cluster).
		Str("persona", out.Result.Persona).
		Msg("Persona predicted")

	if h.recorder != nil {
		go h.record(context.WithoutCancel(ctx), middleware.GetRequestID(ctx), out)
	}

	middleware.WriteJSON(w, http.StatusOK, out.Result)
}

func (h *PersonaHandler) writePredictError(w http.ResponseWriter, filename string, err error) {
	var (
		schemaErr  *persona.SchemaError
		emptyErr   *persona.EmptyDataError
		adapterErr *persona.AdapterError
	)

	switch {
	case errors.As(err, &schemaErr):
		h.count("schema_error")
		middleware.WriteError(w, http.StatusBadRequest, schemaErr.Error())
	case errors.As(err, &emptyErr):
		h.count("empty_data")
		middleware.WriteError(w, http.StatusBadRequest, emptyErr.Error())
	case errors.As(err, &adapterErr):
		h.count("adapter_error")
		h.log.Error().Err(err).Str("file", filename).Msg("Persona model rejected extracted features")
		middleware.WriteError(w, http.StatusInternalServerError, "Persona model error")
	default:
		h.count("bad_request")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *PersonaHandler) record(ctx context.Context, requestID string, out *persona.Outcome) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := h.recorder.Record(ctx, requestID, out); err != nil {
		h.log.Warn().Err(err).Str("request_id", requestID).Msg("Failed to record prediction")
	}
}

func (h *PersonaHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Predictions.WithLabelValues(outcome).Inc()
	}
}
