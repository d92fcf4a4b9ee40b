package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"github.com/live-neon/neon-soul-sub008/internal/service"
	"github.com/live-neon/neon-soul-sub008/internal/store"
	"go.uber.org/zap"
)

type SoulHandler struct {
	svc     *service.Synthesizer
	archive *store.SignalArchive
	cycles  *store.CycleLog
	embed   domain.EmbeddingClient
	logger  *zap.Logger
}

// NewSoulHandler wires the synthesizer and the optional Postgres archive.
// Archive, cycle log and embedding client may all be nil; archiving is
// skipped when they are.
func NewSoulHandler(svc *service.Synthesizer, archive *store.SignalArchive, cycles *store.CycleLog, embed domain.EmbeddingClient, logger *zap.Logger) *SoulHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SoulHandler{svc: svc, archive: archive, cycles: cycles, embed: embed, logger: logger}
}

type signalRequest struct {
	ID         string `json:"id,omitempty"`
	Text       string `json:"text"`
	Provenance string `json:"provenance,omitempty"`
	Stance     string `json:"stance,omitempty"`
	Dimension  string `json:"dimension,omitempty"`
	SourceRef  string `json:"source_ref,omitempty"`
}

type synthesizeRequest struct {
	Signals       []signalRequest `json:"signals"`
	DimensionHint string          `json:"dimension_hint,omitempty"`
	Force         bool            `json:"force,omitempty"`
}

type synthesizeResponse struct {
	Soul   *domain.Soul             `json:"soul"`
	Report *service.SynthesisReport `json:"report"`
}

func (h *SoulHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	soulID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid soul id")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	signals := make([]domain.Signal, 0, len(req.Signals))
	for i, s := range req.Signals {
		sig, err := buildSignal(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "signal "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		signals = append(signals, sig)
	}

	var hint *domain.Dimension
	if req.DimensionHint != "" {
		if !domain.ValidDimension(req.DimensionHint) {
			writeError(w, http.StatusBadRequest, "invalid dimension_hint")
			return
		}
		d := domain.Dimension(req.DimensionHint)
		hint = &d
	}

	soul, report, err := h.svc.Run(r.Context(), service.SynthesisRequest{
		SoulID:        soulID,
		Signals:       signals,
		DimensionHint: hint,
		Force:         req.Force,
	})
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.archiveRun(r, soulID, signals, report)

	writeJSON(w, http.StatusOK, synthesizeResponse{Soul: soul, Report: report})
}

func (h *SoulHandler) writeRunError(w http.ResponseWriter, err error) {
	var held *service.LockHeldError
	var oracleErr *service.OracleError
	switch {
	case errors.As(err, &held), errors.Is(err, service.ErrSynthesisInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSignalTextEmpty), errors.Is(err, service.ErrSignalIDMissing):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &oracleErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("synthesis run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "synthesis failed")
	}
}

// archiveRun records the run's signals and outcome in Postgres when the
// archive is configured. Best effort: archive failures are logged, never
// surfaced, since the soul file is already saved.
func (h *SoulHandler) archiveRun(r *http.Request, soulID uuid.UUID, signals []domain.Signal, report *service.SynthesisReport) {
	ctx := r.Context()

	if h.archive != nil && len(signals) > 0 {
		var embeddings [][]float32
		if h.embed != nil {
			embeddings = make([][]float32, len(signals))
			for i, sig := range signals {
				vec, err := h.embed.Embed(ctx, sig.Text)
				if err != nil {
					h.logger.Warn("signal embedding for archive failed", zap.Error(err))
					break
				}
				embeddings[i] = vec
			}
		}

		var err error
		if len(signals) == 1 {
			// Single-signal runs skip the transaction.
			var vec []float32
			if len(embeddings) == 1 {
				vec = embeddings[0]
			}
			err = h.archive.Record(ctx, soulID, signals[0], vec)
		} else {
			err = h.archive.RecordBatch(ctx, soulID, signals, embeddings)
		}
		if err != nil {
			h.logger.Warn("signal archive write failed", zap.Error(err))
		}
	}

	if h.cycles != nil {
		rec := store.CycleRecord{
			SoulID:         soulID,
			CycleCount:     report.CycleCount,
			Mode:           string(report.Decision.Mode),
			Reason:         report.Decision.Reason,
			SignalCount:    len(signals),
			AxiomCount:     report.AxiomCount,
			PrincipleCount: report.PrincipleCount,
		}
		if err := h.cycles.Record(ctx, &rec); err != nil {
			h.logger.Warn("cycle log write failed", zap.Error(err))
		}
	}
}

func buildSignal(s signalRequest) (domain.Signal, error) {
	if s.Text == "" {
		return domain.Signal{}, errors.New("text is required")
	}

	id := uuid.New()
	if s.ID != "" {
		parsed, err := uuid.Parse(s.ID)
		if err != nil {
			return domain.Signal{}, errors.New("invalid id")
		}
		id = parsed
	}

	provenance := domain.ProvenanceSelf
	if s.Provenance != "" {
		if !domain.ValidProvenance(s.Provenance) {
			return domain.Signal{}, errors.New("invalid provenance")
		}
		provenance = domain.Provenance(s.Provenance)
	}

	stance := domain.StanceAssert
	if s.Stance != "" {
		if !domain.ValidStance(s.Stance) {
			return domain.Signal{}, errors.New("invalid stance")
		}
		stance = domain.Stance(s.Stance)
	}

	var dimension domain.Dimension
	if s.Dimension != "" {
		if !domain.ValidDimension(s.Dimension) {
			return domain.Signal{}, errors.New("invalid dimension")
		}
		dimension = domain.Dimension(s.Dimension)
	}

	return domain.Signal{
		ID:         id,
		Text:       s.Text,
		Provenance: provenance,
		Stance:     stance,
		Dimension:  dimension,
		SourceRef:  s.SourceRef,
	}, nil
}

func (h *SoulHandler) Get(w http.ResponseWriter, r *http.Request) {
	soulID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid soul id")
		return
	}

	soul, err := h.svc.GetSoul(soulID)
	if err != nil {
		h.logger.Error("soul load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load soul")
		return
	}
	if soul == nil {
		writeError(w, http.StatusNotFound, "soul not found")
		return
	}

	writeJSON(w, http.StatusOK, soul)
}

type axiomsResponse struct {
	SoulID uuid.UUID      `json:"soul_id"`
	Axioms []domain.Axiom `json:"axioms"`
	Count  int            `json:"count"`
}

func (h *SoulHandler) GetAxioms(w http.ResponseWriter, r *http.Request) {
	soulID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid soul id")
		return
	}

	soul, err := h.svc.GetSoul(soulID)
	if err != nil {
		h.logger.Error("soul load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load soul")
		return
	}
	if soul == nil {
		writeError(w, http.StatusNotFound, "soul not found")
		return
	}

	axioms := soul.Axioms
	if tier := r.URL.Query().Get("tier"); tier != "" {
		switch domain.AxiomTier(tier) {
		case domain.TierCore, domain.TierDomain, domain.TierEmerging:
		default:
			writeError(w, http.StatusBadRequest, "invalid tier parameter")
			return
		}
		filtered := make([]domain.Axiom, 0, len(axioms))
		for _, a := range axioms {
			if a.Tier == domain.AxiomTier(tier) {
				filtered = append(filtered, a)
			}
		}
		axioms = filtered
	}

	writeJSON(w, http.StatusOK, axiomsResponse{
		SoulID: soulID,
		Axioms: axioms,
		Count:  len(axioms),
	})
}

type signalsResponse struct {
	SoulID  uuid.UUID              `json:"soul_id"`
	Signals []store.ArchivedSignal `json:"signals"`
	Count   int                    `json:"count"`
	Total   int                    `json:"total"`
}

// GetSignals serves the archived signal history for a soul. Only
// available when the Postgres archive is configured.
func (h *SoulHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "signal archive is not configured")
		return
	}

	soulID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid soul id")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	signals, err := h.archive.ListBySoul(r.Context(), soulID, limit)
	if err != nil {
		h.logger.Error("signal archive read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if signals == nil {
		signals = []store.ArchivedSignal{}
	}

	total, err := h.archive.CountBySoul(r.Context(), soulID)
	if err != nil {
		h.logger.Error("signal count failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count signals")
		return
	}

	writeJSON(w, http.StatusOK, signalsResponse{SoulID: soulID, Signals: signals, Count: len(signals), Total: total})
}

// GetSignal serves one archived signal by id. Only available when the
// Postgres archive is configured.
func (h *SoulHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "signal archive is not configured")
		return
	}

	sigID, err := uuid.Parse(chi.URLParam(r, "signalID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signal id")
		return
	}

	sig, err := h.archive.GetByID(r.Context(), sigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "signal not found")
			return
		}
		h.logger.Error("signal archive read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load signal")
		return
	}

	writeJSON(w, http.StatusOK, sig)
}

type similarSignalsResponse struct {
	SoulID  uuid.UUID              `json:"soul_id"`
	Query   string                 `json:"query"`
	Signals []store.ArchivedSignal `json:"signals"`
	Count   int                    `json:"count"`
}

// SearchSignals serves archived signals semantically close to a free-text
// query, nearest first. Needs both the archive and an embedding client.
func (h *SoulHandler) SearchSignals(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil || h.embed == nil {
		writeError(w, http.StatusNotImplemented, "signal search is not configured")
		return
	}

	soulID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid soul id")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	topK := 0
	if s := r.URL.Query().Get("top_k"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			topK = n
		}
	}

	vec, err := h.embed.Embed(r.Context(), query)
	if err != nil {
		h.logger.Error("query embedding failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to embed query")
		return
	}

	signals, err := h.archive.SearchSimilar(r.Context(), soulID, vec, topK)
	if err != nil {
		h.logger.Error("signal search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to search signals")
		return
	}
	if signals == nil {
		signals = []store.ArchivedSignal{}
	}

	writeJSON(w, http.StatusOK, similarSignalsResponse{
		SoulID:  soulID,
		Query:   query,
		Signals: signals,
		Count:   len(signals),
	})
}

type cyclesResponse struct {
	SoulID uuid.UUID           `json:"soul_id"`
	Runs   []store.CycleRecord `json:"runs"`
	Count  int                 `json:"count"`
}

// GetCycles serves the logged synthesis runs for a soul. Only available
// when the Postgres archive is configured.
func (h *SoulHandler) GetCycles(w http.ResponseWriter, r *http.Request) {
	if h.cycles == nil {
		writeError(w, http.StatusNotImplemented, "cycle log is not configured")
		return
	}

	soulID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid soul id")
		return
	}

	runs, err := h.cycles.ListBySoul(r.Context(), soulID, 0)
	if err != nil {
		h.logger.Error("cycle log read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list cycle runs")
		return
	}
	if runs == nil {
		runs = []store.CycleRecord{}
	}

	writeJSON(w, http.StatusOK, cyclesResponse{SoulID: soulID, Runs: runs, Count: len(runs)})
}
