package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scipiia/effvalid/internal/config"
	"github.com/scipiia/effvalid/internal/storage"
	"github.com/shopspring/decimal"
)

// Config holds the engine tolerances. It is immutable and passed in at
// construction, never read from process-wide state.
type Config struct {
	MSDGraceDays      int
	QtyTolerance      decimal.Decimal
	SplitMinCohort    int
	SplitHeadFraction decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		MSDGraceDays:      0,
		QtyTolerance:      decimal.NewFromFloat(0.10),
		SplitMinCohort:    2,
		SplitHeadFraction: decimal.NewFromFloat(0.20),
	}
}

func ConfigFrom(v config.Validation) Config {
	return Config{
		MSDGraceDays:      v.MSDGraceDays,
		QtyTolerance:      decimal.NewFromFloat(v.QtyTolerance),
		SplitMinCohort:    v.SplitMinCohort,
		SplitHeadFraction: decimal.NewFromFloat(v.SplitHeadFraction),
	}
}

// Storage is the data seam the engine runs through. The job-card handlers
// bind it to the submission transaction via RunValidationsWith.
type Storage = storage.ValidationStore

// Engine runs the validation rules for a job card and persists the net-new
// flag set. Flags are advisory: the engine creates them, only the supervisor
// workflow resolves them, nothing deletes them.
type Engine struct {
	storage Storage
	rules   []Rule
	cfg     Config
	log     *slog.Logger
}

func New(store Storage, cfg Config, log *slog.Logger) *Engine {
	return &Engine{
		storage: store,
		cfg:     cfg,
		log:     log,
		// fixed order, keeps evidence composition deterministic
		rules: []Rule{
			AWCRule{},
			MSDWindowRule{},
			DuplicationRule{},
			QtyMismatchRule{},
			SplitCandidateRule{},
		},
	}
}

type candidateKey struct {
	jobCardID int64
	flagType  storage.FlagType
}

// RunValidations runs the engine against the storage it was constructed with.
func (e *Engine) RunValidations(ctx context.Context, card *storage.JobCard) ([]*storage.ValidationFlag, error) {
	return e.RunValidationsWith(ctx, e.storage, card)
}

// RunValidationsWith assembles the context snapshot from store, evaluates the
// rules for the card and for every cohort sibling (creating card B must also
// re-validate card A), deduplicates candidates against existing unresolved
// flags per target card, and persists everything through the same store. The
// job-card handlers pass the transaction-bound store of the submission, so
// the run sees the snapshot of the write that produced the card and its flags
// commit with it. It returns the card's final unresolved flag set.
func (e *Engine) RunValidationsWith(ctx context.Context, store Storage, card *storage.JobCard) ([]*storage.ValidationFlag, error) {
	const op = "service.validation.RunValidations"

	rctx, existing, err := e.buildContext(ctx, store, card)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	candidates := e.evaluate(card, rctx)
	for _, sibling := range rctx.DayCohort {
		candidates = append(candidates, e.evaluate(sibling, rctx.forSibling(card, sibling))...)
	}

	// first candidate per (target, flag type) wins; rule order is fixed so the
	// outcome does not depend on map iteration
	chosen := make(map[candidateKey]Candidate)
	var order []candidateKey
	for _, c := range candidates {
		k := candidateKey{c.JobCardID, c.FlagType}
		if _, ok := chosen[k]; !ok {
			chosen[k] = c
			order = append(order, k)
		}
	}

	existingByCard := map[int64][]*storage.ValidationFlag{card.ID: existing}
	for _, k := range order {
		if _, ok := existingByCard[k.jobCardID]; ok {
			continue
		}
		flags, err := store.GetUnresolvedFlags(ctx, k.jobCardID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		existingByCard[k.jobCardID] = flags
	}

	result := storage.ValidationResult{HasFlags: make(map[int64]bool)}
	for _, k := range order {
		c := chosen[k]
		if ex := findUnresolved(existingByCard[c.JobCardID], c.FlagType); ex != nil {
			// idempotence: no second row; evidence changes update in place
			if ex.Details != c.Details {
				ex.Details = c.Details
				result.UpdatedFlags = append(result.UpdatedFlags, ex)
			}
			continue
		}
		result.NewFlags = append(result.NewFlags, &storage.ValidationFlag{
			JobCardID: c.JobCardID,
			FlagType:  c.FlagType,
			Details:   c.Details,
			CreatedAt: time.Now(),
		})
	}

	newCount := make(map[int64]int)
	for _, f := range result.NewFlags {
		newCount[f.JobCardID]++
	}
	// additive-only: existing flags whose condition no longer holds stay
	// unresolved until a supervisor acts on them
	for id, flags := range existingByCard {
		result.HasFlags[id] = len(flags) > 0 || newCount[id] > 0
	}

	if err := store.PersistValidation(ctx, result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	card.HasFlags = result.HasFlags[card.ID]

	final := make([]*storage.ValidationFlag, 0, len(existing)+newCount[card.ID])
	final = append(final, existing...)
	for _, f := range result.NewFlags {
		if f.JobCardID == card.ID {
			final = append(final, f)
		}
	}

	return final, nil
}

// evaluate runs every rule for one card with per-rule containment: a missing
// work order or a failing rule contributes no candidates and never poisons the
// other rules in the run.
func (e *Engine) evaluate(card *storage.JobCard, rctx *RuleContext) []Candidate {
	var out []Candidate
	for _, rule := range e.rules {
		candidates, err := evalRule(rule, card, rctx)
		if errors.Is(err, ErrMissingWorkOrder) {
			e.log.Warn("validation rule skipped",
				slog.String("rule", rule.Name()),
				slog.Int64("job_card_id", card.ID),
				slog.Int64("work_order_id", card.WorkOrderID),
			)
			continue
		}
		if err != nil {
			e.log.Error("validation rule failed",
				slog.String("rule", rule.Name()),
				slog.Int64("job_card_id", card.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, candidates...)
	}

	return out
}

func evalRule(rule Rule, card *storage.JobCard, rctx *RuleContext) (candidates []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return rule.Evaluate(card, rctx)
}

func findUnresolved(flags []*storage.ValidationFlag, ft storage.FlagType) *storage.ValidationFlag {
	for _, f := range flags {
		if f.FlagType == ft && !f.Resolved {
			return f
		}
	}
	return nil
}
