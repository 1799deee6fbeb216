// Package scoring computes confidence values and evidence trails for
// candidate links. Confidence is additive: a base determined by who asserted
// the link, plus bonuses for handle similarity and independent corroborating
// sources, capped at 1.0. Repeated scoring of the same identity is monotonic
// non-decreasing; a link never loses confidence because a later pass failed
// to re-discover it.
package scoring

import (
	"fmt"
	"time"

	"github.com/linkhound/ingest/internal/domain/model"
)

// Evidence signal names recorded by the scorer.
const (
	SignalBaseManual          = "base_manual"
	SignalBaseAdmin           = "base_admin"
	SignalBaseIngested        = "base_ingested"
	SignalHandleSimilarity    = "handle_similarity"
	SignalCorroboratingSource = "corroborating_source"
)

// Config holds the scoring constants. Values are tunable but their ordering
// is an invariant: BaseManual > BaseAdmin > BaseIngested.
type Config struct {
	// BaseManual is the base confidence for links a creator added themselves.
	BaseManual float64 `env:"SCORING_BASE_MANUAL" envDefault:"0.60"`

	// BaseAdmin is the base confidence for links added by an operator.
	BaseAdmin float64 `env:"SCORING_BASE_ADMIN" envDefault:"0.50"`

	// BaseIngested is the base confidence for links discovered by ingestion.
	BaseIngested float64 `env:"SCORING_BASE_INGESTED" envDefault:"0.20"`

	// HandleBonusMin is the bonus granted at the minimum counted similarity.
	HandleBonusMin float64 `env:"SCORING_HANDLE_BONUS_MIN" envDefault:"0.10"`

	// HandleBonusMax is the bonus granted for an exact handle match.
	HandleBonusMax float64 `env:"SCORING_HANDLE_BONUS_MAX" envDefault:"0.20"`

	// MinHandleSimilarity is the similarity floor below which no handle
	// bonus is granted at all.
	MinHandleSimilarity float64 `env:"SCORING_MIN_HANDLE_SIMILARITY" envDefault:"0.60"`

	// PerSourceBonus is granted for each independent corroborating source
	// beyond the first.
	PerSourceBonus float64 `env:"SCORING_PER_SOURCE_BONUS" envDefault:"0.15"`

	// ActiveThreshold is the confidence at or above which an unambiguous
	// link derives the active state.
	ActiveThreshold float64 `env:"SCORING_ACTIVE_THRESHOLD" envDefault:"0.75"`
}

// Sanitize applies guardrails to scoring configuration values. Out-of-range
// values and orderings that break the manual > admin > ingested invariant
// fall back to defaults.
func (c *Config) Sanitize() {
	def := DefaultConfig()
	inUnit := func(v float64) bool { return v > 0 && v <= 1 }

	if !inUnit(c.BaseManual) || !inUnit(c.BaseAdmin) || !inUnit(c.BaseIngested) ||
		c.BaseManual <= c.BaseAdmin || c.BaseAdmin <= c.BaseIngested {
		c.BaseManual = def.BaseManual
		c.BaseAdmin = def.BaseAdmin
		c.BaseIngested = def.BaseIngested
	}
	if !inUnit(c.HandleBonusMin) || !inUnit(c.HandleBonusMax) || c.HandleBonusMin > c.HandleBonusMax {
		c.HandleBonusMin = def.HandleBonusMin
		c.HandleBonusMax = def.HandleBonusMax
	}
	if c.MinHandleSimilarity <= 0 || c.MinHandleSimilarity >= 1 {
		c.MinHandleSimilarity = def.MinHandleSimilarity
	}
	if !inUnit(c.PerSourceBonus) {
		c.PerSourceBonus = def.PerSourceBonus
	}
	if !inUnit(c.ActiveThreshold) {
		c.ActiveThreshold = def.ActiveThreshold
	}
}

// DefaultConfig returns the standard scoring constants.
func DefaultConfig() Config {
	return Config{
		BaseManual:          0.60,
		BaseAdmin:           0.50,
		BaseIngested:        0.20,
		HandleBonusMin:      0.10,
		HandleBonusMax:      0.20,
		MinHandleSimilarity: 0.60,
		PerSourceBonus:      0.15,
		ActiveThreshold:     0.75,
	}
}

// Scorer computes confidence outcomes from candidates and prior evidence.
type Scorer struct {
	cfg Config
	now func() time.Time
}

// ScorerOptions contains the dependencies for creating a Scorer.
type ScorerOptions struct {
	// Config holds the scoring constants. Zero value falls back to defaults.
	Config Config
	// Now supplies timestamps for evidence records. Defaults to time.Now.
	Now func() time.Time
}

// NewScorer creates a Scorer with sanitized configuration.
func NewScorer(opts ScorerOptions) *Scorer {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	cfg.Sanitize()

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scorer{cfg: cfg, now: now}
}

// Config returns the sanitized configuration the scorer runs with.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Input describes one assertion of a candidate link to be scored.
type Input struct {
	// Candidate is the normalized discovery being scored.
	Candidate model.Candidate
	// SourceType records who asserted the candidate this time.
	SourceType model.SourceType
	// CreatorHandle is the creator's known handle, for similarity scoring.
	CreatorHandle string
	// Existing is the stored link for the same canonical identity, nil on
	// first discovery.
	Existing *model.SocialLink
}

// Outcome is the scored result: the new confidence and the evidence records
// this pass contributes. Evidence is append-only; callers attach it to
// whatever trail the link already carries.
type Outcome struct {
	Confidence float64
	Evidence   []model.Evidence
}

// Score computes the confidence for one candidate assertion.
func (s *Scorer) Score(in Input) Outcome {
	observedAt := s.now()
	confidence := s.baseFor(in.SourceType)
	evidence := []model.Evidence{{
		Signal:     baseSignal(in.SourceType),
		Source:     in.Candidate.SourcePlatform,
		Detail:     fmt.Sprintf("base %.2f", confidence),
		ObservedAt: observedAt,
	}}

	if bonus, sim, ok := s.handleBonus(in.Candidate.Handle, in.CreatorHandle); ok {
		confidence += bonus
		evidence = append(evidence, model.Evidence{
			Signal:     SignalHandleSimilarity,
			Source:     in.Candidate.SourcePlatform,
			Detail:     fmt.Sprintf("similarity %.2f to %q", sim, in.CreatorHandle),
			ObservedAt: observedAt,
		})
	}

	sources := priorSources(in.Existing)
	if _, seen := sources[in.Candidate.SourcePlatform]; !seen && len(sources) > 0 {
		extra := len(sources) // new source makes len(sources)+1 total, bonus per extra beyond the first
		confidence += s.cfg.PerSourceBonus * float64(extra)
		evidence = append(evidence, model.Evidence{
			Signal:     SignalCorroboratingSource,
			Source:     in.Candidate.SourcePlatform,
			Detail:     fmt.Sprintf("%d independent sources", extra+1),
			ObservedAt: observedAt,
		})
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	// Monotonic: re-discovery may only raise confidence, never lower it.
	if in.Existing != nil && in.Existing.Confidence > confidence {
		confidence = in.Existing.Confidence
	}

	return Outcome{Confidence: confidence, Evidence: evidence}
}

// DeriveState maps a confidence to a visibility state. Ambiguous candidates
// (several discoveries competing for one platform in a single pass) never
// derive active. Rejection is an explicit human action, so this function
// never returns it.
func (s *Scorer) DeriveState(confidence float64, ambiguous bool) model.LinkState {
	if !ambiguous && confidence >= s.cfg.ActiveThreshold {
		return model.LinkStateActive
	}
	return model.LinkStateSuggested
}

func (s *Scorer) baseFor(origin model.SourceType) float64 {
	switch origin {
	case model.SourceTypeManual:
		return s.cfg.BaseManual
	case model.SourceTypeAdmin:
		return s.cfg.BaseAdmin
	default:
		return s.cfg.BaseIngested
	}
}

func baseSignal(origin model.SourceType) string {
	switch origin {
	case model.SourceTypeManual:
		return SignalBaseManual
	case model.SourceTypeAdmin:
		return SignalBaseAdmin
	default:
		return SignalBaseIngested
	}
}

// handleBonus returns the similarity bonus for the discovered handle against
// the creator's known handle, scaled linearly between HandleBonusMin at the
// similarity floor and HandleBonusMax at an exact match.
func (s *Scorer) handleBonus(discovered, known string) (bonus, sim float64, ok bool) {
	if discovered == "" || known == "" {
		return 0, 0, false
	}
	sim = Similarity(discovered, known)
	if sim < s.cfg.MinHandleSimilarity {
		return 0, sim, false
	}
	span := 1.0 - s.cfg.MinHandleSimilarity
	scale := 0.0
	if span > 0 {
		scale = (sim - s.cfg.MinHandleSimilarity) / span
	}
	bonus = s.cfg.HandleBonusMin + (s.cfg.HandleBonusMax-s.cfg.HandleBonusMin)*scale
	return bonus, sim, true
}

// priorSources collects the distinct source platforms already present in a
// link's evidence trail.
func priorSources(existing *model.SocialLink) map[string]struct{} {
	sources := make(map[string]struct{})
	if existing == nil {
		return sources
	}
	for _, ev := range existing.Evidence {
		if ev.Source == "" {
			continue
		}
		switch ev.Signal {
		case SignalBaseManual, SignalBaseAdmin, SignalBaseIngested, SignalCorroboratingSource:
			sources[ev.Source] = struct{}{}
		}
	}
	return sources
}
