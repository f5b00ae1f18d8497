// Package config holds every tunable threshold and weight of the triage
// pipeline. The numbers are deliberately configuration, not hardcoded: the
// defaults below are the named baseline constants, and a YAML file may
// override them. Invalid or missing values are fatal at process start.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default threshold and weight constants. These are the contract values the
// rest of the pipeline refers to; tests pin them.
const (
	DefaultKBConfidenceThreshold   = 0.70
	DefaultProceedThreshold        = 0.75
	DefaultGiveUpThreshold         = 0.40
	DefaultEscalationThreshold     = 0.60
	DefaultPreArmedThresholdDelta  = 0.15
	DefaultReformulationFidelity   = 0.85
	DefaultScoreThreshold          = 0.35
	DefaultTopK                    = 4
	DefaultSearchOversample        = 3
	DefaultMaxAttempts             = 2
	DefaultReasonTimeout           = 8 * time.Second
	DefaultRetrievalWeight         = 0.40
	DefaultPriorityWeight          = 0.30
	DefaultClassificationWeight    = 0.20
	DefaultAdjustmentWeight        = 0.10
	DefaultValidatorMinSubject     = 4
	DefaultValidatorMinDescription = 20
)

// Thresholds gates the pipeline's confidence decisions.
type Thresholds struct {
	// KBConfidence: mean retrieval similarity at or above this value sets
	// kb_confident.
	KBConfidence float64 `yaml:"kb_confidence"`
	// Proceed: overall classification confidence needed for the plain
	// kb_retrieval path.
	Proceed float64 `yaml:"proceed"`
	// GiveUp: below this the planner escalates immediately.
	GiveUp float64 `yaml:"give_up"`
	// Escalation: evaluator confidence below this escalates.
	Escalation float64 `yaml:"escalation"`
	// PreArmedDelta tightens the escalation threshold when the planner
	// pre-armed escalation.
	PreArmedDelta float64 `yaml:"pre_armed_delta"`
	// ReformulationFidelity: minimum cosine similarity between the original
	// ticket text and its reformulation.
	ReformulationFidelity float64 `yaml:"reformulation_fidelity"`
}

// Weights blends the evaluator's confidence inputs. The four fields must sum
// to 1.
type Weights struct {
	Retrieval      float64 `yaml:"retrieval"`
	Priority       float64 `yaml:"priority"`
	Classification float64 `yaml:"classification"`
	Adjustment     float64 `yaml:"adjustment"`
}

// Retrieval controls the knowledge-store query shape.
type Retrieval struct {
	TopKCount      int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	// Oversample multiplies TopK for the raw store query so thresholding
	// and keyword boosting have candidates to work with.
	Oversample int `yaml:"oversample"`
}

// Limits bounds external work per ticket.
type Limits struct {
	// MaxAttempts caps how many resolution attempts a ticket gets before
	// feedback forces escalation.
	MaxAttempts int `yaml:"max_attempts"`
	// ReasonTimeout bounds each reasoning-service call.
	ReasonTimeout time.Duration `yaml:"reason_timeout"`
	// MinSubjectLen / MinDescriptionLen drive the validator heuristic.
	MinSubjectLen     int `yaml:"min_subject_len"`
	MinDescriptionLen int `yaml:"min_description_len"`
}

// Config is the root configuration for the pipeline.
type Config struct {
	Thresholds Thresholds `yaml:"thresholds"`
	Weights    Weights    `yaml:"weights"`
	Retrieval  Retrieval  `yaml:"retrieval"`
	Limits     Limits     `yaml:"limits"`
}

// DefaultConfig returns the named baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Thresholds: Thresholds{
			KBConfidence:          DefaultKBConfidenceThreshold,
			Proceed:               DefaultProceedThreshold,
			GiveUp:                DefaultGiveUpThreshold,
			Escalation:            DefaultEscalationThreshold,
			PreArmedDelta:         DefaultPreArmedThresholdDelta,
			ReformulationFidelity: DefaultReformulationFidelity,
		},
		Weights: Weights{
			Retrieval:      DefaultRetrievalWeight,
			Priority:       DefaultPriorityWeight,
			Classification: DefaultClassificationWeight,
			Adjustment:     DefaultAdjustmentWeight,
		},
		Retrieval: Retrieval{
			TopKCount:      DefaultTopK,
			ScoreThreshold: DefaultScoreThreshold,
			Oversample:     DefaultSearchOversample,
		},
		Limits: Limits{
			MaxAttempts:       DefaultMaxAttempts,
			ReasonTimeout:     DefaultReasonTimeout,
			MinSubjectLen:     DefaultValidatorMinSubject,
			MinDescriptionLen: DefaultValidatorMinDescription,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every threshold and weight. Configuration errors are fatal
// at process start, never silently ignored.
func (c *Config) Validate() error {
	v := NewValidator()

	v.ValidateFloatRange("thresholds.kb_confidence", c.Thresholds.KBConfidence, 0, 1)
	v.ValidateFloatRange("thresholds.proceed", c.Thresholds.Proceed, 0, 1)
	v.ValidateFloatRange("thresholds.give_up", c.Thresholds.GiveUp, 0, 1)
	v.ValidateFloatRange("thresholds.escalation", c.Thresholds.Escalation, 0, 1)
	v.ValidateFloatRange("thresholds.pre_armed_delta", c.Thresholds.PreArmedDelta, 0, 0.5)
	v.ValidateFloatRange("thresholds.reformulation_fidelity", c.Thresholds.ReformulationFidelity, 0, 1)
	if c.Thresholds.GiveUp > c.Thresholds.Proceed {
		v.Add("thresholds.give_up", "give_up threshold cannot exceed proceed threshold")
	}

	v.ValidateFloatRange("weights.retrieval", c.Weights.Retrieval, 0, 1)
	v.ValidateFloatRange("weights.priority", c.Weights.Priority, 0, 1)
	v.ValidateFloatRange("weights.classification", c.Weights.Classification, 0, 1)
	v.ValidateFloatRange("weights.adjustment", c.Weights.Adjustment, 0, 1)
	sum := c.Weights.Retrieval + c.Weights.Priority + c.Weights.Classification + c.Weights.Adjustment
	if math.Abs(sum-1) > 1e-9 {
		v.Add("weights", fmt.Sprintf("weights must sum to 1, got %.4f", sum))
	}

	v.RequirePositive("retrieval.top_k", c.Retrieval.TopKCount)
	v.ValidateFloatRange("retrieval.score_threshold", c.Retrieval.ScoreThreshold, 0, 1)
	v.RequirePositive("retrieval.oversample", c.Retrieval.Oversample)

	v.RequirePositive("limits.max_attempts", c.Limits.MaxAttempts)
	if c.Limits.ReasonTimeout <= 0 {
		v.Add("limits.reason_timeout", "timeout must be positive")
	}
	v.RequirePositive("limits.min_subject_len", c.Limits.MinSubjectLen)
	v.RequirePositive("limits.min_description_len", c.Limits.MinDescriptionLen)

	return v.Error()
}
