package privacy

import (
	"errors"
	"fmt"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/logger"
	"go.uber.org/zap"
)

// Anonymizer rewrites chat exports so that person names become USER_<n>
// aliases and phone numbers and emails become redaction tokens. It holds no
// per-call state and is safe for concurrent use.
type Anonymizer struct {
	passes []Pass
	logger *logger.Logger
}

// Option customizes an Anonymizer.
type Option func(*options)

type options struct {
	isName NamePredicate
	passes []Pass
}

// WithNamePredicate replaces the default name heuristic used by the
// sender passes. Ignored when WithPasses is given.
func WithNamePredicate(p NamePredicate) Option {
	return func(o *options) { o.isName = p }
}

// WithPasses replaces the whole pipeline.
func WithPasses(passes ...Pass) Option {
	return func(o *options) { o.passes = passes }
}

// New creates an anonymizer. A nil logger discards output.
func New(cfg config.PrivacyConfig, log *logger.Logger, opts ...Option) (*Anonymizer, error) {
	if log == nil {
		log = logger.NewNop()
	}

	o := options{isName: IsProbablePersonName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.isName == nil {
		return nil, errors.New("name predicate is nil")
	}

	passes := o.passes
	if passes == nil {
		passes = DefaultPasses(o.isName, cfg.WholeWordSweep)
	}
	for i, p := range passes {
		if p == nil {
			return nil, fmt.Errorf("pass %d is nil", i)
		}
	}

	a := &Anonymizer{passes: passes, logger: log.WithComponent("privacy")}

	a.logger.Debug("Anonymizer initialized",
		zap.Strings("passes", a.Passes()),
		zap.Bool("whole_word_sweep", cfg.WholeWordSweep),
	)

	return a, nil
}

// Passes returns pass names in execution order.
func (a *Anonymizer) Passes() []string {
	names := make([]string, len(a.passes))
	for i, p := range a.passes {
		names[i] = p.Name()
	}
	return names
}

// Anonymize runs every pass over text with a fresh registry.
func (a *Anonymizer) Anonymize(text string) Result {
	reg := NewRegistry()
	size := len(text)

	for _, p := range a.passes {
		text = p.Apply(text, reg)
	}

	findings := reg.Findings()
	if len(findings) > 0 {
		// Counts only: names and matched values must never reach the logs.
		a.logger.Debug("Chat anonymized",
			logger.Bytes("input_size", int64(size)),
			zap.Int("participants", reg.Len()),
			zap.Int("phones", reg.Redactions(EntityPhone)),
			zap.Int("emails", reg.Redactions(EntityEmail)),
		)
	}

	return Result{
		Anonymized: text,
		Mapping:    reg.Mapping(),
		Findings:   findings,
	}
}

var defaultAnonymizer = &Anonymizer{
	passes: DefaultPasses(IsProbablePersonName, false),
	logger: logger.NewNop(),
}

// Anonymize runs the default pipeline.
func Anonymize(text string) Result {
	return defaultAnonymizer.Anonymize(text)
}
