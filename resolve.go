package ccfeatures

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Resolve probes the alternatives of c strictly in order and selects the
// first one the prober accepts. Later alternatives are never probed once an
// earlier one succeeds.
//
// A timed-out probe counts as a failed alternative. Any other probe error
// stops resolution and is returned.
func Resolve(ctx context.Context, p Prober, c Check) (Resolution, error) {
	return resolve(ctx, p, c, zap.NewNop().Sugar())
}

func resolve(ctx context.Context, p Prober, c Check, logger *zap.SugaredLogger) (Resolution, error) {
	res := Resolution{
		Check:        c.Name,
		Kind:         c.Kind,
		Required:     c.Required,
		Selected:     -1,
		alternatives: c.Alternatives,
	}

	for i, alt := range c.Alternatives {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		result := p.Probe(ctx, c.Kind, alt)
		res.Attempts = append(res.Attempts, Attempt{Alternative: alt.Name, Result: result})
		logger.Debugw("probe",
			"check", c.Name,
			"alternative", alt.Name,
			"supported", result.Supported,
			"elapsed", result.Elapsed,
			"error", result.Error,
		)
		if result.Output != "" && !result.Supported {
			logger.Debugw("probe output", "check", c.Name, "alternative", alt.Name, "output", result.Output)
		}

		if result.Error != nil {
			if errors.Is(result.Error, ErrProbeTimeout) {
				logger.Warnw("probe timed out", "check", c.Name, "alternative", alt.Name)
				continue
			}
			return res, fmt.Errorf("probe %s (%s): %w", c.Name, alt.Name, result.Error)
		}
		if result.Supported {
			res.Selected = i
			return res, nil
		}
	}

	return res, nil
}
