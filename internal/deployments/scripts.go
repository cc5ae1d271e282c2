package deployments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/VectorBits/fundlab/internal/logger"
)

// Script is one tagged deploy step.
type Script struct {
	Name string
	Tags []string
	// Skip, when set and true, leaves the script out on this environment.
	Skip func(env *Env) bool
	Run  func(ctx context.Context, env *Env) error
}

func (s Script) matches(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range s.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// RunScripts runs, in name order, every script carrying one of tags. No
// tags selects every script. The first failure aborts the run.
func (e *Env) RunScripts(ctx context.Context, tags ...string) error {
	ran := 0
	for _, s := range e.scripts {
		if !s.matches(tags) {
			continue
		}
		if s.Skip != nil && s.Skip(e) {
			e.log.Debug().Str("script", s.Name).Msg("Skipping script")
			continue
		}
		e.log.Debug().Str("script", s.Name).Msg("Running script")
		if err := s.Run(ctx, e); err != nil {
			return fmt.Errorf("script %s: %w", s.Name, err)
		}
		ran++
	}
	if ran == 0 && len(tags) > 0 {
		e.log.Warn().Strs("tags", tags).Msg("No deploy script matched")
	}
	return nil
}

// Fixture runs the scripts for tags once per environment; later calls with
// the same tag set return immediately.
func (e *Env) Fixture(ctx context.Context, tags ...string) error {
	key := fixtureKey(tags)

	e.mu.Lock()
	done := e.fixtures[key]
	e.mu.Unlock()
	if done {
		e.log.Debug().Str("fixture", key).Msg("Fixture already applied")
		return nil
	}

	if err := e.RunScripts(ctx, tags...); err != nil {
		return err
	}
	e.mu.Lock()
	e.fixtures[key] = true
	e.mu.Unlock()
	e.log.Debug().Str(logger.FieldNetwork, e.Network.Name).Str("fixture", key).Msg("Fixture applied")
	return nil
}

func fixtureKey(tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
