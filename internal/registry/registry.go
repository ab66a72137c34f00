package registry

import (
	"fmt"

	"github.com/jgivc/mirrord/internal/config"
	"github.com/jgivc/mirrord/internal/entity"
)

// Registry is the process-lifetime list of configured mirrors. It is built
// once at startup and never mutated afterwards, so concurrent reads need no
// synchronization.
type Registry struct {
	mirrors map[string]*entity.Mirror
	order   []string
}

func New(cfgs []config.MirrorConfig) (*Registry, error) {
	if len(cfgs) < 1 {
		return nil, fmt.Errorf("no mirrors configured")
	}

	reg := &Registry{
		mirrors: make(map[string]*entity.Mirror, len(cfgs)),
		order:   make([]string, 0, len(cfgs)),
	}

	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("mirror name must not be empty")
		}

		if _, exists := reg.mirrors[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate mirror name: %s", cfg.Name)
		}

		reg.mirrors[cfg.Name] = &entity.Mirror{
			Name:     cfg.Name,
			Source:   cfg.Source,
			Schedule: cfg.Sync,
			Serve:    cfg.Serve,
		}
		reg.order = append(reg.order, cfg.Name)
	}

	return reg, nil
}

func (r *Registry) Get(name string) (*entity.Mirror, bool) {
	mirror, exists := r.mirrors[name]

	return mirror, exists
}

// All returns the mirrors in configuration order.
func (r *Registry) All() []*entity.Mirror {
	mirrors := make([]*entity.Mirror, 0, len(r.order))
	for _, name := range r.order {
		mirrors = append(mirrors, r.mirrors[name])
	}

	return mirrors
}

func (r *Registry) Len() int {
	return len(r.order)
}
