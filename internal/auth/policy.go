package auth

import (
	"fmt"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
)

// EditPolicy rejects pages that are frozen.
type EditPolicy struct {
	frozen map[model.PageKey]struct{}
}

func NewEditPolicy(frozen []string) *EditPolicy {
	p := &EditPolicy{frozen: make(map[model.PageKey]struct{}, len(frozen))}
	for _, key := range frozen {
		p.frozen[model.PageKey(key)] = struct{}{}
	}
	return p
}

func (p *EditPolicy) IsEditable(key model.PageKey) bool {
	if p == nil {
		return true
	}
	_, frozen := p.frozen[key]
	return !frozen
}

// Check returns domain.ErrForbidden for a frozen page.
func (p *EditPolicy) Check(key model.PageKey) error {
	if !p.IsEditable(key) {
		return fmt.Errorf("page %q is frozen: %w", key, domain.ErrForbidden)
	}
	return nil
}
