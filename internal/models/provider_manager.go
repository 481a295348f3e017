package models

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"github.com/varsilias/whait/internal/llm"
)

type modelLister interface {
	Models(ctx context.Context) ([]llm.Model, error)
}

// ProviderManager lists the models the completion provider exposes.
type ProviderManager struct{ c modelLister }

func NewProviderManager(c modelLister) *ProviderManager { return &ProviderManager{c: c} }

func (m *ProviderManager) List(ctx context.Context) ([]string, error) {
	items, err := m.c.Models(ctx)
	if err != nil {
		return nil, err
	}
	out := lo.Map(items, func(it llm.Model, _ int) string { return it.ID })
	slices.Sort(out)
	return out, nil
}

func (m *ProviderManager) Healthy(ctx context.Context, model string) error {
	items, err := m.List(ctx)
	if err != nil {
		return err
	}
	if _, ok := slices.BinarySearch(items, model); ok {
		return nil
	}
	return ErrUnknownModel
}
