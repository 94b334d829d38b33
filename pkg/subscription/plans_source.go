package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PlansSource defines how plan definitions are loaded.
type PlansSource interface {
	Load(ctx context.Context) ([]Plan, error)
}

type yamlPlans struct {
	Plans []yamlPlan `yaml:"plans"`
}

type yamlPlan struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	ProviderPriceID string `yaml:"provider_price_id"`
	MaxNotes        *int64 `yaml:"max_notes"`
	PriceUSD        string `yaml:"price_usd"`
}

// ParsePlansYAML decodes a plan catalog document and validates every plan.
// Prices are decimal strings; an omitted max_notes means unlimited.
func ParsePlansYAML(data []byte) ([]Plan, error) {
	var doc yamlPlans
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	plans := make([]Plan, 0, len(doc.Plans))
	for _, p := range doc.Plans {
		price := decimal.Zero
		if p.PriceUSD != "" {
			var err error
			price, err = decimal.NewFromString(p.PriceUSD)
			if err != nil {
				return nil, errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has invalid price %q: %w", p.ID, p.PriceUSD, err))
			}
		}
		plans = append(plans, Plan{
			ID:              p.ID,
			Name:            p.Name,
			ProviderPriceID: p.ProviderPriceID,
			MaxNotes:        p.MaxNotes,
			PriceUSD:        price,
		})
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	SortPlans(plans)
	return plans, nil
}

// YAMLPlanSource loads the plan catalog from a YAML file.
type YAMLPlanSource struct {
	path string
}

// NewYAMLPlanSource returns a source reading plans from path.
func NewYAMLPlanSource(path string) *YAMLPlanSource {
	return &YAMLPlanSource{path: path}
}

func (s *YAMLPlanSource) Load(ctx context.Context) ([]Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return ParsePlansYAML(data)
}

// SyncPlans loads plans from src and writes them to dst.
func SyncPlans(ctx context.Context, src PlansSource, dst PlanWriter) ([]Plan, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := dst.UpsertPlans(ctx, plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// SortPlans orders plans by price, then by ID for stable output.
func SortPlans(plans []Plan) {
	slices.SortStableFunc(plans, func(a, b Plan) int {
		if c := a.PriceUSD.Cmp(b.PriceUSD); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
