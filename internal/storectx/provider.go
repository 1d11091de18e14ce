// Package storectx assembles a read-only snapshot of one tenant's store
// (catalog, opening hours, training corpus) for prompt construction.
package storectx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nexshop/storebot/internal/store"
)

// Snapshot is everything the generation prompt knows about a store.
type Snapshot struct {
	Tenant   *store.Tenant
	Catalog  []store.CatalogItem
	Hours    []store.BusinessHours
	Training []store.TrainingExample
}

// Reader is the subset of the persistence layer the provider needs.
type Reader interface {
	GetTenant(tenantID string) (*store.Tenant, error)
	ListCatalogItems(tenantID string) ([]store.CatalogItem, error)
	ListBusinessHours(tenantID string) ([]store.BusinessHours, error)
	ListTrainingExamples(tenantID string) ([]store.TrainingExample, error)
}

type Provider struct {
	reader Reader
}

func NewProvider(reader Reader) *Provider {
	return &Provider{reader: reader}
}

// Load assembles the snapshot. A missing tenant row is tolerated; the
// other reads are required.
func (p *Provider) Load(tenantID string) (*Snapshot, error) {
	snap := &Snapshot{}

	tenant, err := p.reader.GetTenant(tenantID)
	if err == nil {
		snap.Tenant = tenant
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	if snap.Catalog, err = p.reader.ListCatalogItems(tenantID); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if snap.Hours, err = p.reader.ListBusinessHours(tenantID); err != nil {
		return nil, fmt.Errorf("load business hours: %w", err)
	}
	if snap.Training, err = p.reader.ListTrainingExamples(tenantID); err != nil {
		return nil, fmt.Errorf("load training corpus: %w", err)
	}
	return snap, nil
}

// Render flattens the snapshot into the plain-text context block handed to
// the generation capability.
func (s *Snapshot) Render() string {
	var sb strings.Builder

	if s.Tenant != nil && s.Tenant.Name != "" {
		fmt.Fprintf(&sb, "Store: %s\n", s.Tenant.Name)
	}

	if len(s.Catalog) > 0 {
		sb.WriteString("\nCatalog:\n")
		for _, item := range s.Catalog {
			status := ""
			if !item.Available {
				status = " (unavailable)"
			}
			fmt.Fprintf(&sb, "- %s: %s, $%.2f%s\n",
				item.Name, item.Description, float64(item.PriceCents)/100, status)
		}
	}

	if len(s.Hours) > 0 {
		sb.WriteString("\nOpening hours:\n")
		for _, h := range s.Hours {
			fmt.Fprintf(&sb, "- %s: %s-%s\n", h.Weekday, h.OpenTime, h.CloseTime)
		}
	}

	if len(s.Training) > 0 {
		sb.WriteString("\nKnown question topics:\n")
		for _, ex := range s.Training {
			if len(ex.Examples) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "- %s: e.g. %q\n", ex.Intent, ex.Examples[0])
		}
	}

	return sb.String()
}
