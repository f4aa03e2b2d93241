package embed

import (
	"context"
	"fmt"
)

// ResourceStatus reports whether a single resource has embeddings.
type ResourceStatus struct {
	ResourceID string `json:"resource_id"`
	Embedded   bool   `json:"embedded"`
	Chunks     int    `json:"chunks"`
}

// CategoryStatus reports per-resource embedding state for a category.
type CategoryStatus struct {
	CategoryID string           `json:"category_id"`
	Resources  []ResourceStatus `json:"resources"`
}

// GlobalStatus reports collection-wide totals.
type GlobalStatus struct {
	TotalEmbeddings   int `json:"total_embeddings"`
	EmbeddedResources int `json:"embedded_resources"`
}

// Status reports embedding state for one resource.
func (m *Manager) Status(ctx context.Context, resourceID string) (ResourceStatus, error) {
	count, err := m.store.CountByResource(ctx, resourceID)
	if err != nil {
		return ResourceStatus{}, fmt.Errorf("embed: status %s: %w", resourceID, err)
	}
	return ResourceStatus{
		ResourceID: resourceID,
		Embedded:   count > 0,
		Chunks:     count,
	}, nil
}

// StatusByCategory reports embedding state for every resource in a category,
// including resources with no embeddings yet.
func (m *Manager) StatusByCategory(ctx context.Context, categoryID string) (CategoryStatus, error) {
	resources, err := m.resources.ResourcesByCategory(ctx, categoryID)
	if err != nil {
		return CategoryStatus{}, fmt.Errorf("embed: category status %s: %w", categoryID, err)
	}

	// An empty id list would read as "no filter" downstream and scroll the
	// whole collection for nothing.
	if len(resources) == 0 {
		return CategoryStatus{CategoryID: categoryID, Resources: []ResourceStatus{}}, nil
	}

	ids := make([]string, len(resources))
	for i, r := range resources {
		ids[i] = r.ID
	}
	counts, err := m.store.EmbeddedResources(ctx, ids)
	if err != nil {
		return CategoryStatus{}, fmt.Errorf("embed: category status %s: %w", categoryID, err)
	}

	status := CategoryStatus{CategoryID: categoryID, Resources: make([]ResourceStatus, len(resources))}
	for i, r := range resources {
		status.Resources[i] = ResourceStatus{
			ResourceID: r.ID,
			Embedded:   counts[r.ID] > 0,
			Chunks:     counts[r.ID],
		}
	}
	return status, nil
}

// GlobalStatus reports total embedding count and distinct embedded resources.
func (m *Manager) GlobalStatus(ctx context.Context) (GlobalStatus, error) {
	total, err := m.store.CountAll(ctx)
	if err != nil {
		return GlobalStatus{}, fmt.Errorf("embed: global status: %w", err)
	}
	perResource, err := m.store.EmbeddedResources(ctx, nil)
	if err != nil {
		return GlobalStatus{}, fmt.Errorf("embed: global status: %w", err)
	}
	return GlobalStatus{
		TotalEmbeddings:   total,
		EmbeddedResources: len(perResource),
	}, nil
}
