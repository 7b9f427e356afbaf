package rp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// LaunchScope provides operations on launches within a project.
type LaunchScope struct {
	project *ProjectScope
}

// Start creates a new launch and returns its UUID.
func (l *LaunchScope) Start(ctx context.Context, rq StartLaunchRQ) (string, error) {
	u := fmt.Sprintf("%s/api/v1/%s/launch",
		l.project.client.baseURL, l.project.projectName)

	payload, err := json.Marshal(rq)
	if err != nil {
		return "", fmt.Errorf("start launch: marshal: %w", err)
	}

	var created EntryCreatedRS
	if err := l.project.client.doJSON(ctx, "POST", u, "start launch", bytes.NewReader(payload), &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// Finish closes the launch with the given UUID.
func (l *LaunchScope) Finish(ctx context.Context, launchUUID string, rq FinishExecutionRQ) error {
	u := fmt.Sprintf("%s/api/v1/%s/launch/%s/finish",
		l.project.client.baseURL, l.project.projectName, launchUUID)

	payload, err := json.Marshal(rq)
	if err != nil {
		return fmt.Errorf("finish launch: marshal: %w", err)
	}

	return l.project.client.doJSON(ctx, "PUT", u, "finish launch", bytes.NewReader(payload), nil)
}

// Get returns a single launch by its numeric ID.
func (l *LaunchScope) Get(ctx context.Context, id int) (*LaunchResource, error) {
	u := fmt.Sprintf("%s/api/v1/%s/launch/%d",
		l.project.client.baseURL, l.project.projectName, id)

	var launch LaunchResource
	if err := l.project.client.doJSON(ctx, "GET", u, "get launch", nil, &launch); err != nil {
		return nil, err
	}
	return &launch, nil
}

// GetByUUID returns a single launch by its UUID string.
func (l *LaunchScope) GetByUUID(ctx context.Context, uuid string) (*LaunchResource, error) {
	u := fmt.Sprintf("%s/api/v1/%s/launch/uuid/%s",
		l.project.client.baseURL, l.project.projectName, uuid)

	var launch LaunchResource
	if err := l.project.client.doJSON(ctx, "GET", u, "get launch by uuid", nil, &launch); err != nil {
		return nil, err
	}
	return &launch, nil
}

// ListLaunchesOption configures filter and pagination for launch listing.
type ListLaunchesOption func(params url.Values)

// List returns launches matching the given filters.
func (l *LaunchScope) List(ctx context.Context, opts ...ListLaunchesOption) (*PagedLaunches, error) {
	params := url.Values{}
	for _, opt := range opts {
		opt(params)
	}

	u := fmt.Sprintf("%s/api/v1/%s/launch?%s",
		l.project.client.baseURL, l.project.projectName, params.Encode())

	var paged PagedLaunches
	if err := l.project.client.doJSON(ctx, "GET", u, "list launches", nil, &paged); err != nil {
		return nil, err
	}
	return &paged, nil
}

// WithLaunchName filters launches by exact name.
func WithLaunchName(name string) ListLaunchesOption {
	return func(p url.Values) { p.Set("filter.eq.name", name) }
}

// WithPageSize sets the page size for listing.
func WithPageSize(size int) ListLaunchesOption {
	return func(p url.Values) { p.Set("page.size", strconv.Itoa(size)) }
}

// WithSort sets the sort order (e.g. "startTime,desc").
func WithSort(sort string) ListLaunchesOption {
	return func(p url.Values) { p.Set("page.sort", sort) }
}
