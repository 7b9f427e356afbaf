package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"rfrelay/internal/rp"
)

// linkPageSize is the item page size used when walking a launch.
const linkPageSize = 300

// Annotator resolves Report Portal deep links for a finished launch. Links
// are composed from URI parts keyed by item long name: container items
// contribute a path segment, leaf items a log-view query.
type Annotator struct {
	scope    *rp.ProjectScope
	endpoint string
	launchID int

	once     sync.Once
	uriParts map[string]string
	partsErr error
	tests    []testEntry
}

type testEntry struct {
	longName  string
	suiteName string
}

// ItemLink pairs a test's long name with its Report Portal URL.
type ItemLink struct {
	LongName string
	URL      string
}

// NewAnnotator builds an annotator over the given project scope and launch.
func NewAnnotator(client *rp.Client, project string, launchID int) *Annotator {
	return &Annotator{
		scope:    client.Project(project),
		endpoint: client.Endpoint(),
		launchID: launchID,
	}
}

// LaunchLink returns the launch's UI URL.
func (a *Annotator) LaunchLink() string {
	return fmt.Sprintf("%s/ui/#%s/launches/all/%d", a.endpoint, a.scope.Name(), a.launchID)
}

// TestLink returns the deep link for a test, addressed by the long names of
// the test and its directly containing suite. Unknown names degrade to the
// launch link rather than failing: a test that never produced a remote item
// still has a meaningful landing page.
func (a *Annotator) TestLink(ctx context.Context, suiteLongName, testLongName string) (string, error) {
	parts, err := a.parts(ctx)
	if err != nil {
		return "", err
	}
	link := a.LaunchLink()
	if suiteURI, ok := parts[suiteLongName]; ok {
		link += suiteURI
		if testURI, ok := parts[testLongName]; ok {
			link += testURI
		}
	}
	return link, nil
}

// Links returns a deep link per test in the launch, sorted by long name.
func (a *Annotator) Links(ctx context.Context) ([]ItemLink, error) {
	if _, err := a.parts(ctx); err != nil {
		return nil, err
	}
	links := make([]ItemLink, 0, len(a.tests))
	for _, test := range a.tests {
		url, err := a.TestLink(ctx, test.suiteName, test.longName)
		if err != nil {
			return nil, err
		}
		links = append(links, ItemLink{LongName: test.longName, URL: url})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].LongName < links[j].LongName })
	return links, nil
}

func (a *Annotator) parts(ctx context.Context) (map[string]string, error) {
	a.once.Do(func() {
		items, err := a.fetchSteps(ctx)
		if err != nil {
			a.partsErr = err
			return
		}
		a.uriParts = make(map[string]string)
		for _, item := range items {
			segments := pathSegments(item)
			// Deeply nested items are addressed through their top suite;
			// only direct suite/test pairs get entries of their own.
			if len(segments) != 1 || item.Parent == 0 {
				continue
			}
			suiteLongName := segmentName(segments, item.Parent)
			if suiteLongName == "" {
				continue
			}
			testLongName := suiteLongName + "." + item.Name
			if item.HasChildren {
				a.uriParts[testLongName] = "/" + strconv.Itoa(item.ID)
			} else {
				a.uriParts[testLongName] = "?log.item=" + strconv.Itoa(item.ID)
			}
			a.uriParts[suiteLongName] = "/" + strconv.Itoa(item.Parent)
			a.tests = append(a.tests, testEntry{longName: testLongName, suiteName: suiteLongName})
		}
	})
	return a.uriParts, a.partsErr
}

// fetchSteps pages through the launch's STEP items. The first page is
// fetched alone to learn the page count, the rest concurrently.
func (a *Annotator) fetchSteps(ctx context.Context) ([]rp.TestItemResource, error) {
	opts := func(page int) []rp.ListItemsOption {
		return []rp.ListItemsOption{
			rp.WithLaunchID(a.launchID),
			rp.WithItemType("STEP"),
			rp.WithItemPageSize(linkPageSize),
			rp.WithItemPageNumber(page),
		}
	}

	first, err := a.scope.Items().List(ctx, opts(1)...)
	if err != nil {
		return nil, err
	}
	if first.Page.TotalPages <= 1 {
		return first.Content, nil
	}

	pages := make([][]rp.TestItemResource, first.Page.TotalPages+1)
	pages[1] = first.Content

	g, ctx := errgroup.WithContext(ctx)
	for page := 2; page <= first.Page.TotalPages; page++ {
		page := page
		g.Go(func() error {
			resp, err := a.scope.Items().List(ctx, opts(page)...)
			if err != nil {
				return err
			}
			pages[page] = resp.Content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []rp.TestItemResource
	for _, content := range pages[1:] {
		items = append(items, content...)
	}
	return items, nil
}

func pathSegments(item rp.TestItemResource) []rp.PathSegment {
	if item.PathNames == nil {
		return nil
	}
	return item.PathNames.ItemPaths
}

func segmentName(segments []rp.PathSegment, id int) string {
	for _, seg := range segments {
		if seg.ID == id {
			return seg.Name
		}
	}
	return ""
}
