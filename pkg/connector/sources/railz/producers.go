package railz

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ajitpratap0/railstream/pkg/auth"
	"github.com/ajitpratap0/railstream/pkg/clients"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/errors"
	jsonpool "github.com/ajitpratap0/railstream/pkg/json"
	"github.com/ajitpratap0/railstream/pkg/slicer"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ConnectionsSliceProducer enumerates the business connections visible to
// the account, one slice per connection. Each slice carries the connection
// fields plus the slice key sub-mapping the paired cursor is keyed by.
type ConnectionsSliceProducer struct {
	apiURL        string
	pageSize      int
	httpClient    *clients.HTTPClient
	authenticator *auth.ShortLivedTokenAuthenticator
	logger        *zap.Logger
}

// NewConnectionsSliceProducer creates a producer that pages through the
// connections endpoint.
func NewConnectionsSliceProducer(apiURL string, pageSize int, httpClient *clients.HTTPClient, authenticator *auth.ShortLivedTokenAuthenticator, logger *zap.Logger) *ConnectionsSliceProducer {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &ConnectionsSliceProducer{
		apiURL:        apiURL,
		pageSize:      pageSize,
		httpClient:    httpClient,
		authenticator: authenticator,
		logger:        logger.With(zap.String("component", "connections_producer")),
	}
}

type connectionsPage struct {
	Data       []map[string]interface{} `json:"data"`
	Pagination *paginationInfo          `json:"pagination,omitempty"`
}

type paginationInfo struct {
	TotalCount int `json:"totalCount"`
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
}

// StreamSlices lazily yields one slice per connection, in API order.
func (p *ConnectionsSliceProducer) StreamSlices(ctx context.Context, mode core.SyncMode, state core.State) (*core.SliceStream, error) {
	slices := make(chan core.StreamSlice)
	errs := make(chan error, 1)

	go func() {
		defer close(slices)
		defer close(errs)

		offset := 0
		for {
			page, err := p.fetchPage(ctx, offset)
			if err != nil {
				errs <- err
				return
			}

			for _, connection := range page.Data {
				slice, err := connectionToSlice(connection)
				if err != nil {
					errs <- err
					return
				}

				select {
				case slices <- slice:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if page.Pagination == nil || offset+len(page.Data) >= page.Pagination.TotalCount || len(page.Data) == 0 {
				return
			}
			offset += len(page.Data)
		}
	}()

	return &core.SliceStream{Slices: slices, Errors: errs}, nil
}

func (p *ConnectionsSliceProducer) fetchPage(ctx context.Context, offset int) (*connectionsPage, error) {
	header, err := p.authenticator.AuthHeader(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/connections?offset=%d&limit=%d", p.apiURL, offset, p.pageSize)
	resp, err := p.httpClient.Get(ctx, endpoint, map[string]string{"Authorization": header})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "connections request failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(clients.NewStatusError(resp), "connections request")
	}

	defer func() { _ = resp.Body.Close() }()

	var page connectionsPage
	decoder := jsonpool.GetDecoder(resp.Body)
	defer jsonpool.PutDecoder(decoder)
	if err := decoder.Decode(&page); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode connections response")
	}

	return &page, nil
}

// connectionToSlice turns a connection object into a slice carrying the
// cursor key sub-mapping.
func connectionToSlice(connection map[string]interface{}) (core.StreamSlice, error) {
	business, ok := connection[slicer.DefaultOuterKeyField].(string)
	if !ok || business == "" {
		return nil, errors.New(errors.ErrorTypeMalformedSlice,
			fmt.Sprintf("connection is missing the %q field", slicer.DefaultOuterKeyField))
	}

	service, ok := connection[slicer.DefaultInnerKeyField].(string)
	if !ok || service == "" {
		return nil, errors.New(errors.ErrorTypeMalformedSlice,
			fmt.Sprintf("connection is missing the %q field", slicer.DefaultInnerKeyField))
	}

	slice := make(core.StreamSlice, len(connection)+1)
	for k, v := range connection {
		slice[k] = v
	}
	slice[slicer.DefaultSliceKeyField] = map[string]interface{}{
		slicer.DefaultOuterKeyField: business,
		slicer.DefaultInnerKeyField: service,
	}

	return slice, nil
}

// DateRangeSliceProducer yields consecutive date windows from a start date
// up to the current day. In incremental mode the window sequence resumes
// from the state's cursor value instead of the configured start.
type DateRangeSliceProducer struct {
	startDate   time.Time
	windowDays  int
	cursorField string

	// now is swappable for tests.
	now func() time.Time
}

// NewDateRangeSliceProducer creates a date window producer.
func NewDateRangeSliceProducer(startDate time.Time, windowDays int) *DateRangeSliceProducer {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &DateRangeSliceProducer{
		startDate:   startDate,
		windowDays:  windowDays,
		cursorField: slicer.DefaultCursorField,
		now:         time.Now,
	}
}

// StreamSlices yields {startDate, endDate} windows in chronological order.
// Windows never extend past today; a start date in the future yields
// nothing.
func (p *DateRangeSliceProducer) StreamSlices(ctx context.Context, mode core.SyncMode, state core.State) (*core.SliceStream, error) {
	start := p.startDate
	if mode == core.SyncModeIncremental {
		if cursor, ok := state[p.cursorField].(string); ok && cursor != "" {
			if resumed, err := time.Parse(dateLayout, cursor[:min(len(cursor), len(dateLayout))]); err == nil && resumed.After(start) {
				start = resumed
			}
		}
	}

	today := p.now().UTC().Truncate(24 * time.Hour)

	slices := make(chan core.StreamSlice)
	errs := make(chan error, 1)

	go func() {
		defer close(slices)
		defer close(errs)

		for windowStart := start; !windowStart.After(today); {
			windowEnd := windowStart.AddDate(0, 0, p.windowDays-1)
			if windowEnd.After(today) {
				windowEnd = today
			}

			slice := core.StreamSlice{
				"startDate": windowStart.Format(dateLayout),
				"endDate":   windowEnd.Format(dateLayout),
			}

			select {
			case slices <- slice:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}

			windowStart = windowEnd.AddDate(0, 0, 1)
		}
	}()

	return &core.SliceStream{Slices: slices, Errors: errs}, nil
}

// classifyStatus maps an HTTP failure status to the error taxonomy so the
// retry policy only retries what can plausibly succeed on a second attempt.
func classifyStatus(statusErr *clients.StatusError, operation string) error {
	switch {
	case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
		return errors.Wrap(statusErr, errors.ErrorTypeAuthentication,
			fmt.Sprintf("%s was rejected by the API", operation))
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return errors.Wrap(statusErr, errors.ErrorTypeRateLimit,
			fmt.Sprintf("%s hit the API rate limit", operation))
	case statusErr.StatusCode >= 500:
		return errors.Wrap(statusErr, errors.ErrorTypeConnection,
			fmt.Sprintf("%s failed with status %d", operation, statusErr.StatusCode))
	default:
		return errors.Wrap(statusErr, errors.ErrorTypeData,
			fmt.Sprintf("%s failed with status %d", operation, statusErr.StatusCode))
	}
}

// buildReportURL assembles a report request URL for one slice page.
func buildReportURL(apiURL, report string, slice core.StreamSlice, offset, limit int) string {
	params := url.Values{}
	for _, key := range []string{"businessName", "serviceName", "startDate", "endDate"} {
		if v, ok := slice[key].(string); ok && v != "" {
			params.Set(key, v)
		}
	}
	params.Set("offset", fmt.Sprintf("%d", offset))
	params.Set("limit", fmt.Sprintf("%d", limit))

	return fmt.Sprintf("%s/reports/%s?%s", apiURL, report, params.Encode())
}
