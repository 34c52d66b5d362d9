// Package railz implements the Railz financial data source. Railz
// aggregates accounting, banking, and commerce data across service
// providers; one account exposes many business connections, and report
// endpoints are queried per connection and date window.
package railz

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/railstream/pkg/auth"
	"github.com/ajitpratap0/railstream/pkg/clients"
	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/base"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/errors"
	"github.com/ajitpratap0/railstream/pkg/extractor"
	jsonpool "github.com/ajitpratap0/railstream/pkg/json"
	"github.com/ajitpratap0/railstream/pkg/metrics"
	"github.com/ajitpratap0/railstream/pkg/models"
	"github.com/ajitpratap0/railstream/pkg/slicer"
	"go.uber.org/zap"
)

const (
	defaultAuthURL    = "https://auth.railz.ai/getAccess"
	defaultAPIURL     = "https://api.railz.ai"
	defaultReport     = "invoices"
	defaultWindowDays = 30
)

// RailzConfig holds the source-specific configuration extracted from the
// credentials map.
type RailzConfig struct {
	ClientID        string
	SecretKey       string
	AuthURL         string
	APIURL          string
	Report          string
	StartDate       time.Time
	SliceWindowDays int
	PageSize        int

	// Extraction settings
	FieldPath       []string
	PropagateFields []string
	PrefixKey       string
}

// RailzSource reads report records from the Railz API. It pairs the
// connection and date-window dimensions through a nested cursor so
// incremental syncs resume per connection.
type RailzSource struct {
	*base.BaseConnector

	config        *RailzConfig
	httpClient    *clients.HTTPClient
	authenticator *auth.ShortLivedTokenAuthenticator
	extractor     *extractor.NestedRecordExtractor
	cursor        *slicer.PairedSliceCursor
	availability  core.AvailabilityStrategy
	schema        *core.Schema
}

// NewRailzSource creates a new Railz source connector
func NewRailzSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return &RailzSource{
		BaseConnector: base.NewBaseConnector("railz", core.ConnectorTypeSource, "1.0.0"),
	}, nil
}

// Initialize initializes the Railz source connector
func (s *RailzSource) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize base connector")
	}

	if err := s.validateAndExtractConfig(cfg); err != nil {
		return err
	}

	s.httpClient = clients.NewHTTPClient(nil, s.GetLogger())

	authenticator, err := auth.NewShortLivedTokenAuthenticator(&auth.ShortLivedTokenConfig{
		Source:    s.Name(),
		TokenURL:  s.config.AuthURL,
		ClientID:  s.config.ClientID,
		SecretKey: s.config.SecretKey,
	}, s.httpClient, s.GetLogger())
	if err != nil {
		return err
	}
	s.authenticator = authenticator

	s.extractor, err = extractor.NewNestedRecordExtractor(s.config.FieldPath, s.config.PropagateFields, s.config.PrefixKey)
	if err != nil {
		return err
	}

	connections := NewConnectionsSliceProducer(s.config.APIURL, s.config.PageSize, s.httpClient, s.authenticator, s.GetLogger())
	windows := NewDateRangeSliceProducer(s.config.StartDate, s.config.SliceWindowDays)

	s.cursor, err = slicer.NewPairedSliceCursor(connections, windows, slicer.PairedSliceCursorConfig{}, s.GetLogger())
	if err != nil {
		return err
	}

	s.availability = base.NewHTTPAvailabilityStrategy(s.Name())
	s.SetHealthCheckFunc(s.probe)

	s.UpdateHealth(true, map[string]interface{}{
		"report":            s.config.Report,
		"start_date":        s.config.StartDate.Format(dateLayout),
		"slice_window_days": s.config.SliceWindowDays,
	})

	s.GetLogger().Info("railz source initialized",
		zap.String("report", s.config.Report),
		zap.String("start_date", s.config.StartDate.Format(dateLayout)),
		zap.Int("slice_window_days", s.config.SliceWindowDays))

	return nil
}

// validateAndExtractConfig validates and extracts Railz configuration
func (s *RailzSource) validateAndExtractConfig(cfg *config.BaseConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	properties := cfg.Security.Credentials
	if properties == nil {
		return errors.New(errors.ErrorTypeConfig, "credentials are required")
	}

	railzConfig := &RailzConfig{
		AuthURL:         defaultAuthURL,
		APIURL:          defaultAPIURL,
		Report:          defaultReport,
		SliceWindowDays: defaultWindowDays,
		FieldPath:       []string{"reports"},
	}

	if clientID, ok := properties["client_id"]; ok && clientID != "" {
		railzConfig.ClientID = clientID
	} else {
		return errors.New(errors.ErrorTypeConfig, "client_id is required")
	}

	if secretKey, ok := properties["secret_key"]; ok && secretKey != "" {
		railzConfig.SecretKey = secretKey
	} else {
		return errors.New(errors.ErrorTypeConfig, "secret_key is required")
	}

	if authURL, ok := properties["auth_url"]; ok && authURL != "" {
		railzConfig.AuthURL = authURL
	}
	if apiURL, ok := properties["api_url"]; ok && apiURL != "" {
		railzConfig.APIURL = strings.TrimSuffix(apiURL, "/")
	}
	if report, ok := properties["report"]; ok && report != "" {
		railzConfig.Report = report
	}

	if startDate, ok := properties["start_date"]; ok && startDate != "" {
		parsed, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "start_date must be formatted as YYYY-MM-DD")
		}
		railzConfig.StartDate = parsed
	} else {
		railzConfig.StartDate = time.Now().UTC().AddDate(-1, 0, 0).Truncate(24 * time.Hour)
	}

	if windowDays, ok := properties["slice_window_days"]; ok && windowDays != "" {
		parsed, err := strconv.Atoi(windowDays)
		if err != nil || parsed <= 0 {
			return errors.New(errors.ErrorTypeConfig, "slice_window_days must be a positive integer")
		}
		railzConfig.SliceWindowDays = parsed
	}

	if fieldPath, ok := properties["field_path"]; ok && fieldPath != "" {
		railzConfig.FieldPath = splitAndTrim(fieldPath)
	}
	if propagate, ok := properties["propagate_fields"]; ok && propagate != "" {
		railzConfig.PropagateFields = splitAndTrim(propagate)
	}
	if prefixKey, ok := properties["prefix_key"]; ok {
		railzConfig.PrefixKey = prefixKey
	}

	railzConfig.PageSize = cfg.Performance.BatchSize
	if railzConfig.PageSize <= 0 {
		railzConfig.PageSize = 100
	}

	s.config = railzConfig
	return nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Discover returns the schema of the configured report stream
func (s *RailzSource) Discover(ctx context.Context) (*core.Schema, error) {
	if s.schema != nil {
		return s.schema, nil
	}

	s.schema = &core.Schema{
		Name:        s.config.Report,
		Description: fmt.Sprintf("Railz %s report records", s.config.Report),
		Fields: []core.Field{
			{Name: "businessName", Type: core.FieldTypeString, Description: "Business the record belongs to"},
			{Name: "serviceName", Type: core.FieldTypeString, Description: "Service provider the record came from"},
			{Name: "postedDate", Type: core.FieldTypeDate, Description: "Cursor field for incremental sync", Nullable: true},
		},
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	return s.schema, nil
}

// Read implements streaming read driven by the paired slice cursor
func (s *RailzSource) Read(ctx context.Context) (*core.RecordStream, error) {
	recordsChan := make(chan *models.Record, s.config.PageSize)
	errorsChan := make(chan error, 10)

	stream := &core.RecordStream{
		Records: recordsChan,
		Errors:  errorsChan,
	}

	go func() {
		defer close(recordsChan)
		defer close(errorsChan)

		if err := s.readRecords(ctx, recordsChan); err != nil {
			errorsChan <- err
		}
	}()

	return stream, nil
}

// ReadBatch implements batch reading on top of the record stream
func (s *RailzSource) ReadBatch(ctx context.Context, batchSize int) (*core.BatchStream, error) {
	if batchSize <= 0 {
		batchSize = s.config.PageSize
	}

	batchesChan := make(chan []*models.Record, 10)
	errorsChan := make(chan error, 10)

	stream := &core.BatchStream{
		Batches: batchesChan,
		Errors:  errorsChan,
	}

	go func() {
		defer close(batchesChan)
		defer close(errorsChan)

		recordsChan := make(chan *models.Record, batchSize)
		readErr := make(chan error, 1)

		go func() {
			defer close(recordsChan)
			if err := s.readRecords(ctx, recordsChan); err != nil {
				readErr <- err
			}
			close(readErr)
		}()

		batch := make([]*models.Record, 0, batchSize)
		for record := range recordsChan {
			batch = append(batch, record)
			if len(batch) >= batchSize {
				select {
				case batchesChan <- batch:
					batch = make([]*models.Record, 0, batchSize)
				case <-ctx.Done():
					errorsChan <- ctx.Err()
					return
				}
			}
		}

		if len(batch) > 0 {
			select {
			case batchesChan <- batch:
			case <-ctx.Done():
				errorsChan <- ctx.Err()
				return
			}
		}

		if err, ok := <-readErr; ok && err != nil {
			errorsChan <- err
		}
	}()

	return stream, nil
}

// readRecords walks every slice of the paired cursor and streams the
// extracted report records. The cursor is advanced per record so a
// checkpoint taken at any point resumes without data loss.
func (s *RailzSource) readRecords(ctx context.Context, recordsChan chan<- *models.Record) error {
	// Cancel the slice stream on any early return so its producer
	// goroutines are not left blocked on an unbuffered send.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sliceStream, err := s.cursor.StreamSlices(ctx, core.SyncModeIncremental, s.GetState())
	if err != nil {
		return err
	}

	for slice := range sliceStream.Slices {
		if err := s.readSlice(ctx, slice, recordsChan); err != nil {
			return err
		}

		metrics.SlicesProcessed.WithLabelValues(s.Name(), s.config.Report).Inc()

		// Keep the base state in sync with the cursor for checkpointing.
		if err := s.SetState(s.cursor.GetStreamState()); err != nil {
			return err
		}
	}

	for err := range sliceStream.Errors {
		if err != nil {
			return err
		}
	}

	return nil
}

// readSlice pages through the report endpoint for one slice
func (s *RailzSource) readSlice(ctx context.Context, slice core.StreamSlice, recordsChan chan<- *models.Record) error {
	offset := 0

	for {
		if err := s.RateLimit(ctx); err != nil {
			return err
		}

		var page *reportPage
		err := s.ExecuteWithRetry(ctx, func() error {
			var fetchErr error
			page, fetchErr = s.fetchReportPage(ctx, slice, offset)
			return fetchErr
		})
		if err != nil {
			metrics.RecordsExtracted.WithLabelValues(s.Name(), s.config.Report, "error").Inc()
			return err
		}

		flat, err := s.extractor.Extract(page.document)
		if err != nil {
			metrics.RecordsExtracted.WithLabelValues(s.Name(), s.config.Report, "error").Inc()
			return err
		}

		for _, data := range flat {
			if err := s.cursor.UpdateCursor(slice, data); err != nil {
				return err
			}

			record := models.NewRecord(s.Name(), data)
			record.Metadata.Stream = s.config.Report

			select {
			case recordsChan <- record:
				metrics.RecordsExtracted.WithLabelValues(s.Name(), s.config.Report, "success").Inc()
			case <-ctx.Done():
				record.Release()
				return ctx.Err()
			}
		}

		if page.pagination == nil || offset+page.count >= page.pagination.TotalCount || page.count == 0 {
			return nil
		}
		offset += page.count
	}
}

type reportPage struct {
	document   map[string]interface{}
	pagination *paginationInfo
	count      int
}

func (s *RailzSource) fetchReportPage(ctx context.Context, slice core.StreamSlice, offset int) (*reportPage, error) {
	endpoint := buildReportURL(s.config.APIURL, s.config.Report, slice, offset, s.config.PageSize)

	reauthed := false
	var resp *http.Response
	for {
		header, err := s.authenticator.AuthHeader(ctx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err = s.httpClient.Get(ctx, endpoint, map[string]string{"Authorization": header})
		metrics.RequestLatency.WithLabelValues(s.Name(), s.config.Report).Observe(time.Since(start).Seconds())

		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "report request failed")
		}

		if resp.StatusCode == http.StatusUnauthorized && !reauthed {
			// The session token can be revoked before its expected expiry.
			// Mint a fresh token and repeat the request once before failing.
			reauthed = true
			s.authenticator.Invalidate()
			_ = resp.Body.Close()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, classifyStatus(clients.NewStatusError(resp), "report request")
		}
		break
	}

	defer func() { _ = resp.Body.Close() }()

	var document map[string]interface{}
	decoder := jsonpool.GetDecoder(resp.Body)
	defer jsonpool.PutDecoder(decoder)
	if err := decoder.Decode(&document); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode report response")
	}

	page := &reportPage{document: document}

	if raw, ok := document["pagination"].(map[string]interface{}); ok {
		page.pagination = &paginationInfo{}
		if total, ok := raw["totalCount"].(float64); ok {
			page.pagination.TotalCount = int(total)
		}
	}
	if data, ok := document[s.config.FieldPath[0]].([]interface{}); ok {
		page.count = len(data)
	}

	return page, nil
}

// probe issues the cheapest request that exercises auth and API access.
func (s *RailzSource) probe(ctx context.Context) error {
	header, err := s.authenticator.AuthHeader(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/connections?offset=0&limit=1", s.config.APIURL)
	resp, err := s.httpClient.Get(ctx, endpoint, map[string]string{"Authorization": header})
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return clients.NewStatusError(resp)
	}
	_ = resp.Body.Close()

	return nil
}

// CheckAvailability reports whether the API is reachable with the
// configured credentials, with an operator-readable reason when it is not.
func (s *RailzSource) CheckAvailability(ctx context.Context) (bool, string) {
	return s.availability.Check(ctx, s.GetLogger(), s.probe)
}

// GetState returns the slicer cursor state
func (s *RailzSource) GetState() core.State {
	if s.cursor != nil {
		return s.cursor.GetStreamState()
	}
	return s.BaseConnector.GetState()
}

// SetState seeds the slicer cursor from persisted state
func (s *RailzSource) SetState(state core.State) error {
	if s.cursor != nil {
		if err := s.cursor.UpdateCursor(core.StreamSlice(state), nil); err != nil {
			return err
		}
	}
	return s.BaseConnector.SetState(state)
}

// SupportsIncremental returns true; the paired cursor resumes per
// connection and service.
func (s *RailzSource) SupportsIncremental() bool {
	return true
}

// SupportsBatch returns true
func (s *RailzSource) SupportsBatch() bool {
	return true
}

// Health checks availability in addition to the base health status
func (s *RailzSource) Health(ctx context.Context) error {
	if err := s.BaseConnector.Health(ctx); err != nil {
		return err
	}

	if available, reason := s.CheckAvailability(ctx); !available {
		return errors.New(errors.ErrorTypeHealth, reason)
	}

	return nil
}

// Metrics returns connector metrics including HTTP client statistics
func (s *RailzSource) Metrics() map[string]interface{} {
	m := s.BaseConnector.Metrics()

	if s.httpClient != nil {
		stats := s.httpClient.GetStats()
		m["http_total_requests"] = stats.TotalRequests
		m["http_failed_requests"] = stats.FailedRequests
		m["http_success_rate"] = stats.SuccessRate
	}

	return m
}

// Close shuts down the connector and releases HTTP resources
func (s *RailzSource) Close(ctx context.Context) error {
	if s.httpClient != nil {
		if err := s.httpClient.Close(); err != nil {
			s.GetLogger().Error("failed to close HTTP client", zap.Error(err))
		}
	}
	return s.BaseConnector.Close(ctx)
}
