package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery sales table is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

type Params struct {
	GCP    config.GCPConfig
	Config config.BigQueryConfig
	// SalesSchema, when set, is used to create the sales table if it does
	// not exist yet. The table is partitioned by day on PartitionField.
	SalesSchema    bigquery.Schema
	PartitionField string
	Logger         *logger.Logger
}

// Client streams rows into the configured sales table.
type Client struct {
	client     *bigquery.Client
	dataset    *bigquery.Dataset
	salesTable string
}

// NewClient connects, checks the dataset and makes sure the sales table exists.
func NewClient(ctx context.Context, p Params) (*Client, error) {
	projectID := strings.TrimSpace(p.GCP.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(p.Config.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	salesTable := strings.TrimSpace(p.Config.SalesTable)
	if salesTable == "" {
		return nil, errTableNameRequired
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, clientOptions(p.GCP)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bqClient, dataset: bqClient.Dataset(datasetID), salesTable: salesTable}

	created, err := c.ensureSalesTable(ctx, p.SalesSchema, p.PartitionField)
	if err != nil {
		_ = bqClient.Close()
		return nil, err
	}
	if p.Logger != nil {
		p.Logger.Info(p.Logger.WithFields(ctx, map[string]any{
			"dataset":       datasetID,
			"sales_table":   salesTable,
			"table_created": created,
		}), "bigquery client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return nil
}

func (c *Client) ensureSalesTable(ctx context.Context, schema bigquery.Schema, partitionField string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return false, fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return false, fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	table := c.dataset.Table(c.salesTable)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
		return false, nil
	case !isNotFound(err):
		return false, fmt.Errorf("checking table %q: %w", c.salesTable, err)
	case len(schema) == 0:
		return false, fmt.Errorf("table %q does not exist", c.salesTable)
	}

	meta := &bigquery.TableMetadata{Schema: schema}
	if partitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: partitionField}
	}
	if err := table.Create(ctx, meta); err != nil {
		return false, fmt.Errorf("creating table %q: %w", c.salesTable, err)
	}
	return true, nil
}

// Ping checks the dataset and sales table are still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	_, err := c.ensureSalesTable(ctx, nil, "")
	return err
}

func (c *Client) SalesTable() string {
	if c == nil {
		return ""
	}
	return c.salesTable
}

// InsertRows streams rows into table. Rows are structs with bigquery tags or ValueSavers.
func (c *Client) InsertRows(ctx context.Context, table string, rows any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if err := c.dataset.Table(table).Inserter().Put(ctx, rows); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) && len(multi) > 0 {
			return fmt.Errorf("insert into %s: %d rows rejected: %w", table, len(multi), multi[0].Errors)
		}
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
