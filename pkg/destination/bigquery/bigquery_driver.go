// Package bigquery implements the warehouse destination driver. It wraps the
// BigQuery client behind the connect/disconnect/test/action lifecycle and
// builds schema-directed DML for update and delete operations.
package bigquery

import (
	"context"
	goerrors "errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	json "github.com/goccy/go-json"
	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/base"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// sampleQuery is the fixed probe issued by TestConnection. It touches a
// public dataset so it works with any readable credential.
const sampleQuery = "SELECT word FROM `bigquery-public-data.samples.shakespeare` LIMIT 1"

// Driver is the BigQuery destination driver. One instance owns at most one
// client handle: Connect creates it, Disconnect drops it, and a re-entrant
// Connect overwrites it without closing (the vendor SDK manages its own
// socket lifecycle).
type Driver struct {
	*base.BaseDriver

	projectID string
	client    *bigquery.Client
	api       serviceAPI
	encoder   ValueEncoder
}

// serviceAPI is the narrow surface the driver needs from BigQuery. Actions
// go through it rather than the client directly so the DML path is testable
// without the live service.
type serviceAPI interface {
	TableMetadata(ctx context.Context, dataset, table string) (*bigquery.TableMetadata, error)
	Insert(ctx context.Context, dataset, table string, rows []map[string]bigquery.Value) error
	RunQuery(ctx context.Context, query string) error
}

// NewDriver creates a BigQuery driver bound to a static configuration.
func NewDriver(cfg *config.DestinationConfig) (core.Driver, error) {
	return &Driver{
		BaseDriver: base.NewBaseDriver("bigquery", core.DestinationTypeWarehouse, "1.0.0", cfg),
		encoder:    LiteralEncoder{},
	}, nil
}

// Connect parses the JSON service-account credential (override-first) and
// opens a client bound to the configured project id. A malformed credential
// fails synchronously; there are no retries.
func (d *Driver) Connect(ctx context.Context, override *config.DestinationConfig) error {
	cfg := d.EffectiveConfig(override)

	if cfg.ProjectID == "" {
		return errors.New(errors.ErrorTypeConfig, "project_id is required")
	}
	if cfg.CredentialsJSON == "" {
		return errors.New(errors.ErrorTypeConfig, "credentials_json is required")
	}

	var creds map[string]interface{}
	if err := json.Unmarshal([]byte(cfg.CredentialsJSON), &creds); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse service account credentials")
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create BigQuery client")
	}

	d.projectID = cfg.ProjectID
	d.client = client
	d.api = &clientAPI{client: client}

	d.GetLogger().Info("connected", zap.String("project", d.projectID))
	return nil
}

// Disconnect drops the client reference.
func (d *Driver) Disconnect(_ context.Context) error {
	d.client = nil
	d.api = nil
	return nil
}

// TestConnection issues the fixed sample query. A query-level failure is
// reported in the result, never as an error; only a missing connection
// errors out.
func (d *Driver) TestConnection(ctx context.Context) (*core.TestResult, error) {
	if d.api == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "BigQuery connection is not established")
	}

	if err := d.api.RunQuery(ctx, sampleQuery); err != nil {
		return &core.TestResult{Success: false, Message: err.Error()}, nil
	}
	return &core.TestResult{Success: true, Message: "connection established"}, nil
}

// Actions returns the driver's dispatch table.
func (d *Driver) Actions() map[string]core.ActionFunc {
	return map[string]core.ActionFunc{
		"insert": d.insertData,
		"update": d.updateData,
		"delete": d.deleteData,
	}
}

// InsertResult reports how many rows were handed to the streaming inserter.
type InsertResult struct {
	Dataset string `json:"dataset"`
	Table   string `json:"table"`
	Rows    int    `json:"rows"`
}

// QueryResult carries the DML statement an update or delete executed.
type QueryResult struct {
	Statement string `json:"statement"`
}

// insertData streams rows into an existing table. A missing table or a
// rejected insert is recovered into a nil result plus a log line; the rows
// are then the caller's dead-letter responsibility.
func (d *Driver) insertData(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.api == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "BigQuery connection is not established")
	}

	dataset, err := payload.String("dataset")
	if err != nil {
		return nil, err
	}
	table, err := payload.String("table")
	if err != nil {
		return nil, err
	}
	rows, err := payloadRows(payload)
	if err != nil {
		return nil, err
	}

	if _, err := d.api.TableMetadata(ctx, dataset, table); err != nil {
		if isNotFound(err) {
			d.GetLogger().Warn("table not found, data not delivered",
				zap.String("dataset", dataset),
				zap.String("table", table))
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to fetch table metadata")
	}

	if err := d.api.Insert(ctx, dataset, table, rows); err != nil {
		d.GetLogger().Warn("insert rejected, data not delivered",
			zap.String("dataset", dataset),
			zap.String("table", table),
			zap.Int("rows", len(rows)),
			zap.Error(err))
		return nil, nil
	}

	return &InsertResult{Dataset: dataset, Table: table, Rows: len(rows)}, nil
}

// updateData builds and runs an UPDATE statement. Filters are mandatory, and
// the SET clause is validated against the table's current remote schema,
// fetched fresh on every call.
func (d *Driver) updateData(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.api == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "BigQuery connection is not established")
	}

	dataset, err := payload.String("dataset")
	if err != nil {
		return nil, err
	}
	table, err := payload.String("table")
	if err != nil {
		return nil, err
	}
	filters := payload.OptionalString("filters")
	if strings.TrimSpace(filters) == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "filters are required for update operations")
	}
	set, ok := payload["set"]
	if !ok {
		return nil, errors.New(errors.ErrorTypeValidation, `payload field "set" is required`)
	}

	metadata, err := d.api.TableMetadata(ctx, dataset, table)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to fetch table schema")
	}

	assignments, err := d.buildSetClause(set, metadata.Schema)
	if err != nil {
		return nil, err
	}

	statement := fmt.Sprintf("UPDATE %s SET %s WHERE %s", d.tableRef(dataset, table), assignments, filters)
	if err := d.api.RunQuery(ctx, statement); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "update failed")
	}

	d.GetLogger().Info("update executed",
		zap.String("dataset", dataset),
		zap.String("table", table))
	return &QueryResult{Statement: statement}, nil
}

// deleteData builds and runs a DELETE statement. Filters are mandatory for
// the same reason they are on update: an unscoped statement would touch the
// whole table.
func (d *Driver) deleteData(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.api == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "BigQuery connection is not established")
	}

	dataset, err := payload.String("dataset")
	if err != nil {
		return nil, err
	}
	table, err := payload.String("table")
	if err != nil {
		return nil, err
	}
	filters := payload.OptionalString("filters")
	if strings.TrimSpace(filters) == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "filters are required for delete operations")
	}

	statement := fmt.Sprintf("DELETE FROM %s WHERE %s", d.tableRef(dataset, table), filters)
	if err := d.api.RunQuery(ctx, statement); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "delete failed")
	}

	d.GetLogger().Info("delete executed",
		zap.String("dataset", dataset),
		zap.String("table", table))
	return &QueryResult{Statement: statement}, nil
}

// buildSetClause renders the SET clause from one of the three accepted
// shapes: a raw string used verbatim, a list of pre-formatted assignments,
// or a column-to-value mapping validated against the fetched schema.
func (d *Driver) buildSetClause(set interface{}, schema bigquery.Schema) (string, error) {
	switch v := set.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", errors.New(errors.ErrorTypeValidation, "set clause cannot be empty")
		}
		return v, nil

	case []string:
		if len(v) == 0 {
			return "", errors.New(errors.ErrorTypeValidation, "set clause cannot be empty")
		}
		return strings.Join(v, ", "), nil

	case []interface{}:
		if len(v) == 0 {
			return "", errors.New(errors.ErrorTypeValidation, "set clause cannot be empty")
		}
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return "", errors.New(errors.ErrorTypeValidation, "set assignments must be strings")
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil

	case map[string]interface{}:
		if len(v) == 0 {
			return "", errors.New(errors.ErrorTypeValidation, "set clause cannot be empty")
		}
		byName := make(map[string]*bigquery.FieldSchema, len(schema))
		for _, field := range schema {
			byName[field.Name] = field
		}
		for column := range v {
			if _, ok := byName[column]; !ok {
				return "", errors.Newf(errors.ErrorTypeSchema,
					"column %q is not part of the table schema, schema-altering updates are not allowed", column)
			}
		}
		// Render in declared schema order so the statement is deterministic.
		parts := make([]string, 0, len(v))
		for _, field := range schema {
			value, ok := v[field.Name]
			if !ok {
				continue
			}
			rendered, err := d.encoder.Encode(value, field)
			if err != nil {
				return "", err
			}
			parts = append(parts, field.Name+"="+rendered)
		}
		return strings.Join(parts, ", "), nil

	default:
		return "", errors.New(errors.ErrorTypeValidation,
			"set must be a string, an array of assignments, or a column-to-value mapping")
	}
}

func (d *Driver) tableRef(dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.projectID, dataset, table)
}

// payloadRows normalizes the "data" payload field into a row slice. A single
// object is treated as one row.
func payloadRows(payload core.Payload) ([]map[string]bigquery.Value, error) {
	raw, ok := payload["data"]
	if !ok {
		return nil, errors.New(errors.ErrorTypeValidation, `payload field "data" is required`)
	}

	toRow := func(item interface{}) (map[string]bigquery.Value, error) {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrorTypeValidation, "data rows must be objects")
		}
		row := make(map[string]bigquery.Value, len(m))
		for k, v := range m {
			row[k] = v
		}
		return row, nil
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		row, err := toRow(v)
		if err != nil {
			return nil, err
		}
		return []map[string]bigquery.Value{row}, nil
	case []interface{}:
		if len(v) == 0 {
			return nil, errors.New(errors.ErrorTypeValidation, "data cannot be empty")
		}
		rows := make([]map[string]bigquery.Value, 0, len(v))
		for _, item := range v {
			row, err := toRow(item)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	default:
		return nil, errors.New(errors.ErrorTypeValidation, "data must be an object or an array of objects")
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if goerrors.As(err, &apiErr) {
		return apiErr.Code == 404
	}
	return false
}

// clientAPI is the live implementation of serviceAPI on top of the vendor
// client.
type clientAPI struct {
	client *bigquery.Client
}

func (a *clientAPI) TableMetadata(ctx context.Context, dataset, table string) (*bigquery.TableMetadata, error) {
	return a.client.Dataset(dataset).Table(table).Metadata(ctx)
}

func (a *clientAPI) Insert(ctx context.Context, dataset, table string, rows []map[string]bigquery.Value) error {
	savers := make([]*rowSaver, 0, len(rows))
	for _, row := range rows {
		savers = append(savers, &rowSaver{row: row})
	}
	return a.client.Dataset(dataset).Table(table).Inserter().Put(ctx, savers)
}

func (a *clientAPI) RunQuery(ctx context.Context, query string) error {
	job, err := a.client.Query(query).Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// rowSaver adapts a plain row map to the inserter's ValueSaver interface.
type rowSaver struct {
	row map[string]bigquery.Value
}

func (s *rowSaver) Save() (map[string]bigquery.Value, string, error) {
	return s.row, "", nil
}
