// Package elasticsearch implements the search destination driver on top of
// the official Elasticsearch client.
package elasticsearch

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	json "github.com/goccy/go-json"
	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/base"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/errors"
	"go.uber.org/zap"
)

// Driver is the Elasticsearch destination driver.
type Driver struct {
	*base.BaseDriver

	client *elasticsearch.Client
}

// NewDriver creates an Elasticsearch driver bound to a static configuration.
func NewDriver(cfg *config.DestinationConfig) (core.Driver, error) {
	return &Driver{
		BaseDriver: base.NewBaseDriver("elasticsearch", core.DestinationTypeSearch, "1.0.0", cfg),
	}, nil
}

// Connect builds a client from the cluster addresses and either basic auth
// or an API key, with an optional CA bundle.
func (d *Driver) Connect(_ context.Context, override *config.DestinationConfig) error {
	cfg := d.EffectiveConfig(override)

	if len(cfg.Addresses) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one cluster address is required")
	}

	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	}

	if cfg.CABundlePath != "" {
		pem, err := os.ReadFile(cfg.CABundlePath) //nolint:gosec // G304: path comes from operator config
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read CA bundle")
		}
		esCfg.CACert = pem
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Elasticsearch client")
	}

	d.client = client
	d.GetLogger().Info("connected", zap.Strings("addresses", cfg.Addresses))
	return nil
}

// Disconnect drops the client reference.
func (d *Driver) Disconnect(_ context.Context) error {
	d.client = nil
	return nil
}

// TestConnection probes the cluster info endpoint. Cluster-level failures
// are reported in the result, not raised.
func (d *Driver) TestConnection(ctx context.Context) (*core.TestResult, error) {
	if d.client == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Elasticsearch connection is not established")
	}

	res, err := d.client.Info(d.client.Info.WithContext(ctx))
	if err != nil {
		return &core.TestResult{Success: false, Message: err.Error()}, nil
	}
	defer res.Body.Close()

	if res.IsError() {
		return &core.TestResult{Success: false, Message: res.Status()}, nil
	}
	return &core.TestResult{Success: true, Message: "connection established"}, nil
}

// Actions returns the driver's dispatch table.
func (d *Driver) Actions() map[string]core.ActionFunc {
	return map[string]core.ActionFunc{
		"index":  d.indexDocument,
		"update": d.updateDocument,
		"delete": d.deleteDocument,
		"bulk":   d.bulkOperations,
		"search": d.search,
	}
}

func (d *Driver) indexDocument(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.client == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Elasticsearch connection is not established")
	}

	index, err := payload.String("index")
	if err != nil {
		return nil, err
	}
	document, err := payload.Map("document")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(document)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize document")
	}

	opts := []func(*esapi.IndexRequest){
		d.client.Index.WithContext(ctx),
		d.client.Index.WithRefresh("true"),
	}
	if id := payload.OptionalString("id"); id != "" {
		opts = append(opts, d.client.Index.WithDocumentID(id))
	}

	res, err := d.client.Index(index, bytes.NewReader(body), opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "index request failed")
	}
	return decodeResponse(res)
}

func (d *Driver) updateDocument(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.client == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Elasticsearch connection is not established")
	}

	index, err := payload.String("index")
	if err != nil {
		return nil, err
	}
	id, err := payload.String("id")
	if err != nil {
		return nil, err
	}
	document, err := payload.Map("document")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{"doc": document})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize partial document")
	}

	res, err := d.client.Update(index, id, bytes.NewReader(body),
		d.client.Update.WithContext(ctx),
		d.client.Update.WithRefresh("true"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "update request failed")
	}
	return decodeResponse(res)
}

func (d *Driver) deleteDocument(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.client == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Elasticsearch connection is not established")
	}

	index, err := payload.String("index")
	if err != nil {
		return nil, err
	}
	id, err := payload.String("id")
	if err != nil {
		return nil, err
	}

	res, err := d.client.Delete(index, id,
		d.client.Delete.WithContext(ctx),
		d.client.Delete.WithRefresh("true"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "delete request failed")
	}
	return decodeResponse(res)
}

// bulkOperations executes a batch of index/update/delete operations. The
// response carries per-item outcomes; a failed item never fails the batch.
func (d *Driver) bulkOperations(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.client == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Elasticsearch connection is not established")
	}

	operations, err := payload.Slice("operations")
	if err != nil {
		return nil, err
	}
	if len(operations) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "operations cannot be empty")
	}

	var buf bytes.Buffer
	for _, raw := range operations {
		op, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrorTypeValidation, "operations must be objects")
		}

		action, _ := op["action"].(string)
		index, _ := op["index"].(string)
		id, _ := op["id"].(string)
		if index == "" {
			return nil, errors.New(errors.ErrorTypeValidation, `bulk operation field "index" is required`)
		}

		meta := map[string]interface{}{"_index": index}
		if id != "" {
			meta["_id"] = id
		}

		switch action {
		case "index", "create", "update", "delete":
		default:
			return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported bulk action %q", action)
		}

		line, err := json.Marshal(map[string]interface{}{action: meta})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize bulk action")
		}
		buf.Write(line)
		buf.WriteByte('\n')

		if action == "delete" {
			continue
		}

		document, ok := op["document"].(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "bulk %s operation requires a document", action)
		}
		if action == "update" {
			document = map[string]interface{}{"doc": document}
		}
		line, err = json.Marshal(document)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize bulk document")
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	res, err := d.client.Bulk(bytes.NewReader(buf.Bytes()),
		d.client.Bulk.WithContext(ctx),
		d.client.Bulk.WithRefresh("true"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "bulk request failed")
	}
	return decodeResponse(res)
}

func (d *Driver) search(ctx context.Context, payload core.Payload) (interface{}, error) {
	if d.client == nil {
		return nil, errors.New(errors.ErrorTypeNotConnected, "Elasticsearch connection is not established")
	}

	index, err := payload.String("index")
	if err != nil {
		return nil, err
	}
	query, err := payload.String("query")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"query_string": map[string]interface{}{
				"query": query,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize search query")
	}

	res, err := d.client.Search(
		d.client.Search.WithContext(ctx),
		d.client.Search.WithIndex(index),
		d.client.Search.WithBody(bytes.NewReader(body)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "search request failed")
	}
	return decodeResponse(res)
}

// decodeResponse turns an API response into a generic document, raising
// request-level errors (4xx/5xx).
func decodeResponse(res *esapi.Response) (map[string]interface{}, error) {
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, errors.Newf(errors.ErrorTypeQuery,
			"search destination returned %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode response")
	}
	return decoded, nil
}
