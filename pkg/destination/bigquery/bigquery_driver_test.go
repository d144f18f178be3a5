package bigquery

import (
	"context"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

// fakeAPI records calls so tests can assert that validation failures never
// reach the network.
type fakeAPI struct {
	metadata      *bigquery.TableMetadata
	metadataErr   error
	metadataCalls int

	insertErr   error
	insertCalls int
	lastRows    []map[string]bigquery.Value

	queries  []string
	queryErr error
}

func (f *fakeAPI) TableMetadata(_ context.Context, _, _ string) (*bigquery.TableMetadata, error) {
	f.metadataCalls++
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return f.metadata, nil
}

func (f *fakeAPI) Insert(_ context.Context, _, _ string, rows []map[string]bigquery.Value) error {
	f.insertCalls++
	f.lastRows = rows
	return f.insertErr
}

func (f *fakeAPI) RunQuery(_ context.Context, query string) error {
	f.queries = append(f.queries, query)
	return f.queryErr
}

func newTestDriver(t *testing.T, api serviceAPI) *Driver {
	t.Helper()
	d, err := NewDriver(&config.DestinationConfig{Name: "warehouse", Type: "bigquery", ProjectID: "proj"})
	require.NoError(t, err)
	driver := d.(*Driver)
	driver.projectID = "proj"
	driver.api = api
	return driver
}

func usersSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "id", Type: bigquery.IntegerFieldType},
		{Name: "name", Type: bigquery.StringFieldType},
		{Name: "active", Type: bigquery.BooleanFieldType},
	}
}

func TestActionsOnDisconnectedDriver(t *testing.T) {
	d, err := NewDriver(&config.DestinationConfig{Name: "warehouse", Type: "bigquery"})
	require.NoError(t, err)
	driver := d.(*Driver)

	actions := driver.Actions()
	for name, fn := range actions {
		_, err := fn(context.Background(), core.Payload{"dataset": "ds", "table": "t"})
		require.Error(t, err, name)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotConnected), name)
	}

	_, err = driver.TestConnection(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotConnected))
}

func TestConnectMalformedCredentials(t *testing.T) {
	d, err := NewDriver(&config.DestinationConfig{
		Name:            "warehouse",
		Type:            "bigquery",
		ProjectID:       "proj",
		CredentialsJSON: "{not json",
	})
	require.NoError(t, err)

	err = d.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestConnectOverridePrecedence(t *testing.T) {
	d, err := NewDriver(&config.DestinationConfig{Name: "warehouse", Type: "bigquery", ProjectID: "proj"})
	require.NoError(t, err)
	driver := d.(*Driver)

	// Override carries a malformed credential, which must win over the
	// (absent) bound value and fail the parse step.
	err = driver.Connect(context.Background(), &config.DestinationConfig{CredentialsJSON: "###"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestTestConnectionReportsQueryFailure(t *testing.T) {
	api := &fakeAPI{queryErr: errors.New(errors.ErrorTypeQuery, "denied")}
	driver := newTestDriver(t, api)

	result, err := driver.TestConnection(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "denied")
}

func TestTestConnectionSuccess(t *testing.T) {
	api := &fakeAPI{}
	driver := newTestDriver(t, api)

	result, err := driver.TestConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, api.queries, 1)
	assert.Contains(t, api.queries[0], "bigquery-public-data.samples.shakespeare")
}

func TestUpdateRequiresFilters(t *testing.T) {
	api := &fakeAPI{metadata: &bigquery.TableMetadata{Schema: usersSchema()}}
	driver := newTestDriver(t, api)

	for _, filters := range []interface{}{nil, "", "   "} {
		payload := core.Payload{"dataset": "ds", "table": "users", "set": map[string]interface{}{"name": "x"}}
		if filters != nil {
			payload["filters"] = filters
		}

		_, err := driver.updateData(context.Background(), payload)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	}

	// fails before any network call
	assert.Zero(t, api.metadataCalls)
	assert.Empty(t, api.queries)
}

func TestUpdateUnknownColumn(t *testing.T) {
	api := &fakeAPI{metadata: &bigquery.TableMetadata{Schema: usersSchema()}}
	driver := newTestDriver(t, api)

	_, err := driver.updateData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"filters": "id = 1",
		"set":     map[string]interface{}{"nickname": "x"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Contains(t, err.Error(), "nickname")
	// schema fetched, but no statement issued
	assert.Equal(t, 1, api.metadataCalls)
	assert.Empty(t, api.queries)
}

func TestUpdateWithColumnMapping(t *testing.T) {
	api := &fakeAPI{metadata: &bigquery.TableMetadata{Schema: usersSchema()}}
	driver := newTestDriver(t, api)

	result, err := driver.updateData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"filters": "id = 1",
		"set": map[string]interface{}{
			"active": false,
			"name":   "alpha",
		},
	})
	require.NoError(t, err)

	want := "UPDATE `proj.ds.users` SET name=\"alpha\", active=false WHERE id = 1"
	assert.Equal(t, want, result.(*QueryResult).Statement)
	assert.Equal(t, []string{want}, api.queries)
}

func TestUpdateWithRawStringSet(t *testing.T) {
	api := &fakeAPI{metadata: &bigquery.TableMetadata{Schema: usersSchema()}}
	driver := newTestDriver(t, api)

	result, err := driver.updateData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"filters": "id = 1",
		"set":     "name = UPPER(name)",
	})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `proj.ds.users` SET name = UPPER(name) WHERE id = 1", result.(*QueryResult).Statement)
}

func TestUpdateWithAssignmentList(t *testing.T) {
	api := &fakeAPI{metadata: &bigquery.TableMetadata{Schema: usersSchema()}}
	driver := newTestDriver(t, api)

	result, err := driver.updateData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"filters": "id = 1",
		"set":     []interface{}{`name="a"`, "active=true"},
	})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `proj.ds.users` SET name=\"a\", active=true WHERE id = 1", result.(*QueryResult).Statement)
}

func TestUpdateSchemaFetchedFreshEveryCall(t *testing.T) {
	api := &fakeAPI{metadata: &bigquery.TableMetadata{Schema: usersSchema()}}
	driver := newTestDriver(t, api)

	payload := core.Payload{
		"dataset": "ds",
		"table":   "users",
		"filters": "id = 1",
		"set":     map[string]interface{}{"name": "x"},
	}
	for i := 0; i < 3; i++ {
		_, err := driver.updateData(context.Background(), payload)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, api.metadataCalls)
}

func TestDeleteRequiresFilters(t *testing.T) {
	api := &fakeAPI{}
	driver := newTestDriver(t, api)

	_, err := driver.deleteData(context.Background(), core.Payload{"dataset": "ds", "table": "users"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Empty(t, api.queries)
}

func TestDeleteBuildsStatement(t *testing.T) {
	api := &fakeAPI{}
	driver := newTestDriver(t, api)

	result, err := driver.deleteData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"filters": "active = false",
	})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `proj.ds.users` WHERE active = false", result.(*QueryResult).Statement)
}

func TestInsertMissingTableReturnsNil(t *testing.T) {
	api := &fakeAPI{metadataErr: &googleapi.Error{Code: 404, Message: "notFound"}}
	driver := newTestDriver(t, api)

	result, err := driver.insertData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"data":    map[string]interface{}{"id": 1},
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Zero(t, api.insertCalls)
}

func TestInsertRejectionReturnsNil(t *testing.T) {
	api := &fakeAPI{
		metadata:  &bigquery.TableMetadata{Schema: usersSchema()},
		insertErr: errors.New(errors.ErrorTypeData, "no such field: ghost"),
	}
	driver := newTestDriver(t, api)

	result, err := driver.insertData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"data":    map[string]interface{}{"ghost": true},
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, api.insertCalls)
}

func TestInsertSuccess(t *testing.T) {
	api := &fakeAPI{metadata: &bigquery.TableMetadata{Schema: usersSchema()}}
	driver := newTestDriver(t, api)

	result, err := driver.insertData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"data": []interface{}{
			map[string]interface{}{"id": 1, "name": "a"},
			map[string]interface{}{"id": 2, "name": "b"},
		},
	})
	require.NoError(t, err)

	insert := result.(*InsertResult)
	assert.Equal(t, 2, insert.Rows)
	assert.Len(t, api.lastRows, 2)
}

func TestInsertMetadataErrorPropagates(t *testing.T) {
	api := &fakeAPI{metadataErr: &googleapi.Error{Code: 403, Message: "forbidden"}}
	driver := newTestDriver(t, api)

	_, err := driver.insertData(context.Background(), core.Payload{
		"dataset": "ds",
		"table":   "users",
		"data":    map[string]interface{}{"id": 1},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
}

func TestDisconnectDropsHandle(t *testing.T) {
	driver := newTestDriver(t, &fakeAPI{})

	require.NoError(t, driver.Disconnect(context.Background()))

	_, err := driver.deleteData(context.Background(), core.Payload{
		"dataset": "ds", "table": "users", "filters": "id = 1",
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotConnected))
}
