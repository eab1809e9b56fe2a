package driver

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// bigqueryDriver wraps the native BigQuery client. Unlike the SQL engines it
// is keyed by project id and a service-account key file rather than
// host/port credentials.
type bigqueryDriver struct {
	projectID   string
	keyFilename string
	client      *bigquery.Client
}

func newBigQueryDriver(params ConnectionParams) (Driver, error) {
	if params.ProjectID == "" || params.KeyFilename == "" {
		return nil, fmt.Errorf("bigquery connection requires projectId and keyFilename")
	}
	return &bigqueryDriver{
		projectID:   params.ProjectID,
		keyFilename: params.KeyFilename,
	}, nil
}

func (d *bigqueryDriver) Kind() Kind {
	return KindBigQuery
}

func (d *bigqueryDriver) Connect(ctx context.Context) error {
	client, err := bigquery.NewClient(ctx, d.projectID, option.WithCredentialsFile(d.keyFilename))
	if err != nil {
		return fmt.Errorf("failed to create bigquery client: %w", err)
	}
	d.client = client
	return nil
}

func (d *bigqueryDriver) TestConnection(ctx context.Context) error {
	_, err := d.Query(ctx, "SELECT 1")
	return err
}

func (d *bigqueryDriver) Query(ctx context.Context, sql string) (*Rows, error) {
	if d.client == nil {
		return nil, fmt.Errorf("bigquery driver is not connected")
	}

	it, err := d.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery query failed: %w", err)
	}

	result := &Rows{Values: [][]interface{}{}}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if result.Columns == nil {
			for _, field := range it.Schema {
				result.Columns = append(result.Columns, field.Name)
			}
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		result.Values = append(result.Values, values)
	}
	return result, nil
}

func (d *bigqueryDriver) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}
