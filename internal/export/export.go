// Package export flattens the menu document into one parquet row per item.
package export

import (
	"fmt"
	"strings"

	"github.com/chrisdamba/menumanager/internal/cloudwriter"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// ItemRow is one item together with the names and positions of its ancestors.
type ItemRow struct {
	Restaurant      string  `parquet:"name=restaurant, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RestaurantIndex int32   `parquet:"name=restaurant_index, type=INT32"`
	Menu            string  `parquet:"name=menu, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MenuIndex       int32   `parquet:"name=menu_index, type=INT32"`
	Category        string  `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CategoryIndex   int32   `parquet:"name=category_index, type=INT32"`
	ItemID          string  `parquet:"name=item_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ItemIndex       int32   `parquet:"name=item_index, type=INT32"`
	Name            string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price           float64 `parquet:"name=price, type=DOUBLE"`
	RewardEligible  bool    `parquet:"name=reward_eligible, type=BOOLEAN"`
	// Dietary holds the tags joined by commas.
	Dietary string `parquet:"name=dietary, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Rows flattens doc in document order.
func Rows(doc *models.Document) []ItemRow {
	var rows []ItemRow
	for ri, r := range doc.Restaurants {
		for mi, m := range r.Menus {
			for ci, c := range m.Categories {
				for ii, it := range c.Items {
					rows = append(rows, ItemRow{
						Restaurant:      r.Name,
						RestaurantIndex: int32(ri),
						Menu:            m.Name,
						MenuIndex:       int32(mi),
						Category:        c.Name,
						CategoryIndex:   int32(ci),
						ItemID:          it.ID,
						ItemIndex:       int32(ii),
						Name:            it.Name,
						Price:           float64(it.Price.Round()),
						RewardEligible:  it.RewardEligible,
						Dietary:         strings.Join(it.Dietary, ","),
					})
				}
			}
		}
	}
	return rows
}

type Exporter struct {
	cloudWriterFactory cloudwriter.CloudWriterFactory
	bucket             string
	// progress, if set, is called after each row is written
	progress func()
}

type Option func(*Exporter)

// WithCloud sends the file to bucket through factory instead of the local disk.
func WithCloud(factory cloudwriter.CloudWriterFactory, bucket string) Option {
	return func(e *Exporter) {
		e.cloudWriterFactory = factory
		e.bucket = bucket
	}
}

func WithProgress(fn func()) Option {
	return func(e *Exporter) { e.progress = fn }
}

func New(opts ...Option) *Exporter {
	e := &Exporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes every item of doc to path and returns the row count.
func (e *Exporter) Export(doc *models.Document, path string) (int, error) {
	fw, err := e.createFile(path)
	if err != nil {
		return 0, err
	}

	pw, err := writer.NewParquetWriter(fw, new(ItemRow), 4)
	if err != nil {
		fw.Close()
		return 0, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := Rows(doc)
	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			fw.Close()
			return 0, fmt.Errorf("failed to write item %s: %w", rows[i].ItemID, err)
		}
		if e.progress != nil {
			e.progress()
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return 0, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return len(rows), nil
}

func (e *Exporter) createFile(path string) (source.ParquetFile, error) {
	if e.cloudWriterFactory != nil {
		cw, err := e.cloudWriterFactory.NewWriter(e.bucket, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return NewCloudParquetFile(cw), nil
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file writer: %w", err)
	}
	return fw, nil
}
