package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/epochscript/internal/domain"
)

// S3Loader is a concrete IDataLoader (spec §6) reading one CSV blob per
// asset from an S3 bucket: "<prefix><asset id>.csv" with header
// "timestamp,open,high,low,close,volume" and UTC-nanosecond timestamps.
// Raw bar ingestion format/credentials are external/opaque per spec §1; this
// is one concrete instance of that external collaborator.
type S3Loader struct {
	Bucket   string
	Prefix   string
	Region   string
	Assets   []domain.Asset
	Category DataCategory
	// WorkerLimit caps concurrent per-asset downloads; 0 means unbounded.
	WorkerLimit int

	mu     sync.RWMutex
	tables []AssetTable
}

// NewS3Loader builds a loader for the declared assets, downloading from
// bucket/prefix in region.
func NewS3Loader(bucket, prefix, region string, assets []domain.Asset, category DataCategory) *S3Loader {
	return &S3Loader{Bucket: bucket, Prefix: prefix, Region: region, Assets: assets, Category: category}
}

// LoadData downloads and parses every declared asset's CSV blob, the
// blocking call spec §6/§5 describe ("External data loader is a blocking
// call. It may execute on a worker pool internally...").
func (l *S3Loader) LoadData() error {
	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(l.Region))
	if err != nil {
		return fmt.Errorf("s3loader: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	downloader := manager.NewDownloader(client)

	results := make([]AssetTable, len(l.Assets))
	g, gctx := errgroup.WithContext(ctx)
	if l.WorkerLimit > 0 {
		g.SetLimit(l.WorkerLimit)
	}

	for i, asset := range l.Assets {
		i, asset := i, asset
		g.Go(func() error {
			table, err := l.downloadOne(gctx, downloader, asset)
			if err != nil {
				return fmt.Errorf("s3loader: asset %s: %w", asset.Id, err)
			}
			results[i] = AssetTable{Asset: asset, Table: table}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	l.mu.Lock()
	l.tables = results
	l.mu.Unlock()
	return nil
}

func (l *S3Loader) downloadOne(ctx context.Context, downloader *manager.Downloader, asset domain.Asset) (*domain.Table, error) {
	key := l.Prefix + asset.Id + ".csv"
	buf := manager.NewWriteAtBuffer(nil)
	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: &l.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", l.Bucket, key, err)
	}
	return parseBarCSV(strings.NewReader(string(buf.Bytes())))
}

// parseBarCSV parses a header+rows CSV of "timestamp,open,high,low,close,volume"
// into a Table. Timestamps must be UTC nanoseconds and strictly increasing
// (spec §3 "Raw bar data"); this is an input invariant, not re-verified here
// (spec §5 "this is an input invariant and is not re-verified globally").
func parseBarCSV(r io.Reader) (*domain.Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}
	tsIdx, ok := colIdx["timestamp"]
	if !ok {
		return nil, fmt.Errorf("missing required \"timestamp\" column")
	}

	var timestamps []int64
	numeric := make(map[string][]float64)
	kinds := map[string]domain.ColumnKind{
		"open": domain.ColumnKindOpen, "high": domain.ColumnKindHigh, "low": domain.ColumnKindLow,
		"close": domain.ColumnKindClose, "volume": domain.ColumnKindVolume,
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		ts, err := strconv.ParseInt(row[tsIdx], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", row[tsIdx], err)
		}
		timestamps = append(timestamps, ts)

		for name, idx := range colIdx {
			if name == "timestamp" || idx >= len(row) {
				continue
			}
			v, err := strconv.ParseFloat(row[idx], 64)
			if err != nil {
				continue
			}
			numeric[name] = append(numeric[name], v)
		}
	}

	table := domain.NewTable(timestamps)
	names := make([]string, 0, len(numeric))
	for name := range numeric {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kind, ok := kinds[name]
		if !ok {
			kind = domain.ColumnKindOther
		}
		table.AddColumn(&domain.Column{Name: name, Kind: kind, Numbers: numeric[name]})
	}
	return table, nil
}

// GetStoredData implements IDataLoader.
func (l *S3Loader) GetStoredData() []AssetTable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tables
}

// GetDataCategory implements IDataLoader.
func (l *S3Loader) GetDataCategory() DataCategory { return l.Category }

// GetAssets implements IDataLoader.
func (l *S3Loader) GetAssets() []domain.Asset { return l.Assets }

// GetBenchmark implements IDataLoader; S3Loader carries no benchmark series.
func (l *S3Loader) GetBenchmark() (*domain.Table, bool) { return nil, false }
