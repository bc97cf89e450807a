// Command datagen generates synthetic oncology datasets offline: a cohort
// snapshot plus the flattened CSV tables, with optional epidemiology and
// market tables, written to a local directory or an S3 bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/epi"
	"github.com/onco-rwe-platform/internal/export"
	"github.com/onco-rwe-platform/internal/market"
	"github.com/onco-rwe-platform/internal/simulate"
	"github.com/onco-rwe-platform/internal/snapshot"
)

func main() {
	var (
		seed       = flag.Int64("seed", 0, "random seed (0 uses current time)")
		patients   = flag.Int("patients", 600, "number of patients to generate")
		outDir     = flag.String("out", "exports", "output directory for CSV artifacts")
		dbDSN      = flag.String("db", "", "optional snapshot store: SQLite path or postgres:// URL")
		s3Bucket   = flag.String("s3-bucket", "", "optional S3 bucket; overrides -out")
		s3Prefix   = flag.String("s3-prefix", "onco-rwe", "S3 key prefix")
		s3Region   = flag.String("s3-region", "us-east-1", "S3 region")
		withEpi    = flag.Bool("epi", false, "also emit the epidemiology table")
		withMarket = flag.Bool("market", false, "also emit the competitor sales table")
		epiStart   = flag.Int("epi-start", 2014, "epidemiology start year")
		epiEnd     = flag.Int("epi-end", 2021, "epidemiology end year")
		startMonth = flag.String("market-start", "2014-01", "sales window start (YYYY-MM)")
		endMonth   = flag.String("market-end", "2024-06", "sales window end (YYYY-MM)")
		logLevel   = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := logrus.New()
	if parsed, err := logrus.ParseLevel(strings.ToLower(*logLevel)); err == nil {
		logger.SetLevel(parsed)
	}

	if *patients < 1 {
		fmt.Fprintln(os.Stderr, "patients must be at least 1")
		os.Exit(2)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	ctx := context.Background()

	sink, err := buildSink(ctx, *outDir, *s3Bucket, *s3Prefix, *s3Region)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build export sink")
	}
	exporter := export.NewExporter(sink, logger)

	gen := simulate.New(*seed, logger)
	cohort := gen.GenerateCohort(*patients)

	if *dbDSN != "" {
		store, err := snapshot.Open(*dbDSN)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open snapshot store")
		}
		defer store.Close()

		if err := store.Save(ctx, &cohort); err != nil {
			logger.WithError(err).Fatal("Failed to save cohort snapshot")
		}
		logger.WithFields(logrus.Fields{
			"run_id": cohort.RunID,
			"store":  *dbDSN,
		}).Info("Cohort snapshot saved")
	}

	if err := exporter.ExportCohort(ctx, &cohort); err != nil {
		logger.WithError(err).Fatal("Failed to export cohort tables")
	}

	if *withEpi {
		records := epi.Generate(rand.New(rand.NewSource(*seed)), *epiStart, *epiEnd)
		data, err := export.RenderPrevalenceCSV(records)
		if err != nil {
			logger.WithError(err).Fatal("Failed to render epidemiology table")
		}
		if err := exporter.ExportDataset(ctx, "epidemiology.csv", data); err != nil {
			logger.WithError(err).Fatal("Failed to export epidemiology table")
		}
		logger.WithField("rows", len(records)).Info("Epidemiology table exported")
	}

	if *withMarket {
		rows, err := market.Generate(rand.New(rand.NewSource(*seed+1)), *startMonth, *endMonth)
		if err != nil {
			logger.WithError(err).Fatal("Failed to build sales table")
		}
		data, err := export.RenderSalesCSV(rows)
		if err != nil {
			logger.WithError(err).Fatal("Failed to render sales table")
		}
		if err := exporter.ExportDataset(ctx, "competitor_sales.csv", data); err != nil {
			logger.WithError(err).Fatal("Failed to export sales table")
		}
		logger.WithField("rows", len(rows)).Info("Competitor sales table exported")
	}

	logger.WithFields(logrus.Fields{
		"run_id":   cohort.RunID,
		"seed":     *seed,
		"patients": len(cohort.Patients),
	}).Info("Generation complete")
}

func buildSink(ctx context.Context, outDir, bucket, prefix, region string) (export.Sink, error) {
	if bucket != "" {
		return export.NewS3Sink(ctx, export.S3Config{
			Bucket: bucket,
			Prefix: prefix,
			Region: region,
		})
	}
	return export.NewFilesystemSink(outDir)
}
