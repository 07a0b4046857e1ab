// Package billing converts grouped billing API results into canonical cost records
package billing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"aws-cost-sync/decision/billing/mappers/aws"
	costerrors "aws-cost-sync/pkg/errors"
	"aws-cost-sync/pkg/focus"
)

// Metric names requested from the billing API
const (
	MetricAmortizedCost = "AmortizedCost"
	MetricBlendedCost   = "BlendedCost"
	MetricUnblendedCost = "UnblendedCost"
	MetricUsageQuantity = "UsageQuantity"
)

// Metrics is the fixed metric set, in request order
var Metrics = []string{MetricAmortizedCost, MetricBlendedCost, MetricUnblendedCost, MetricUsageQuantity}

// Grouping dimensions, in the order their values appear in RawGroupingResult.GroupKeys
const (
	DimensionService   = "SERVICE"
	DimensionRegion    = "REGION"
	DimensionUsageType = "USAGE_TYPE"
	DimensionOperation = "OPERATION"
)

// GroupBy is the fixed grouping request. Positions match the GroupKeys layout.
var GroupBy = []string{DimensionService, DimensionRegion, DimensionUsageType, DimensionOperation}

// Precision is the number of decimal places kept for every amount
const Precision = 5

// RawGroupingResult is one group of one time bucket as returned by the billing API
type RawGroupingResult struct {
	Date      string            // bucket start, YYYY-MM-DD
	GroupKeys []string          // [service, region, usage type, operation]; may be short
	Metrics   map[string]string // metric name -> decimal amount
}

// Normalize flattens a raw grouping result into a CostRecord.
// Missing keys become focus.Unknown, missing metrics become 0, and every amount is
// rounded half-to-even to Precision places. An unparseable amount yields a format error.
func Normalize(raw RawGroupingResult) (focus.CostRecord, error) {
	rec := focus.CostRecord{
		Date:      raw.Date,
		Service:   aws.DisplayName(groupKey(raw.GroupKeys, 0)),
		Region:    groupKey(raw.GroupKeys, 1),
		UsageType: groupKey(raw.GroupKeys, 2),
		Operation: groupKey(raw.GroupKeys, 3),
	}

	fields := []struct {
		metric string
		dst    *float64
	}{
		{MetricAmortizedCost, &rec.AmortizedCost},
		{MetricBlendedCost, &rec.BlendedCost},
		{MetricUnblendedCost, &rec.UnblendedCost},
		{MetricUsageQuantity, &rec.UsageQuantity},
	}
	for _, f := range fields {
		v, err := parseAmount(raw.Metrics, f.metric)
		if err != nil {
			return focus.CostRecord{}, err
		}
		*f.dst = v
	}

	return rec, nil
}

// IsZeroCost reports whether a normalized record carries no amortized cost and must not be stored
func IsZeroCost(rec focus.CostRecord) bool {
	return rec.AmortizedCost == 0
}

func groupKey(keys []string, i int) string {
	if i < len(keys) {
		return keys[i]
	}
	return focus.Unknown
}

var errOutOfRange = errors.New("amount out of float64 range")

func parseAmount(metrics map[string]string, metric string) (float64, error) {
	raw, ok := metrics[metric]
	if !ok {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, costerrors.NewFormatError(metric, raw, err)
	}
	f, _ := d.RoundBank(Precision).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, costerrors.NewFormatError(metric, raw, errOutOfRange)
	}
	return f, nil
}
