package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	costerrors "aws-cost-sync/pkg/errors"
	"aws-cost-sync/pkg/focus"
)

func TestNormalizeEC2Example(t *testing.T) {
	raw := RawGroupingResult{
		Date:      "2024-05-01",
		GroupKeys: []string{"Amazon Elastic Compute Cloud - Compute", "us-east-1"},
		Metrics: map[string]string{
			MetricAmortizedCost: "12.34567",
			MetricUsageQuantity: "3.000001",
		},
	}

	rec, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, focus.CostRecord{
		Date:          "2024-05-01",
		Service:       "Amazon EC2",
		Region:        "us-east-1",
		UsageType:     "Unknown",
		Operation:     "Unknown",
		AmortizedCost: 12.34567,
		BlendedCost:   0,
		UnblendedCost: 0,
		UsageQuantity: 3.0,
	}, rec)
	assert.False(t, IsZeroCost(rec))
}

func TestNormalizeZeroAmortizedCost(t *testing.T) {
	raw := RawGroupingResult{
		Date:      "2024-05-01",
		GroupKeys: []string{"Amazon Elastic Compute Cloud - Compute", "us-east-1"},
		Metrics: map[string]string{
			MetricAmortizedCost: "0",
			MetricBlendedCost:   "4.2",
			MetricUsageQuantity: "3.000001",
		},
	}

	rec, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 4.2, rec.BlendedCost)
	assert.True(t, IsZeroCost(rec))
}

func TestNormalizeFillsMissingKeys(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want [4]string
	}{
		{"nil", nil, [4]string{"Unknown", "Unknown", "Unknown", "Unknown"}},
		{"service only", []string{"AWS Lambda"}, [4]string{"AWS Lambda", "Unknown", "Unknown", "Unknown"}},
		{"three", []string{"Amazon Simple Storage Service", "eu-west-1", "TimedStorage-ByteHrs"}, [4]string{"Amazon S3", "eu-west-1", "TimedStorage-ByteHrs", "Unknown"}},
		{"empty region kept", []string{"Amazon DynamoDB", "", "ReadCapacityUnit-Hrs", "GetItem"}, [4]string{"Amazon DynamoDB", "", "ReadCapacityUnit-Hrs", "GetItem"}},
		{"extra keys ignored", []string{"Amazon CloudWatch", "us-east-1", "CW:Requests", "GetMetricData", "extra"}, [4]string{"Amazon CloudWatch", "us-east-1", "CW:Requests", "GetMetricData"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize(RawGroupingResult{Date: "2024-05-01", GroupKeys: tt.keys})
			require.NoError(t, err)
			assert.Equal(t, tt.want, [4]string{rec.Service, rec.Region, rec.UsageType, rec.Operation})
		})
	}
}

func TestNormalizeMissingMetricsDefaultToZero(t *testing.T) {
	rec, err := Normalize(RawGroupingResult{Date: "2024-05-01", GroupKeys: []string{"Amazon RDS Service"}})
	require.NoError(t, err)

	assert.Equal(t, "Amazon RDS", rec.Service)
	assert.Zero(t, rec.AmortizedCost)
	assert.Zero(t, rec.BlendedCost)
	assert.Zero(t, rec.UnblendedCost)
	assert.Zero(t, rec.UsageQuantity)
	assert.True(t, IsZeroCost(rec))
}

func TestNormalizeRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		amount string
		want   float64
	}{
		{"0.000005", 0},
		{"0.000015", 0.00002},
		{"0.000025", 0.00002},
		{"1.234565", 1.23456},
		{"1.234575", 1.23458},
		{"1.2345651", 1.23457},
		{"-0.000035", -0.00004},
		{"100", 100},
		{"1.5E-3", 0.0015},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			rec, err := Normalize(RawGroupingResult{Metrics: map[string]string{MetricUnblendedCost: tt.amount}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.UnblendedCost)
		})
	}
}

func TestNormalizeSubPrecisionAmortizedCostIsZero(t *testing.T) {
	rec, err := Normalize(RawGroupingResult{Metrics: map[string]string{MetricAmortizedCost: "0.0000049"}})
	require.NoError(t, err)
	assert.True(t, IsZeroCost(rec))
}

func TestNormalizeRejectsMalformedAmount(t *testing.T) {
	for _, amount := range []string{"abc", "", "12,5"} {
		_, err := Normalize(RawGroupingResult{
			Date:    "2024-05-01",
			Metrics: map[string]string{MetricAmortizedCost: "1", MetricBlendedCost: amount},
		})
		require.Error(t, err, amount)
		assert.True(t, costerrors.IsFormat(err))
		assert.Contains(t, err.Error(), MetricBlendedCost)
	}
}

func TestNormalizeRejectsOutOfRangeAmount(t *testing.T) {
	for _, amount := range []string{"1e400", "-1e400"} {
		_, err := Normalize(RawGroupingResult{
			Date:    "2024-05-01",
			Metrics: map[string]string{MetricAmortizedCost: "1", MetricUsageQuantity: amount},
		})
		require.Error(t, err, amount)
		assert.True(t, costerrors.IsFormat(err))
		assert.Contains(t, err.Error(), MetricUsageQuantity)
	}
}
