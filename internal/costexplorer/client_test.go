package costexplorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	costerrors "aws-cost-sync/pkg/errors"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetCostAndUsage(ctx context.Context, params *ce.GetCostAndUsageInput, optFns ...func(*ce.Options)) (*ce.GetCostAndUsageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ce.GetCostAndUsageOutput)
	return out, args.Error(1)
}

func testQuery() Query {
	return Query{
		Start:       time.Date(2023, 12, 28, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		Granularity: GranularityDaily,
		Metrics:     []string{"AmortizedCost", "BlendedCost", "UnblendedCost", "UsageQuantity"},
		GroupBy:     []string{"SERVICE", "REGION", "USAGE_TYPE", "OPERATION"},
		Filter:      &DimensionFilter{Dimension: "SERVICE", Values: []string{"Amazon Elastic Compute Cloud - Compute"}},
	}
}

func TestBuildInput(t *testing.T) {
	input := buildInput(testQuery())

	assert.Equal(t, "2023-12-28", aws.ToString(input.TimePeriod.Start))
	assert.Equal(t, "2024-01-04", aws.ToString(input.TimePeriod.End))
	assert.Equal(t, types.GranularityDaily, input.Granularity)
	assert.Equal(t, []string{"AmortizedCost", "BlendedCost", "UnblendedCost", "UsageQuantity"}, input.Metrics)
	require.Len(t, input.GroupBy, 4)
	assert.Equal(t, types.GroupDefinitionTypeDimension, input.GroupBy[2].Type)
	assert.Equal(t, "USAGE_TYPE", aws.ToString(input.GroupBy[2].Key))
	require.NotNil(t, input.Filter)
	assert.Equal(t, types.Dimension("SERVICE"), input.Filter.Dimensions.Key)
	assert.Equal(t, []string{"Amazon Elastic Compute Cloud - Compute"}, input.Filter.Dimensions.Values)
}

func TestBuildInputWithoutFilter(t *testing.T) {
	q := testQuery()
	q.Filter = nil
	q.Granularity = ""

	input := buildInput(q)
	assert.Nil(t, input.Filter)
	assert.Equal(t, types.GranularityDaily, input.Granularity)

	q.Filter = &DimensionFilter{Dimension: "SERVICE"}
	assert.Nil(t, buildInput(q).Filter)
}

func TestGetCostAndUsageFollowsPages(t *testing.T) {
	api := &mockAPI{}
	api.On("GetCostAndUsage", mock.Anything, mock.MatchedBy(func(in *ce.GetCostAndUsageInput) bool {
		return in.NextPageToken == nil
	})).Return(&ce.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{{
			TimePeriod: &types.DateInterval{Start: aws.String("2023-12-31"), End: aws.String("2024-01-01")},
			Groups: []types.Group{{
				Keys: []string{"Amazon Elastic Compute Cloud - Compute", "us-east-1"},
				Metrics: map[string]types.MetricValue{
					"AmortizedCost": {Amount: aws.String("1.5"), Unit: aws.String("USD")},
					"BlendedCost":   {},
				},
			}},
		}},
		NextPageToken: aws.String("page-2"),
	}, nil).Once()
	api.On("GetCostAndUsage", mock.Anything, mock.MatchedBy(func(in *ce.GetCostAndUsageInput) bool {
		return aws.ToString(in.NextPageToken) == "page-2"
	})).Return(&ce.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{{
			TimePeriod: &types.DateInterval{Start: aws.String("2024-01-01"), End: aws.String("2024-01-02")},
			Estimated:  true,
		}},
	}, nil).Once()

	client := NewWithAPI(api, time.Minute, zerolog.Nop())
	results, err := client.GetCostAndUsage(context.Background(), testQuery())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "2023-12-31", results[0].Start)
	require.Len(t, results[0].Groups, 1)
	assert.Equal(t, MetricValue{Amount: "1.5", Unit: "USD"}, results[0].Groups[0].Metrics["AmortizedCost"])
	_, hasBlended := results[0].Groups[0].Metrics["BlendedCost"]
	assert.False(t, hasBlended)
	assert.Equal(t, "2024-01-01", results[1].Start)
	assert.True(t, results[1].Estimated)
	assert.Empty(t, results[1].Groups)
	api.AssertExpectations(t)
}

func TestGetCostAndUsageAPIError(t *testing.T) {
	api := &mockAPI{}
	apiErr := &smithy.GenericAPIError{Code: "ValidationException", Message: "bad group by"}
	api.On("GetCostAndUsage", mock.Anything, mock.Anything).Return(nil, apiErr)

	client := NewWithAPI(api, 0, zerolog.Nop())
	_, err := client.GetCostAndUsage(context.Background(), testQuery())

	require.Error(t, err)
	assert.True(t, costerrors.IsUpstreamQuery(err))
	assert.True(t, errors.Is(err, apiErr))
}

func TestGetCostAndUsageMalformedResult(t *testing.T) {
	api := &mockAPI{}
	api.On("GetCostAndUsage", mock.Anything, mock.Anything).Return(&ce.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{{}},
	}, nil)

	client := NewWithAPI(api, 0, zerolog.Nop())
	_, err := client.GetCostAndUsage(context.Background(), testQuery())

	require.Error(t, err)
	assert.True(t, costerrors.IsUpstreamQuery(err))
}

func TestGetCostAndUsageAppliesTimeout(t *testing.T) {
	api := &mockAPI{}
	api.On("GetCostAndUsage", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything).Return(&ce.GetCostAndUsageOutput{}, nil)

	client := NewWithAPI(api, 5*time.Second, zerolog.Nop())
	results, err := client.GetCostAndUsage(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Empty(t, results)
	api.AssertExpectations(t)
}
