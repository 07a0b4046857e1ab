// Package costexplorer queries AWS Cost Explorer for grouped daily cost and usage
package costexplorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	costerrors "aws-cost-sync/pkg/errors"
)

const (
	dateLayout = "2006-01-02"

	GranularityDaily = "DAILY"
)

// API is the subset of the Cost Explorer client used here
type API interface {
	GetCostAndUsage(ctx context.Context, params *ce.GetCostAndUsageInput, optFns ...func(*ce.Options)) (*ce.GetCostAndUsageOutput, error)
}

// Querier runs one logical cost-and-usage query and returns every time bucket
type Querier interface {
	GetCostAndUsage(ctx context.Context, q Query) ([]ResultByTime, error)
}

// Query describes a grouped cost-and-usage request. End is exclusive.
type Query struct {
	Start       time.Time
	End         time.Time
	Granularity string
	Metrics     []string
	GroupBy     []string // dimension keys
	Filter      *DimensionFilter
}

// DimensionFilter restricts a query to the given values of one dimension
type DimensionFilter struct {
	Dimension string
	Values    []string
}

// ResultByTime is one time bucket
type ResultByTime struct {
	Start     string
	End       string
	Estimated bool
	Groups    []Group
}

// Group is one grouping within a bucket; Keys follow the order of Query.GroupBy
type Group struct {
	Keys    []string
	Metrics map[string]MetricValue
}

// MetricValue is an amount as the API returns it
type MetricValue struct {
	Amount string
	Unit   string
}

// Config holds Cost Explorer client configuration
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Timeout         time.Duration
}

// Client implements Querier over the AWS SDK
type Client struct {
	api     API
	timeout time.Duration
	logger  zerolog.Logger
}

// New loads AWS configuration and builds a client. Static credentials are used when
// both keys are set, otherwise the default credential chain applies.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithAPI(ce.NewFromConfig(awsCfg), cfg.Timeout, logger), nil
}

// NewWithAPI wraps an existing Cost Explorer API. A zero timeout disables the bound.
func NewWithAPI(api API, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		api:     api,
		timeout: timeout,
		logger:  logger.With().Str("component", "costexplorer").Logger(),
	}
}

// GetCostAndUsage runs the query, following NextPageToken until all pages are read
func (c *Client) GetCostAndUsage(ctx context.Context, q Query) ([]ResultByTime, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	input := buildInput(q)
	var results []ResultByTime

	for page := 1; ; page++ {
		out, err := c.api.GetCostAndUsage(ctx, input)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) {
				c.logger.Error().
					Str("code", apiErr.ErrorCode()).
					Str("message", apiErr.ErrorMessage()).
					Int("page", page).
					Msg("Cost Explorer rejected query")
			}
			return nil, costerrors.NewUpstreamQueryError("GetCostAndUsage", err)
		}

		converted, err := convertResults(out.ResultsByTime)
		if err != nil {
			return nil, costerrors.NewUpstreamQueryError("GetCostAndUsage", err)
		}
		results = append(results, converted...)

		if out.NextPageToken == nil || *out.NextPageToken == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	c.logger.Debug().
		Str("start", q.Start.Format(dateLayout)).
		Str("end", q.End.Format(dateLayout)).
		Int("buckets", len(results)).
		Msg("Cost Explorer query complete")

	return results, nil
}

func buildInput(q Query) *ce.GetCostAndUsageInput {
	granularity := q.Granularity
	if granularity == "" {
		granularity = GranularityDaily
	}

	input := &ce.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(q.Start.Format(dateLayout)),
			End:   aws.String(q.End.Format(dateLayout)),
		},
		Granularity: types.Granularity(granularity),
		Metrics:     append([]string(nil), q.Metrics...),
	}

	for _, dim := range q.GroupBy {
		input.GroupBy = append(input.GroupBy, types.GroupDefinition{
			Type: types.GroupDefinitionTypeDimension,
			Key:  aws.String(dim),
		})
	}

	if q.Filter != nil && len(q.Filter.Values) > 0 {
		input.Filter = &types.Expression{
			Dimensions: &types.DimensionValues{
				Key:    types.Dimension(q.Filter.Dimension),
				Values: append([]string(nil), q.Filter.Values...),
			},
		}
	}

	return input
}

func convertResults(in []types.ResultByTime) ([]ResultByTime, error) {
	out := make([]ResultByTime, 0, len(in))
	for i, r := range in {
		if r.TimePeriod == nil || r.TimePeriod.Start == nil {
			return nil, fmt.Errorf("result %d has no time period", i)
		}

		bucket := ResultByTime{
			Start:     aws.ToString(r.TimePeriod.Start),
			End:       aws.ToString(r.TimePeriod.End),
			Estimated: r.Estimated,
			Groups:    make([]Group, 0, len(r.Groups)),
		}
		for _, g := range r.Groups {
			group := Group{
				Keys:    append([]string(nil), g.Keys...),
				Metrics: make(map[string]MetricValue, len(g.Metrics)),
			}
			for name, mv := range g.Metrics {
				if mv.Amount == nil {
					continue
				}
				group.Metrics[name] = MetricValue{
					Amount: aws.ToString(mv.Amount),
					Unit:   aws.ToString(mv.Unit),
				}
			}
			bucket.Groups = append(bucket.Groups, group)
		}
		out = append(out, bucket)
	}
	return out, nil
}
