package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyOfIgnoresCostFields(t *testing.T) {
	a := CostRecord{Date: "2024-05-01", Service: "Amazon EC2", Region: "us-east-1", UsageType: "BoxUsage:t3.micro", Operation: "RunInstances", AmortizedCost: 1.5}
	b := a
	b.AmortizedCost = 99
	b.UsageQuantity = 7

	assert.Equal(t, KeyOf(a), KeyOf(b))
	assert.Equal(t, a.Key().Hash(), b.Key().Hash())
}

func TestKeyOfIsCaseSensitive(t *testing.T) {
	a := CostRecord{Date: "2024-05-01", Service: "Amazon EC2", Region: "us-east-1", UsageType: Unknown, Operation: Unknown}
	b := a
	b.Region = "US-EAST-1"

	assert.NotEqual(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key().Hash(), b.Key().Hash())
}

func TestHashSeparatesFieldBoundaries(t *testing.T) {
	a := NaturalKey{Date: "2024-05-01", Service: "a|b", Region: "c"}
	b := NaturalKey{Date: "2024-05-01", Service: "a", Region: "b|c"}

	assert.Equal(t, a.String(), b.String())
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Len(t, a.Hash(), 64)
}

func TestDocumentUsesStoredFieldNames(t *testing.T) {
	rec := CostRecord{
		Date: "2024-05-01", Service: "Amazon EC2", Region: "us-east-1",
		UsageType: Unknown, Operation: Unknown, AmortizedCost: 12.34567, UsageQuantity: 3,
	}

	doc := rec.Document()
	assert.Equal(t, "2024-05-01", doc["date"])
	assert.Equal(t, Unknown, doc["usage_type"])
	assert.Equal(t, 12.34567, doc["amortized_cost"])
	assert.Equal(t, 0.0, doc["blended_cost"])
	assert.Len(t, doc, 9)

	docs := Documents([]CostRecord{rec, rec})
	assert.Len(t, docs, 2)
	assert.Empty(t, Documents(nil))
}
