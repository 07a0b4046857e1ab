package focus

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Unknown fills any grouping dimension the billing API did not return.
const Unknown = "Unknown"

// CostRecord is a normalized daily cost line following FOCUS-like semantics.
type CostRecord struct {
	Date      string `json:"date" bson:"date" ch:"date"` // YYYY-MM-DD
	Service   string `json:"service" bson:"service" ch:"service"`
	Region    string `json:"region" bson:"region" ch:"region"`
	UsageType string `json:"usage_type" bson:"usage_type" ch:"usage_type"`
	Operation string `json:"operation" bson:"operation" ch:"operation"`

	AmortizedCost float64 `json:"amortized_cost" bson:"amortized_cost" ch:"amortized_cost"`
	BlendedCost   float64 `json:"blended_cost" bson:"blended_cost" ch:"blended_cost"`
	UnblendedCost float64 `json:"unblended_cost" bson:"unblended_cost" ch:"unblended_cost"`
	UsageQuantity float64 `json:"usage_quantity" bson:"usage_quantity" ch:"usage_quantity"`
}

// IngestedCostRecord is a CostRecord written by the insert-only ingestion, stamped with the run time.
type IngestedCostRecord struct {
	CostRecord `bson:",inline"`
	FetchedAt  time.Time `json:"fetched_at" bson:"fetched_at" ch:"fetched_at"`
}

// NaturalKey identifies one logical billing line. Equal keys are the same entity
// regardless of cost values.
type NaturalKey struct {
	Date      string `json:"date" bson:"date"`
	Service   string `json:"service" bson:"service"`
	Region    string `json:"region" bson:"region"`
	UsageType string `json:"usage_type" bson:"usage_type"`
	Operation string `json:"operation" bson:"operation"`
}

// KeyOf projects the identity fields of a record. No casing or trimming is applied.
func KeyOf(r CostRecord) NaturalKey {
	return NaturalKey{
		Date:      r.Date,
		Service:   r.Service,
		Region:    r.Region,
		UsageType: r.UsageType,
		Operation: r.Operation,
	}
}

// Key is shorthand for KeyOf(r).
func (r CostRecord) Key() NaturalKey {
	return KeyOf(r)
}

// Hash returns a stable hex digest of the key for stores that need a single identity column.
func (k NaturalKey) Hash() string {
	var sb strings.Builder
	for _, part := range []string{k.Date, k.Service, k.Region, k.UsageType, k.Operation} {
		// length prefix keeps "a|b" + "c" distinct from "a" + "b|c"
		sb.WriteString(strconv.Itoa(len(part)))
		sb.WriteString(":")
		sb.WriteString(part)
		sb.WriteString(";")
	}
	h := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(h[:])
}

func (k NaturalKey) String() string {
	return strings.Join([]string{k.Date, k.Service, k.Region, k.UsageType, k.Operation}, "|")
}

// Document is a stored record as the read endpoint serves it: every stored field except
// internal identifiers, keyed by the stored field name.
type Document map[string]interface{}

// Document returns the record keyed by its stored field names.
func (r CostRecord) Document() Document {
	return Document{
		"date":           r.Date,
		"service":        r.Service,
		"region":         r.Region,
		"usage_type":     r.UsageType,
		"operation":      r.Operation,
		"amortized_cost": r.AmortizedCost,
		"blended_cost":   r.BlendedCost,
		"unblended_cost": r.UnblendedCost,
		"usage_quantity": r.UsageQuantity,
	}
}

// Documents converts records for backends with a fixed schema, where the row is the whole document.
func Documents(recs []CostRecord) []Document {
	docs := make([]Document, len(recs))
	for i, r := range recs {
		docs[i] = r.Document()
	}
	return docs
}
