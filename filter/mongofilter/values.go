package mongofilter

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/theplant/sortfilter/filter"
)

var half = decimal.NewFromFloat(0.5)

// compare builds the operator document for a comparison. Rounded fields are
// matched by range, since $round rounds half to even while comparisons round
// half away from zero.
func compare(f filter.Field, op string, value any) bson.M {
	if !f.Round {
		return bson.M{op: bsonValue(value)}
	}

	n, ok := asDecimal(value)
	if !ok {
		return bson.M{op: bsonValue(value)}
	}
	one := decimal.NewFromInt(1)
	switch op {
	case "$gt":
		return roundsAbove(n)
	case "$gte":
		return roundsAbove(n.Sub(one))
	case "$lt":
		return roundsBelow(n)
	case "$lte":
		return roundsBelow(n.Add(one))
	}
	return mergeOps(roundsAbove(n.Sub(one)), roundsBelow(n.Add(one)))
}

// roundsAbove matches values rounding to more than n. The boundary n+0.5
// rounds up only when it is positive.
func roundsAbove(n decimal.Decimal) bson.M {
	b := n.Add(half)
	if b.IsPositive() {
		return bson.M{"$gte": b.InexactFloat64()}
	}
	return bson.M{"$gt": b.InexactFloat64()}
}

// roundsBelow matches values rounding to less than n. The boundary n-0.5
// rounds down only when it is negative.
func roundsBelow(n decimal.Decimal) bson.M {
	b := n.Sub(half)
	if b.IsNegative() {
		return bson.M{"$lte": b.InexactFloat64()}
	}
	return bson.M{"$lt": b.InexactFloat64()}
}

func mergeOps(a, b bson.M) bson.M {
	m := bson.M{}
	for k, v := range a {
		m[k] = v
	}
	for k, v := range b {
		m[k] = v
	}
	return m
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case int64:
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}

func regex(pattern string) bson.M {
	return bson.M{"$regex": primitive.Regex{Pattern: pattern}}
}

// bsonValue encodes literals the way NewRegistry stores them.
func bsonValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		if d, err := decimal128(x); err == nil {
			return d
		}
		return x.InexactFloat64()
	case uuid.UUID:
		return uuidBinary(x)
	}
	return v
}
