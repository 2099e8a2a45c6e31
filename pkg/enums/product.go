package enums

import "slices"

// ProductType groups listings by what the farmer is selling.
type ProductType string

const (
	ProductTypeProduce   ProductType = "produce"
	ProductTypeLivestock ProductType = "livestock"
	ProductTypeDairy     ProductType = "dairy"
	ProductTypePoultry   ProductType = "poultry"
	ProductTypeGrain     ProductType = "grain"
	ProductTypeOther     ProductType = "other"
)

var validProductTypes = []ProductType{
	ProductTypeProduce,
	ProductTypeLivestock,
	ProductTypeDairy,
	ProductTypePoultry,
	ProductTypeGrain,
	ProductTypeOther,
}

// String implements fmt.Stringer.
func (t ProductType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known ProductType.
func (t ProductType) IsValid() bool {
	return slices.Contains(validProductTypes, t)
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	return parse("product type", validProductTypes, value)
}
