package mlclient

import "encoding/json"

// ExtractedLabels holds the fields the ML extraction endpoint reads off a
// product label. The upstream payload may carry more; Raw preserves it.
type ExtractedLabels struct {
	ProductName       string `json:"product_name"`
	Brand             string `json:"brand"`
	Ingredients       string `json:"ingredients"`
	ManufacturerState string `json:"manufacturer_state"`

	Raw json.RawMessage `json:"-"`
}

// Product describes one product for eco-scoring, alternative lookup and
// comparison. Field names follow the ML API's wire format.
type Product struct {
	ProductName      string  `json:"product_name"`
	Brand            string  `json:"brand"`
	Category         string  `json:"category"`
	Weight           string  `json:"weight,omitempty"`
	PackagingType    string  `json:"packaging_type,omitempty"`
	IngredientList   string  `json:"ingredient_list,omitempty"`
	Latitude         float64 `json:"latitude,omitempty"`
	Longitude        float64 `json:"longitude,omitempty"`
	UsageFrequency   string  `json:"usage_frequency,omitempty"`
	ManufacturingLoc string  `json:"manufacturing_loc,omitempty"`
}

type extractRequest struct {
	ImagePath1 string `json:"image_path1"`
	ImagePath2 string `json:"image_path2"`
}

type compareRequest struct {
	Product1 Product `json:"product1"`
	Product2 Product `json:"product2"`
}
