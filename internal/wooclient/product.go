package wooclient

import "encoding/json"

// Product is a provider-shaped product record as returned by the
// WooCommerce REST v3 API. Prices, weight and dimensions come back as
// strings; metadata values are free-form.
type Product struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Status           string      `json:"status"`
	Featured         bool        `json:"featured"`
	Price            string      `json:"price"`
	RegularPrice     string      `json:"regular_price"`
	SalePrice        string      `json:"sale_price"`
	Description      string      `json:"description"`
	ShortDescription string      `json:"short_description"`
	Images           []Image     `json:"images"`
	Categories       []Category  `json:"categories"`
	Tags             []Tag       `json:"tags"`
	Attributes       []Attribute `json:"attributes"`
	MetaData         []Meta      `json:"meta_data"`
	StockStatus      string      `json:"stock_status"`
	ManageStock      bool        `json:"manage_stock"`
	StockQuantity    *int        `json:"stock_quantity"`
	Weight           string      `json:"weight"`
	Dimensions       Dimensions  `json:"dimensions"`
}

type Dimensions struct {
	Length string `json:"length"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Attribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

type Meta struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// StringValue decodes the metadata value as a string; non-string values
// yield an empty string.
func (m Meta) StringValue() string {
	var s string
	if err := json.Unmarshal(m.Value, &s); err != nil {
		return ""
	}
	return s
}

// ProductRef is the preview-shaped subset returned by the bulk fetch and
// submitted back when starting an import.
type ProductRef struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Price            string     `json:"price"`
	ShortDescription string     `json:"shortDescription"`
	Description      string     `json:"description"`
	Images           []Image    `json:"images"`
	Categories       []Category `json:"categories"`
	StockStatus      string     `json:"stock_status"`
	StockQuantity    *int       `json:"stock_quantity"`
}

// PreviewRef reduces a full product record to its preview subset
func (p *Product) PreviewRef() ProductRef {
	price := p.Price
	if price == "" {
		price = p.RegularPrice
	}
	if price == "" {
		price = "0"
	}
	return ProductRef{
		ID:               p.ID,
		Name:             p.Name,
		Price:            price,
		ShortDescription: p.ShortDescription,
		Description:      p.Description,
		Images:           p.Images,
		Categories:       p.Categories,
		StockStatus:      p.StockStatus,
		StockQuantity:    p.StockQuantity,
	}
}
