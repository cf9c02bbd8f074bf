package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
)

// LineItemConfig is one raw product configuration as submitted by a client.
// The envelope fields are shared by every variant; the variant body is the
// same JSON object and is decoded by the variant registered for ProductType.
type LineItemConfig struct {
	ID                  string            `json:"id,omitempty"`
	ProductType         enums.ProductType `json:"productType"`
	Quantity            int               `json:"quantity"`
	IsCustomFabrication bool              `json:"isCustomFabrication"`
	LeadTime            enums.LeadTime    `json:"leadTime,omitempty"`
	// UnitPrice is whatever the client believed the price to be. It is never
	// read by the pricing pipeline.
	UnitPrice *money.Cents `json:"unitPrice,omitempty"`

	raw json.RawMessage
}

type lineItemEnvelope LineItemConfig

func (c *LineItemConfig) UnmarshalJSON(data []byte) error {
	var env lineItemEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*c = LineItemConfig(env)
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the variant body with the current envelope values on top,
// so a quantity change after decoding is preserved.
func (c LineItemConfig) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(c.raw) > 0 {
		if err := json.Unmarshal(c.raw, &fields); err != nil {
			return nil, fmt.Errorf("decode line item body: %w", err)
		}
	}
	envelope, err := json.Marshal(lineItemEnvelope(c))
	if err != nil {
		return nil, err
	}
	overlay := map[string]json.RawMessage{}
	if err := json.Unmarshal(envelope, &overlay); err != nil {
		return nil, err
	}
	for _, key := range []string{"id", "leadTime", "unitPrice"} {
		delete(fields, key)
	}
	for k, v := range overlay {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// Body returns the raw JSON object the variant decodes.
func (c LineItemConfig) Body() json.RawMessage {
	return c.raw
}

// NewLineItemConfig builds a config from envelope values and a variant body.
func NewLineItemConfig(envelope LineItemConfig, body any) (LineItemConfig, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return LineItemConfig{}, fmt.Errorf("encode line item body: %w", err)
	}
	envelope.raw = raw
	merged, err := json.Marshal(envelope)
	if err != nil {
		return LineItemConfig{}, err
	}
	var out LineItemConfig
	if err := json.Unmarshal(merged, &out); err != nil {
		return LineItemConfig{}, err
	}
	return out, nil
}

// NormalizedConfig is a validated, priced line item.
type NormalizedConfig struct {
	ID                  string            `json:"id,omitempty"`
	ProductType         enums.ProductType `json:"productType"`
	Quantity            int               `json:"quantity"`
	IsCustomFabrication bool              `json:"isCustomFabrication"`
	LeadTime            enums.LeadTime    `json:"leadTime"`
	UnitPrice           money.Cents       `json:"unitPrice"`
	// LineTotal is unitPrice × quantity, rush surcharge included.
	LineTotal   money.Cents     `json:"price"`
	Description Description     `json:"description"`
	Profile     ShippingProfile `json:"shippingProfile"`

	Spec   Spec           `json:"-"`
	Config LineItemConfig `json:"-"`
}

// Description is the human-readable summary every variant provides.
type Description struct {
	Title string   `json:"title"`
	Lines []string `json:"lines,omitempty"`
}
