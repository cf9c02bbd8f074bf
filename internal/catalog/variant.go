package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

// Variant decodes the body of one product type.
type Variant interface {
	Type() enums.ProductType
	Decode(body json.RawMessage) (Spec, error)
}

// Spec is the capability set of a decoded product configuration.
type Spec interface {
	Validate(table PricingTable) error
	// Price returns the unit price in dollars before the lead-time multiplier.
	Price(table PricingTable) (decimal.Decimal, error)
	Describe() Description
	Profile(table PricingTable) ShippingProfile
}

// ShippingProfile is the weight/size proxy of one unit.
type ShippingProfile struct {
	WeightLbs     decimal.Decimal `json:"weightLbs"`
	LongestInches decimal.Decimal `json:"longestInches"`
}

// Registry maps product types to variants.
type Registry struct {
	variants map[enums.ProductType]Variant
}

func NewRegistry(variants ...Variant) (*Registry, error) {
	r := &Registry{variants: make(map[enums.ProductType]Variant, len(variants))}
	for _, v := range variants {
		if err := r.Register(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry registers the embed and gate variants.
func DefaultRegistry() *Registry {
	return &Registry{variants: map[enums.ProductType]Variant{
		enums.ProductTypeSteelPlateEmbed: EmbedVariant{},
		enums.ProductTypeDumpsterGate:    GateVariant{},
	}}
}

func (r *Registry) Register(v Variant) error {
	if v == nil {
		return errors.New("variant required")
	}
	if _, exists := r.variants[v.Type()]; exists {
		return fmt.Errorf("variant %q already registered", v.Type())
	}
	r.variants[v.Type()] = v
	return nil
}

func (r *Registry) Lookup(productType enums.ProductType) (Variant, bool) {
	v, ok := r.variants[productType]
	return v, ok
}

// Types lists registered product types in lexical order.
func (r *Registry) Types() []enums.ProductType {
	out := make([]enums.ProductType, 0, len(r.variants))
	for t := range r.variants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// decodeBody unmarshals a variant body, reporting bad values by field.
func decodeBody(body json.RawMessage, dst any) error {
	if len(body) == 0 {
		return pkgerrors.Field("productType", "configuration body is empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		if field := invalidField(body, reflect.TypeOf(dst), ""); field != "" {
			return pkgerrors.Field(field, "has an invalid value")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return pkgerrors.Field(typeErr.Field, "has an invalid type")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "configuration is not valid json")
	}
	return nil
}

var jsonUnmarshaler = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

// invalidField walks raw alongside t and returns the path of the first value
// that does not decode, such as "studs[1].x". It returns "" when raw itself is
// not the right JSON shape at path "".
func invalidField(raw json.RawMessage, t reflect.Type, path string) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case reflect.PointerTo(t).Implements(jsonUnmarshaler):
		return decodeFails(raw, t, path)
	case t.Kind() == reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return path
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := jsonName(f)
			if name == "" {
				continue
			}
			value, ok := lookupKey(fields, name)
			if !ok {
				continue
			}
			if bad := invalidField(value, f.Type, joinPath(path, name)); bad != "" {
				return bad
			}
		}
		return ""
	case t.Kind() == reflect.Slice:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return path
		}
		for i, item := range items {
			if bad := invalidField(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i)); bad != "" {
				return bad
			}
		}
		return ""
	default:
		return decodeFails(raw, t, path)
	}
}

func decodeFails(raw json.RawMessage, t reflect.Type, path string) string {
	if err := json.Unmarshal(raw, reflect.New(t).Interface()); err != nil {
		return path
	}
	return ""
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return f.Name
}

// lookupKey matches keys the way encoding/json does: exact first, then
// case-insensitively.
func lookupKey(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if v, ok := fields[name]; ok {
		return v, true
	}
	for k, v := range fields {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
