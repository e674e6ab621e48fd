package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/storage"
)

// Multipart field names of the onboarding form.
const (
	FieldProfile          = "profile"
	FieldListing          = "listing"
	FieldBrandImage       = "brand_image"
	FieldProductPhotos    = "product_photos"
	FieldProductVideo     = "product_video"
	FieldIdentityDocument = "identity_document"
)

// requiredField names an input field and reads its value.
type requiredField[T any] struct {
	name string
	get  func(T) string
}

// checkRequired reports the first field, in declaration order, whose
// trimmed value is empty.
func checkRequired[T any](v T, fields []requiredField[T]) error {
	for _, f := range fields {
		if strings.TrimSpace(f.get(v)) == "" {
			return common.MissingField(f.name)
		}
	}
	return nil
}

// ProfileInput is the seller profile payload. JSON names are the public
// field names; ToSellerProfile maps them onto stored columns.
type ProfileInput struct {
	BusinessName        string `json:"business_name"`
	ContactPhone        string `json:"contact_phone"`
	Address             string `json:"address"`
	City                string `json:"city"`
	State               string `json:"state"`
	BusinessDescription string `json:"business_description"`
}

var profileRequired = []requiredField[ProfileInput]{
	{"business_name", func(p ProfileInput) string { return p.BusinessName }},
	{"contact_phone", func(p ProfileInput) string { return p.ContactPhone }},
	{"address", func(p ProfileInput) string { return p.Address }},
	{"city", func(p ProfileInput) string { return p.City }},
	{"state", func(p ProfileInput) string { return p.State }},
	{"business_description", func(p ProfileInput) string { return p.BusinessDescription }},
}

func (p ProfileInput) Validate() error {
	return checkRequired(p, profileRequired)
}

// ToSellerProfile maps the input onto the stored seller fields
// (contact_phone becomes phone_number).
func (p ProfileInput) ToSellerProfile() models.SellerProfile {
	return models.SellerProfile{
		BusinessName:        strings.TrimSpace(p.BusinessName),
		PhoneNumber:         strings.TrimSpace(p.ContactPhone),
		Address:             strings.TrimSpace(p.Address),
		City:                strings.TrimSpace(p.City),
		State:               strings.TrimSpace(p.State),
		BusinessDescription: strings.TrimSpace(p.BusinessDescription),
	}
}

// Price accepts either a JSON number or a numeric string.
type Price struct {
	Value float64
	Set   bool
	Valid bool
}

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = Price{}
		return nil
	}

	raw := string(b)
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unq)
		if raw == "" {
			*p = Price{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(raw, 64)
	*p = Price{Value: v, Set: true, Valid: err == nil}
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Set {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// MaxPrice is the exclusive upper bound of the products.price column,
// NUMERIC(12, 2).
const MaxPrice = 1e10

// ListingInput is the first-product payload. product_brand is stored as
// the breed column; the remaining product_* names drop their prefix.
type ListingInput struct {
	ProductName        string `json:"product_name"`
	ProductBrand       string `json:"product_brand"`
	ProductCategory    string `json:"product_category"`
	ProductDescription string `json:"product_description"`
	ProductPrice       Price  `json:"product_price"`
	Quantity           *int   `json:"quantity,omitempty"`
	Age                string `json:"age,omitempty"`
	Gender             string `json:"gender,omitempty"`
}

var listingRequired = []requiredField[ListingInput]{
	{"product_name", func(l ListingInput) string { return l.ProductName }},
	{"product_brand", func(l ListingInput) string { return l.ProductBrand }},
	{"product_category", func(l ListingInput) string { return l.ProductCategory }},
	{"product_description", func(l ListingInput) string { return l.ProductDescription }},
}

func (l ListingInput) Validate() error {
	if err := checkRequired(l, listingRequired); err != nil {
		return err
	}
	if !l.ProductPrice.Set {
		return common.MissingField("product_price")
	}
	if v := l.ProductPrice.Value; !l.ProductPrice.Valid || !(v > 0) || math.IsInf(v, 1) {
		return common.NewValidationError("product_price", "product_price must be a positive number")
	}
	if math.Round(l.ProductPrice.Value*100)/100 >= MaxPrice {
		return common.NewValidationError("product_price", "product_price must be less than %.0f", float64(MaxPrice))
	}
	if l.Quantity != nil && *l.Quantity < 1 {
		return common.NewValidationError("quantity", "quantity must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(l.Gender)) {
	case "", "male", "female":
	default:
		return common.NewValidationError("gender", "gender must be male or female")
	}
	return nil
}

// ToProduct maps the input onto a product owned by sellerID.
func (l ListingInput) ToProduct(sellerID string) *models.Product {
	qty := 1
	if l.Quantity != nil {
		qty = *l.Quantity
	}
	return &models.Product{
		SellerID:    sellerID,
		Name:        strings.TrimSpace(l.ProductName),
		Breed:       strings.TrimSpace(l.ProductBrand),
		Category:    strings.TrimSpace(l.ProductCategory),
		Description: strings.TrimSpace(l.ProductDescription),
		Price:       l.ProductPrice.Value,
		Quantity:    qty,
		Age:         strings.TrimSpace(l.Age),
		Gender:      strings.ToLower(strings.TrimSpace(l.Gender)),
	}
}

// ProductInput is a listing created after onboarding, with media already uploaded.
type ProductInput struct {
	ListingInput
	PhotoURLs []string `json:"photo_urls"`
	VideoURL  string   `json:"video_url,omitempty"`
}

func (p ProductInput) Validate() error {
	if err := p.ListingInput.Validate(); err != nil {
		return err
	}
	for _, u := range p.PhotoURLs {
		if strings.TrimSpace(u) != "" {
			return nil
		}
	}
	return common.NewValidationError("photo_urls", "at least one product photo is required")
}

// OnboardingFiles are the attachments of the onboarding form. A file with
// no content counts as missing.
type OnboardingFiles struct {
	BrandImage       *storage.File
	ProductPhotos    []storage.File
	ProductVideo     *storage.File
	IdentityDocument *storage.File
}

func present(f *storage.File) bool {
	return f != nil && len(f.Data) > 0
}

// Photos returns the non-empty product photos.
func (f OnboardingFiles) Photos() []storage.File {
	out := make([]storage.File, 0, len(f.ProductPhotos))
	for _, p := range f.ProductPhotos {
		if len(p.Data) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func (f OnboardingFiles) Validate() error {
	if !present(f.BrandImage) {
		return common.MissingField(FieldBrandImage)
	}
	if len(f.Photos()) == 0 {
		return common.NewValidationError(FieldProductPhotos, "at least one product photo is required")
	}
	return nil
}

// OnboardingInput is the whole onboarding request.
type OnboardingInput struct {
	Profile ProfileInput
	Listing ListingInput
	Files   OnboardingFiles
}

// Validate checks profile, listing and files, in that order.
func (in OnboardingInput) Validate() error {
	if err := in.Profile.Validate(); err != nil {
		return err
	}
	if err := in.Listing.Validate(); err != nil {
		return err
	}
	return in.Files.Validate()
}

// ParseProfile decodes the JSON string carried by the profile form field.
func ParseProfile(raw string) (ProfileInput, error) {
	var p ProfileInput
	if err := decodeSubPayload(FieldProfile, raw, &p); err != nil {
		return ProfileInput{}, err
	}
	return p, nil
}

// ParseListing decodes the JSON string carried by the listing form field.
func ParseListing(raw string) (ListingInput, error) {
	var l ListingInput
	if err := decodeSubPayload(FieldListing, raw, &l); err != nil {
		return ListingInput{}, err
	}
	return l, nil
}

func decodeSubPayload(field, raw string, out any) error {
	if strings.TrimSpace(raw) == "" {
		return common.MissingField(field)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return common.NewValidationError(field, "%s must be a valid JSON object", field)
	}
	return nil
}
