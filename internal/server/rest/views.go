package rest

import (
	"time"

	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/services"
)

// accountView is the public shape of an account. The password hash is never
// serialized.
type accountView struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Role                string    `json:"role"`
	IsSeller            bool      `json:"isSeller"`
	IsVerified          bool      `json:"isVerified"`
	SellerVerified      bool      `json:"sellerVerified"`
	BusinessName        string    `json:"businessName,omitempty"`
	PhoneNumber         string    `json:"phoneNumber,omitempty"`
	Address             string    `json:"address,omitempty"`
	City                string    `json:"city,omitempty"`
	State               string    `json:"state,omitempty"`
	BusinessDescription string    `json:"businessDescription,omitempty"`
	BrandImageURL       string    `json:"brandImageUrl,omitempty"`
	VerificationDocURL  string    `json:"verificationDocUrl,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

func newAccountView(a *models.Account) accountView {
	return accountView{
		ID:                  a.ID,
		Name:                a.Name,
		Email:               a.Email,
		Role:                a.Role,
		IsSeller:            a.IsSeller,
		IsVerified:          a.IsVerified,
		SellerVerified:      a.SellerVerified,
		BusinessName:        a.BusinessName,
		PhoneNumber:         a.PhoneNumber,
		Address:             a.Address,
		City:                a.City,
		State:               a.State,
		BusinessDescription: a.BusinessDescription,
		BrandImageURL:       a.BrandImageURL,
		VerificationDocURL:  a.VerificationDocURL,
		CreatedAt:           a.CreatedAt,
	}
}

type productView struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"sellerId"`
	Name        string    `json:"name"`
	Breed       string    `json:"breed"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Age         string    `json:"age,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	PhotoURLs   []string  `json:"photoUrls"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newProductView(p *models.Product) productView {
	photos := p.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	return productView{
		ID:          p.ID,
		SellerID:    p.SellerID,
		Name:        p.Name,
		Breed:       p.Breed,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Age:         p.Age,
		Gender:      p.Gender,
		PhotoURLs:   photos,
		VideoURL:    p.VideoURL,
		CreatedAt:   p.CreatedAt,
	}
}

// sessionResponse is returned by every endpoint that opens a session. The
// refresh token travels in the cookie only.
type sessionResponse struct {
	AccessToken string      `json:"accessToken"`
	User        accountView `json:"user"`
}

type onboardResponse struct {
	User    accountView `json:"user"`
	Product productView `json:"product"`
}

type productsResponse struct {
	Products []productView `json:"products"`
}

func newSessionResponse(s *services.Session) sessionResponse {
	return sessionResponse{AccessToken: s.Tokens.AccessToken, User: newAccountView(s.Account)}
}
