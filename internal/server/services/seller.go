package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/petmarket/internal/dbx"
	"github.com/dmitrijs2005/petmarket/internal/server/events"
	"github.com/dmitrijs2005/petmarket/internal/server/metrics"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/storage"
)

// OnboardResult is the seller account and its first product.
type OnboardResult struct {
	Account *models.Account
	Product *models.Product
}

// SellerService turns customers into sellers and manages seller listings.
type SellerService struct {
	Deps
	storage storage.Storage
}

func NewSellerService(d Deps, st storage.Storage) *SellerService {
	return &SellerService{Deps: d, storage: st}
}

// BecomeSeller writes the seller profile and flips the role in one update.
//
// Deprecated: use Onboard, which also creates the first listing.
func (s *SellerService) BecomeSeller(ctx context.Context, accountID string, in ProfileInput) (*models.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	repo := s.Repos.Accounts(s.DB)
	if err := repo.UpdateSellerProfile(ctx, accountID, in.ToSellerProfile()); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, accountID)
}

// Onboard validates the profile, listing and files, uploads the files and
// then, in one transaction, makes the account a seller and creates its
// first product. Nothing is written when validation fails.
func (s *SellerService) Onboard(ctx context.Context, accountID string, in OnboardingInput) (res *OnboardResult, err error) {
	defer func() {
		s.Metrics.OnboardingsTotal.WithLabelValues(metrics.Result(err)).Inc()
	}()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	uploads, err := s.upload(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	profile := in.Profile.ToSellerProfile()
	profile.BrandImageURL = uploads.brandImage
	profile.VerificationDocURL = uploads.identityDocument

	product := in.Listing.ToProduct(accountID)
	product.PhotoURLs = uploads.photos
	product.VideoURL = uploads.video

	err = dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.Repos.Accounts(tx).UpdateSellerProfile(ctx, accountID, profile); err != nil {
			return fmt.Errorf("update seller profile: %w", err)
		}
		if _, err := s.Repos.Products(tx).Create(ctx, product); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		return nil
	})
	if err != nil {
		s.Log.Error(ctx, "onboarding rolled back, uploaded files orphaned",
			"account_id", accountID, "files", uploads.all(), "error", err)
		return nil, err
	}

	account, err := s.Repos.Accounts(s.DB).GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubjectSellerOnboarded, events.SellerOnboarded{
		AccountID:    accountID,
		ProductID:    product.ID,
		BusinessName: profile.BusinessName,
		At:           product.CreatedAt,
	})
	s.Log.Info(ctx, "seller onboarded", "account_id", accountID, "product_id", product.ID)

	return &OnboardResult{Account: account, Product: product}, nil
}

type uploadedFiles struct {
	brandImage       string
	photos           []string
	video            string
	identityDocument string
}

func (u uploadedFiles) all() []string {
	out := append([]string{}, u.photos...)
	for _, v := range []string{u.brandImage, u.video, u.identityDocument} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *SellerService) upload(ctx context.Context, f OnboardingFiles) (uploadedFiles, error) {
	var u uploadedFiles
	var err error

	if u.brandImage, err = s.storage.Put(ctx, FieldBrandImage, *f.BrandImage); err != nil {
		return u, fmt.Errorf("upload %s: %w", FieldBrandImage, err)
	}

	for _, p := range f.Photos() {
		url, err := s.storage.Put(ctx, FieldProductPhotos, p)
		if err != nil {
			return u, fmt.Errorf("upload %s: %w", FieldProductPhotos, err)
		}
		u.photos = append(u.photos, url)
	}

	if present(f.ProductVideo) {
		if u.video, err = s.storage.Put(ctx, FieldProductVideo, *f.ProductVideo); err != nil {
			return u, fmt.Errorf("upload %s: %w", FieldProductVideo, err)
		}
	}

	if present(f.IdentityDocument) {
		if u.identityDocument, err = s.storage.Put(ctx, FieldIdentityDocument, *f.IdentityDocument); err != nil {
			return u, fmt.Errorf("upload %s: %w", FieldIdentityDocument, err)
		}
	}

	return u, nil
}

// UpdateSettings rewrites the seller profile of an existing seller.
func (s *SellerService) UpdateSettings(ctx context.Context, accountID string, in ProfileInput) (*models.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	repo := s.Repos.Accounts(s.DB)
	if err := repo.UpdateSellerSettings(ctx, accountID, in.ToSellerProfile()); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, accountID)
}

// CreateProduct adds a listing for a seller whose media is already uploaded.
func (s *SellerService) CreateProduct(ctx context.Context, sellerID string, in ProductInput) (*models.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := in.ToProduct(sellerID)
	for _, u := range in.PhotoURLs {
		if u = strings.TrimSpace(u); u != "" {
			p.PhotoURLs = append(p.PhotoURLs, u)
		}
	}
	p.VideoURL = in.VideoURL

	return s.Repos.Products(s.DB).Create(ctx, p)
}

// ListProducts returns the seller's listings, newest first.
func (s *SellerService) ListProducts(ctx context.Context, sellerID string) ([]models.Product, error) {
	return s.Repos.Products(s.DB).ListBySeller(ctx, sellerID)
}
