package service

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/apierror"
)

type ProductService struct {
	products  repository.ProductStore
	images    *ImageService
	audit     *AuditService
	maxImages int
}

func NewProductService(products repository.ProductStore, images *ImageService, audit *AuditService, maxImages int) *ProductService {
	return &ProductService{products: products, images: images, audit: audit, maxImages: maxImages}
}

func (s *ProductService) Create(ctx context.Context, req model.CreateProductRequest, files []ImageInput, actor model.AuditActor) (model.Product, error) {
	if len(files) > s.maxImages {
		return model.Product{}, apierror.Validation(fmt.Sprintf("a product can have at most %d images", s.maxImages), "images")
	}

	sizes, err := toProductSizes(req.Sizes)
	if err != nil {
		return model.Product{}, err
	}

	stored, err := s.saveImages(files)
	if err != nil {
		return model.Product{}, err
	}

	quantity := calculateTotalQuantity(sizes)
	product := model.Product{
		Name:               strings.TrimSpace(req.Name),
		Description:        strings.TrimSpace(req.Description),
		OriginalPrice:      req.OriginalPrice,
		DiscountPercentage: req.DiscountPercentage,
		DiscountedPrice:    calculateDiscountedPrice(req.OriginalPrice, req.DiscountPercentage),
		Images:             stored,
		Badge:              strings.TrimSpace(req.Badge),
		Quantity:           quantity,
		IsAvailable:        quantity > 0,
		Sizes:              sizes,
	}

	created, err := s.products.Create(ctx, product)
	if err != nil {
		s.removeImages(stored)
		s.audit.Log(ctx, ActionProductCreate, actor, model.AuditStatusFailure, "", map[string]any{"error": err.Error()})
		return model.Product{}, err
	}

	s.audit.Log(ctx, ActionProductCreate, actor, model.AuditStatusSuccess, productResource(created.ID), map[string]any{"name": created.Name})
	return created, nil
}

func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	return s.products.List(ctx)
}

func (s *ProductService) Get(ctx context.Context, id int64) (model.Product, error) {
	return s.products.FindByID(ctx, id)
}

// Update applies the non-nil fields of req. Images listed in RemoveImages are
// dropped, new files appended, and sizes replaced only when req carries them.
func (s *ProductService) Update(ctx context.Context, id int64, req model.UpdateProductRequest, files []ImageInput, actor model.AuditActor) (model.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return model.Product{}, err
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.OriginalPrice != nil {
		product.OriginalPrice = *req.OriginalPrice
	}
	if req.DiscountPercentage != nil {
		product.DiscountPercentage = req.DiscountPercentage
	}
	if req.Badge != nil {
		product.Badge = strings.TrimSpace(*req.Badge)
	}
	product.DiscountedPrice = calculateDiscountedPrice(product.OriginalPrice, product.DiscountPercentage)

	kept, removed := partitionImages(product.Images, req.RemoveImages)
	if len(kept)+len(files) > s.maxImages {
		return model.Product{}, apierror.Validation(fmt.Sprintf("a product can have at most %d images", s.maxImages), "images")
	}

	replaceSizes := req.Sizes != nil
	if replaceSizes {
		sizes, err := toProductSizes(req.Sizes)
		if err != nil {
			return model.Product{}, err
		}
		product.Sizes = sizes
		product.Quantity = calculateTotalQuantity(sizes)
	}
	product.IsAvailable = product.Quantity > 0

	stored, err := s.saveImages(files)
	if err != nil {
		return model.Product{}, err
	}
	product.Images = append(kept, stored...)

	updated, err := s.products.Update(ctx, product, replaceSizes)
	if err != nil {
		s.removeImages(stored)
		s.audit.Log(ctx, ActionProductUpdate, actor, model.AuditStatusFailure, productResource(id), map[string]any{"error": err.Error()})
		return model.Product{}, err
	}

	s.removeImages(removed)
	s.audit.Log(ctx, ActionProductUpdate, actor, model.AuditStatusSuccess, productResource(id), map[string]any{
		"images_added":   len(stored),
		"images_removed": len(removed),
		"sizes_replaced": replaceSizes,
	})
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64, actor model.AuditActor) error {
	deleted, err := s.products.Delete(ctx, id)
	if err != nil {
		s.audit.Log(ctx, ActionProductDelete, actor, model.AuditStatusFailure, productResource(id), map[string]any{"error": err.Error()})
		return err
	}

	s.removeImages(deleted.Images)
	s.audit.Log(ctx, ActionProductDelete, actor, model.AuditStatusSuccess, productResource(id), map[string]any{"name": deleted.Name})
	return nil
}

func (s *ProductService) saveImages(files []ImageInput) ([]string, error) {
	stored := make([]string, 0, len(files))
	for _, file := range files {
		img, err := s.images.Save(file)
		if err != nil {
			s.removeImages(stored)
			return nil, err
		}
		stored = append(stored, img.Path)
	}
	return stored, nil
}

func (s *ProductService) removeImages(paths []string) {
	if s.images == nil {
		return
	}
	for _, p := range paths {
		s.images.Remove(p)
	}
}

// partitionImages splits current into the images to keep and those named in
// remove. Entries of remove may be stored paths or absolute URLs.
func partitionImages(current []string, remove []string) ([]string, []string) {
	if len(remove) == 0 {
		return slices.Clone(current), nil
	}

	targets := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		targets[imagePath(r)] = struct{}{}
	}

	kept := make([]string, 0, len(current))
	removed := make([]string, 0, len(remove))
	for _, img := range current {
		if _, ok := targets[img]; ok {
			removed = append(removed, img)
			continue
		}
		kept = append(kept, img)
	}
	return kept, removed
}

func imagePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	return raw
}

func toProductSizes(inputs []model.SizeInput) ([]model.ProductSize, error) {
	sizes := make([]model.ProductSize, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		size := strings.ToLower(strings.TrimSpace(in.Size))
		if _, dup := seen[size]; dup {
			return nil, apierror.Validation("duplicate size: "+size, "sizes")
		}
		seen[size] = struct{}{}
		sizes = append(sizes, model.ProductSize{Size: size, StockQuantity: in.StockQuantity})
	}
	return sizes, nil
}

func calculateTotalQuantity(sizes []model.ProductSize) int {
	total := 0
	for _, s := range sizes {
		total += s.StockQuantity
	}
	return total
}

// calculateDiscountedPrice returns nil when no discount applies, otherwise
// the price reduced by percentage and rounded to cents.
func calculateDiscountedPrice(price float64, percentage *float64) *float64 {
	if percentage == nil {
		return nil
	}
	discounted := math.Round((price-price*(*percentage)/100)*100) / 100
	return &discounted
}

func productResource(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
