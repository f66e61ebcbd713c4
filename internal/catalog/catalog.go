// Package catalog assembles the browsing views of the storefront from the
// marketplace services.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/oasis-bot/internal/domain"
	apperrors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/identity"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/restclient"
	"github.com/Proton-105/oasis-bot/internal/sellers"
	"github.com/Proton-105/oasis-bot/internal/users"
)

// FallbackImage is shown for listings without a usable preview.
const FallbackImage = "https://hebbkx1anhila5yf.public.blob.vercel-storage.com/image-4Gi5slRBIrpvjeimKEmwEAbgjBSOX1.png"

const maxConcurrentLookups = 8

// Listings is the listing service as the catalog uses it.
type Listings interface {
	Themed(ctx context.Context, token string) ([]listings.Post, error)
	ByTag(ctx context.Context, tag string) ([]listings.Post, error)
	SearchTitle(ctx context.Context, query string, page int) ([]listings.Post, error)
	Public(ctx context.Context, id listings.ID) (*listings.PublicPost, error)
	BySeller(ctx context.Context, token, sellerID string) ([]listings.Post, error)
	ByBuyer(ctx context.Context, token, buyerID string, page int) ([]listings.Post, error)
	PublicSAS(ctx context.Context, id listings.ID, blob string) (string, error)
	BlobSAS(ctx context.Context, token string, id listings.ID, blob string) (string, error)
	BlobMetadata(ctx context.Context, token string, id listings.ID) (*listings.BlobMetadata, error)
}

// Users is the user service as the catalog uses it.
type Users interface {
	PublicProfile(ctx context.Context, clerkID string) (*users.PublicProfile, error)
	ClerkIDByNickname(ctx context.Context, nickname string) (string, error)
}

// Identities is the identity provider as the catalog uses it.
type Identities interface {
	GetUser(ctx context.Context, userID string) (*identity.User, error)
	FindUser(ctx context.Context, f identity.UserFilter) (*identity.User, error)
}

// Card is one listing in a list view.
type Card struct {
	ID          listings.ID
	Title       string
	Description string
	Price       decimal.Decimal
	Tags        []string
	Category    string
	Copies      int
	Status      listings.Status
	SellerID    string
	Seller      string
	Image       string
}

// PriceLabel is the formatted price.
func (c Card) PriceLabel() string { return FormatPrice(c.Price) }

// Product is the detail view of one listing.
type Product struct {
	Card
	Images      []string
	Rating      float64
	RatingCount int
	File        *listings.BlobMetadata
}

// Profile is a seller's public page.
type Profile struct {
	ClerkID     string
	Name        string
	ImageURL    string
	MemberSince string
	Listings    []Card
}

// Service builds catalog views.
type Service struct {
	listings   Listings
	users      Users
	identities Identities
	sellers    *sellers.Resolver
	log        *slog.Logger
}

// NewService wires a catalog. identities may be nil.
func NewService(list Listings, usr Users, identities Identities, resolver *sellers.Resolver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{listings: list, users: usr, identities: identities, sellers: resolver, log: log}
}

// Home returns the themed feed. The token is optional and personalises the feed.
func (s *Service) Home(ctx context.Context, token string) ([]Card, error) {
	posts, err := read(ctx, "listing", func() ([]listings.Post, error) {
		return s.listings.Themed(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, posts, s.publicPreview), nil
}

// Search runs a title search. An empty query yields no results.
func (s *Service) Search(ctx context.Context, query string, page int) ([]Card, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if page < 0 {
		page = 0
	}

	posts, err := read(ctx, "listing", func() ([]listings.Post, error) {
		return s.listings.SearchTitle(ctx, query, page)
	})
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, posts, s.publicPreview), nil
}

// Showcase lists active listings of one category.
func (s *Service) Showcase(ctx context.Context, rawTag string) (domain.Tag, []Card, error) {
	tag, err := domain.ParseTag(rawTag)
	if err != nil {
		return "", nil, apperrors.NewValidationError(err.Error())
	}

	posts, err := read(ctx, "listing", func() ([]listings.Post, error) {
		return s.listings.ByTag(ctx, string(tag))
	})
	if err != nil {
		return tag, nil, err
	}
	return tag, s.cards(ctx, posts, s.publicPreview), nil
}

// Product returns the detail view of id. token is optional and only used to
// read file metadata.
func (s *Service) Product(ctx context.Context, token string, id listings.ID) (*Product, error) {
	pub, err := read(ctx, "listing", func() (*listings.PublicPost, error) {
		return s.listings.Public(ctx, id)
	})
	if restclient.StatusOf(err) == http.StatusNotFound {
		return nil, apperrors.NewNotFoundError("listing")
	}
	if err != nil {
		return nil, err
	}

	post := pub.Post
	if post.ID == "" {
		post.ID = id
	}

	images := make([]string, len(post.PreviewImages))
	var meta *listings.BlobMetadata
	var seller string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, blob := range post.PreviewImages {
		g.Go(func() error {
			images[i] = s.publicSAS(gctx, post.ID, blob)
			return nil
		})
	}
	g.Go(func() error {
		m, err := s.listings.BlobMetadata(gctx, token, post.ID)
		if err != nil {
			s.log.DebugContext(gctx, "blob metadata unavailable", slog.String("post_id", post.ID.String()), slog.Any("error", err))
			return nil
		}
		meta = m
		return nil
	})
	g.Go(func() error {
		seller = s.sellers.DisplayName(gctx, sellers.NewCache(), post.SellerID)
		return nil
	})
	_ = g.Wait()

	product := &Product{
		Card:   toCard(post),
		Images: compact(images),
		File:   meta,
	}
	product.Seller = seller
	if len(product.Images) > 0 {
		product.Image = product.Images[0]
	} else {
		product.Image = FallbackImage
	}
	if pub.RatingSummary != nil {
		product.Rating = pub.RatingSummary.Average
		product.RatingCount = pub.RatingSummary.Count
	}
	return product, nil
}

// ResolveProfile finds a seller from an identity id, nickname, username,
// email address or free text, in that order.
func (s *Service) ResolveProfile(ctx context.Context, candidate string) (*Profile, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, apperrors.NewValidationError("Tell me whose profile to open.")
	}

	clerkID := s.resolveClerkID(ctx, candidate)
	if clerkID == "" {
		return nil, apperrors.NewNotFoundError("profile")
	}

	cache := sellers.NewCache()
	profile := &Profile{
		ClerkID: clerkID,
		Name:    s.sellers.DisplayName(ctx, cache, clerkID),
	}

	if s.identities != nil {
		if user, err := s.identities.GetUser(ctx, clerkID); err == nil {
			profile.ImageURL = user.ImageURL
			if user.CreatedAt > 0 {
				profile.MemberSince = time.UnixMilli(user.CreatedAt).UTC().Format("January 2006")
			}
		}
	}

	posts, err := s.listings.BySeller(ctx, "", clerkID)
	if err != nil {
		s.log.WarnContext(ctx, "seller listings unavailable", slog.String("seller_id", clerkID), slog.Any("error", err))
		return profile, nil
	}
	profile.Listings = s.cards(ctx, posts, s.publicPreview)
	for i := range profile.Listings {
		profile.Listings[i].Seller = profile.Name
	}
	return profile, nil
}

func (s *Service) resolveClerkID(ctx context.Context, candidate string) string {
	if _, err := s.users.PublicProfile(ctx, candidate); err == nil {
		return candidate
	}

	if id, err := s.users.ClerkIDByNickname(ctx, candidate); err == nil && id != "" {
		return id
	}

	if s.identities == nil {
		return ""
	}

	filters := []identity.UserFilter{
		{Username: candidate},
		{EmailAddress: candidate},
		{Query: candidate},
	}
	for _, f := range filters {
		user, err := s.identities.FindUser(ctx, f)
		if err == nil && user != nil && user.ID != "" {
			return user.ID
		}
	}
	return ""
}

// SellerListings returns every listing of the signed-in seller, hidden ones
// included. Previews are signed with the seller's token.
func (s *Service) SellerListings(ctx context.Context, token, sellerID string) ([]Card, error) {
	posts, err := read(ctx, "listing", func() ([]listings.Post, error) {
		return s.listings.BySeller(ctx, token, sellerID)
	})
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, posts, func(ctx context.Context, p listings.Post) string {
		return s.privatePreview(ctx, token, p)
	}), nil
}

// Purchases lists what buyerID has bought.
func (s *Service) Purchases(ctx context.Context, token, buyerID string, page int) ([]Card, error) {
	posts, err := read(ctx, "listing", func() ([]listings.Post, error) {
		return s.listings.ByBuyer(ctx, token, buyerID, page)
	})
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, posts, func(ctx context.Context, p listings.Post) string {
		return s.privatePreview(ctx, token, p)
	}), nil
}

type previewFunc func(ctx context.Context, p listings.Post) string

// cards converts posts, resolving previews and seller names concurrently with
// one seller cache for the whole list.
func (s *Service) cards(ctx context.Context, posts []listings.Post, preview previewFunc) []Card {
	out := make([]Card, len(posts))
	cache := sellers.NewCache()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, p := range posts {
		out[i] = toCard(p)
		g.Go(func() error {
			out[i].Image = preview(gctx, p)
			out[i].Seller = s.sellers.DisplayName(gctx, cache, p.SellerID)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) publicPreview(ctx context.Context, p listings.Post) string {
	if len(p.PreviewImages) == 0 {
		return FallbackImage
	}
	if url := s.publicSAS(ctx, p.ID, p.PreviewImages[0]); url != "" {
		return url
	}
	return FallbackImage
}

func (s *Service) privatePreview(ctx context.Context, token string, p listings.Post) string {
	if len(p.PreviewImages) == 0 {
		return FallbackImage
	}
	url, err := s.listings.BlobSAS(ctx, token, p.ID, p.PreviewImages[0])
	if err != nil || url == "" {
		return FallbackImage
	}
	return url
}

func (s *Service) publicSAS(ctx context.Context, id listings.ID, blob string) string {
	url, err := s.listings.PublicSAS(ctx, id, blob)
	if err != nil {
		s.log.DebugContext(ctx, "preview url unavailable",
			slog.String("post_id", id.String()),
			slog.String("blob", blob),
			slog.Any("error", err),
		)
		return ""
	}
	return url
}

func toCard(p listings.Post) Card {
	return Card{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.PriceUSD,
		Tags:        p.Tags,
		Category:    p.Category(),
		Copies:      p.Copies,
		Status:      p.Status,
		SellerID:    p.SellerID,
	}
}

func compact(urls []string) []string {
	out := urls[:0]
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// read retries transient upstream failures. 4xx answers are returned as is.
func read[T any](ctx context.Context, service string, fn func() (T, error)) (T, error) {
	return apperrors.Do(ctx, func() (T, error) {
		v, err := fn()
		if err != nil {
			return v, classify(service, err)
		}
		return v, nil
	})
}

func classify(service string, err error) error {
	status := restclient.StatusOf(err)
	if status > 0 && status < http.StatusInternalServerError {
		return err
	}
	upstream := apperrors.NewUpstreamError(service, err)
	if errors.Is(err, restclient.ErrUnavailable) {
		upstream.Retryable = false
	}
	return upstream
}
