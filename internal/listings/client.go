// Package listings is the client for the listing service: catalog reads,
// per-listing blobs and the seller's write operations.
package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/Proton-105/oasis-bot/internal/restclient"
)

const (
	SearchPageSize   = 50
	PurchasePageSize = 20
)

// Client talks to the listing service.
type Client struct {
	rest *restclient.Client
}

// New wraps a configured REST client.
func New(rest *restclient.Client) *Client {
	return &Client{rest: rest}
}

func (c *Client) req(ctx context.Context, token string) *resty.Request {
	r := c.rest.R(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

func postPath(id ID, suffix string) string {
	return "/posts/" + url.PathEscape(string(id)) + suffix
}

func (c *Client) list(req *resty.Request, path string) ([]Post, error) {
	resp, err := c.rest.Get(req, path)
	if err != nil {
		return nil, err
	}
	var posts []Post
	if err := restclient.Decode(resp, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Themed returns the home feed. The token is optional.
func (c *Client) Themed(ctx context.Context, token string) ([]Post, error) {
	return c.list(c.req(ctx, token), "/posts/themes")
}

// ByTag returns active listings carrying tag.
func (c *Client) ByTag(ctx context.Context, tag string) ([]Post, error) {
	return c.list(c.req(ctx, ""), "/posts/tag/"+url.PathEscape(tag))
}

// SearchTitle runs a title search.
func (c *Client) SearchTitle(ctx context.Context, query string, page int) ([]Post, error) {
	req := c.req(ctx, "").SetQueryParams(map[string]string{
		"q":    query,
		"page": strconv.Itoa(page),
		"size": strconv.Itoa(SearchPageSize),
	})
	return c.list(req, "/posts/search/title")
}

// Public returns the unauthenticated product view with its rating summary.
func (c *Client) Public(ctx context.Context, id ID) (*PublicPost, error) {
	resp, err := c.rest.Get(c.req(ctx, ""), "/posts/public/"+url.PathEscape(string(id)))
	if err != nil {
		return nil, err
	}
	var out PublicPost
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the authenticated view of a post, including its buyers.
func (c *Client) Get(ctx context.Context, token string, id ID) (*Post, error) {
	resp, err := c.rest.Get(c.req(ctx, token), postPath(id, ""))
	if err != nil {
		return nil, err
	}
	var out Post
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BySeller returns every listing of a seller, hidden ones included when the token is the seller's.
func (c *Client) BySeller(ctx context.Context, token, sellerID string) ([]Post, error) {
	return c.list(c.req(ctx, token), "/posts/seller/"+url.PathEscape(sellerID))
}

// ByBuyer returns the listings buyerID has purchased.
func (c *Client) ByBuyer(ctx context.Context, token, buyerID string, page int) ([]Post, error) {
	req := c.req(ctx, token).SetQueryParams(map[string]string{
		"page": strconv.Itoa(page),
		"size": strconv.Itoa(PurchasePageSize),
	})
	return c.list(req, "/posts/buyer/"+url.PathEscape(buyerID))
}

// PublicSAS returns a time-limited URL for a public preview blob.
func (c *Client) PublicSAS(ctx context.Context, id ID, blob string) (string, error) {
	resp, err := c.rest.Get(c.req(ctx, "").SetQueryParam("blobName", blob), postPath(id, "/public-sas"))
	if err != nil {
		return "", err
	}
	return restclient.TrimQuoted(resp.String()), nil
}

// BlobSAS returns a time-limited URL for a private blob. An empty blob name
// selects the main file, which requires the caller to be the seller or a buyer.
func (c *Client) BlobSAS(ctx context.Context, token string, id ID, blob string) (string, error) {
	req := c.req(ctx, token)
	if blob != "" {
		req.SetQueryParam("blobName", blob)
	}
	resp, err := c.rest.Get(req, postPath(id, "/blob-sas"))
	if err != nil {
		return "", err
	}
	return restclient.TrimQuoted(resp.String()), nil
}

// BlobMetadata describes the main file.
func (c *Client) BlobMetadata(ctx context.Context, token string, id ID) (*BlobMetadata, error) {
	resp, err := c.rest.Get(c.req(ctx, token), postPath(id, "/blob-metadata"))
	if err != nil {
		return nil, err
	}
	var out BlobMetadata
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// fieldsPayload sends the price as a JSON number.
type fieldsPayload struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	PriceUSD    json.Number `json:"priceUSD"`
	Copies      int         `json:"copies"`
}

func toPayload(f Fields) fieldsPayload {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return fieldsPayload{
		Title:       f.Title,
		Description: f.Description,
		Tags:        tags,
		PriceUSD:    json.Number(f.PriceUSD.String()),
		Copies:      f.Copies,
	}
}

// Create publishes a new listing with its main file and previews in one multipart request.
func (c *Client) Create(ctx context.Context, token string, fields Fields, file File, previews []File) (*Post, error) {
	meta, err := json.Marshal(toPayload(fields))
	if err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}

	parts := []*resty.MultipartField{
		{Param: "post", ContentType: "application/json", Reader: bytes.NewReader(meta)},
		multipartFile("file", file),
	}
	for _, p := range previews {
		parts = append(parts, multipartFile("previewImages", p))
	}

	resp, err := c.rest.Post(c.req(ctx, token).SetMultipartFields(parts...), "/posts")
	if err != nil {
		return nil, err
	}
	var out Post
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the editable metadata. Previews and file are left unchanged.
func (c *Client) Update(ctx context.Context, token string, id ID, fields Fields) error {
	_, err := c.rest.Put(c.req(ctx, token).SetBody(toPayload(fields)), postPath(id, ""))
	return err
}

// SetStatus changes visibility; StatusUserDeleted removes the listing for good.
func (c *Client) SetStatus(ctx context.Context, token string, id ID, status Status) error {
	_, err := c.rest.Put(c.req(ctx, token).SetBody(map[string]Status{"status": status}), postPath(id, "/status"))
	return err
}

// ReplaceFile uploads a new version of the main file.
func (c *Client) ReplaceFile(ctx context.Context, token string, id ID, file File) error {
	_, err := c.rest.Put(c.req(ctx, token).SetMultipartFields(multipartFile("file", file)), postPath(id, "/file-multipart"))
	return err
}

// ReplacePreviews swaps all preview images.
func (c *Client) ReplacePreviews(ctx context.Context, token string, id ID, previews []File) error {
	parts := make([]*resty.MultipartField, 0, len(previews))
	for _, p := range previews {
		parts = append(parts, multipartFile("previewImages", p))
	}
	_, err := c.rest.Put(c.req(ctx, token).SetMultipartFields(parts...), postPath(id, "/previews-multipart"))
	return err
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rest.Get(c.req(ctx, ""), "/health")
	return err
}

func multipartFile(param string, f File) *resty.MultipartField {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &resty.MultipartField{
		Param:       param,
		FileName:    f.Name,
		ContentType: contentType,
		Reader:      bytes.NewReader(f.Data),
	}
}
