// Package api is the client for the remote catalog API: login, profile,
// product listing, categories and deletion.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/GophShop/internal/models"
)

// TokenSource supplies the bearer token for outgoing requests. An empty
// token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Client talks to the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient creates a Client. httpClient may be nil; tokens may be nil.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// SetTokenSource replaces the bearer token source.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// NewHTTPClient builds an HTTP client that additionally trusts the CA in
// caFile (for a self-signed development server). An empty caFile keeps the
// system roots.
func NewHTTPClient(caFile string, timeout time.Duration) (*http.Client, error) {
	if caFile == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool, err := x509.SystemCertPool()
	if err != nil || caPool == nil {
		caPool = x509.NewCertPool()
	}
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs:    caPool,
			MinVersion: tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// Login posts the credentials. A 400 or 401 answer becomes an *AuthError.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	body, err := json.Marshal(models.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	var out models.LoginResponse
	err = c.do(ctx, http.MethodPost, "/auth/login", body, &out)
	var netErr *NetworkError
	if errors.As(err, &netErr) && (netErr.StatusCode == http.StatusBadRequest || netErr.StatusCode == http.StatusUnauthorized) {
		return nil, &AuthError{StatusCode: netErr.StatusCode, Message: serverMessage(netErr.Err)}
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser fetches the profile of the token holder.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Products lists every product.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var page models.ProductPage
	if err := c.do(ctx, http.MethodGet, "/products", nil, &page); err != nil {
		return nil, err
	}
	return page.Products, nil
}

// Categories lists the product categories.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := c.do(ctx, http.MethodGet, "/products/categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// ProductsByCategory lists the products of one category.
func (c *Client) ProductsByCategory(ctx context.Context, slug string) ([]models.Product, error) {
	var page models.ProductPage
	if err := c.do(ctx, http.MethodGet, "/products/category/"+url.PathEscape(slug), nil, &page); err != nil {
		return nil, err
	}
	return page.Products, nil
}

// DeleteProduct asks the server to delete a product.
func (c *Client) DeleteProduct(ctx context.Context, id models.ProductID) error {
	return c.do(ctx, http.MethodDelete, "/products/"+id.String(), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	op := method + " " + path

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(data)))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return nil
}

// serverMessage extracts {"message": "..."} from an error body, if present.
func serverMessage(err error) string {
	if err == nil {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(err.Error()), &body) == nil && body.Message != "" {
		return body.Message
	}
	return err.Error()
}
